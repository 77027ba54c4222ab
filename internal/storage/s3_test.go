package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 serves pre-built listing pages and records uploads.
type fakeS3 struct {
	pages     []*s3.ListObjectsV2Output
	listCalls []*s3.ListObjectsV2Input
	listErr   error

	objects map[string][]byte

	puts    []*s3.PutObjectInput
	putBody []byte
	putErr  error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls = append(f.listCalls, in)
	if f.listErr != nil {
		return nil, f.listErr
	}
	idx := len(f.listCalls) - 1
	if idx >= len(f.pages) {
		return nil, fmt.Errorf("unexpected listing call %d", idx+1)
	}
	return f.pages[idx], nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if in.Body != nil {
		f.putBody, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, f.putErr
}

func listPage(start, count int, truncated bool, next string) *s3.ListObjectsV2Output {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	if next != "" {
		out.NextContinuationToken = aws.String(next)
	}
	for i := start; i < start+count; i++ {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(fmt.Sprintf("source-images/img-%04d.jpg", i)),
			Size: aws.Int64(int64(i)),
			ETag: aws.String(`"etag"`),
		})
	}
	return out
}

func TestS3ListObjectsFollowsContinuationTokens(t *testing.T) {
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		listPage(0, 1000, true, "t1"),
		listPage(1000, 1000, true, "t2"),
		listPage(2000, 5, false, ""),
	}}
	client := newS3Client(fake, "demo-bucket", ListOptions{PageSize: 1000})

	objects, err := client.ListObjects(context.Background(), "source-images")
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}

	if len(objects) != 2005 {
		t.Fatalf("expected 2005 objects, got %d", len(objects))
	}
	if len(fake.listCalls) != 3 {
		t.Fatalf("expected 3 listing calls, got %d", len(fake.listCalls))
	}
	if fake.listCalls[0].ContinuationToken != nil {
		t.Error("first call must not carry a continuation token")
	}
	if got := aws.ToString(fake.listCalls[1].ContinuationToken); got != "t1" {
		t.Errorf("second call token = %q, want t1", got)
	}
	if got := aws.ToString(fake.listCalls[2].ContinuationToken); got != "t2" {
		t.Errorf("third call token = %q, want t2", got)
	}
	if got := aws.ToString(fake.listCalls[0].Prefix); got != "source-images" {
		t.Errorf("prefix = %q", got)
	}
	if objects[0].ETag != "etag" {
		t.Errorf("expected quotes stripped from etag, got %q", objects[0].ETag)
	}
	if objects[2004].Key != "source-images/img-2004.jpg" {
		t.Errorf("listing order not preserved, last key %q", objects[2004].Key)
	}
}

func TestS3ListObjectsSinglePageCap(t *testing.T) {
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		listPage(0, 1000, true, "more"),
	}}
	client := newS3Client(fake, "demo-bucket", ListOptions{PageSize: 1000, MaxPages: 1})

	objects, err := client.ListObjects(context.Background(), "source-images")
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(objects) != 1000 {
		t.Fatalf("expected exactly 1000 objects, got %d", len(objects))
	}
	if len(fake.listCalls) != 1 {
		t.Fatalf("expected no follow-up listing call, got %d calls", len(fake.listCalls))
	}
	if got := aws.ToInt32(fake.listCalls[0].MaxKeys); got != 1000 {
		t.Errorf("MaxKeys = %d, want 1000", got)
	}
}

func TestS3ListObjectsError(t *testing.T) {
	boom := errors.New("AccessDenied")
	client := newS3Client(&fakeS3{listErr: boom}, "demo-bucket", ListOptions{})

	_, err := client.ListObjects(context.Background(), "source-images")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped AccessDenied, got %v", err)
	}
}

func TestS3UploadFile(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "cat.jpg-results.txt")
	if err := os.WriteFile(local, []byte("Labels API: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fake := &fakeS3{}
	client := newS3Client(fake, "demo-bucket", ListOptions{})
	if err := client.UploadFile(context.Background(), local, "results/cat.jpg-results.txt"); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	if len(fake.puts) != 1 {
		t.Fatalf("expected one PutObject, got %d", len(fake.puts))
	}
	in := fake.puts[0]
	if aws.ToString(in.Bucket) != "demo-bucket" || aws.ToString(in.Key) != "results/cat.jpg-results.txt" {
		t.Errorf("unexpected destination %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != ResultContentType {
		t.Errorf("unexpected content type %q", aws.ToString(in.ContentType))
	}
	if aws.ToInt64(in.ContentLength) != int64(len("Labels API: {}\n")) {
		t.Errorf("unexpected content length %d", aws.ToInt64(in.ContentLength))
	}
	if string(fake.putBody) != "Labels API: {}\n" {
		t.Errorf("unexpected body %q", fake.putBody)
	}
}

func TestS3UploadFileMissingLocal(t *testing.T) {
	fake := &fakeS3{}
	client := newS3Client(fake, "demo-bucket", ListOptions{})
	err := client.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), "results/x")
	if err == nil {
		t.Fatal("expected error for missing local file")
	}
	if len(fake.puts) != 0 {
		t.Error("PutObject must not be called when the file cannot be opened")
	}
}

func TestS3ReadObject(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"source-images/cat.jpg": []byte("jpeg")}}
	client := newS3Client(fake, "demo-bucket", ListOptions{})

	data, err := client.ReadObject(context.Background(), "source-images/cat.jpg")
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if string(data) != "jpeg" {
		t.Errorf("unexpected data %q", data)
	}
}

func TestNewS3ClientRequiresBucket(t *testing.T) {
	if _, err := NewS3Client(aws.Config{}, "", "", ListOptions{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
