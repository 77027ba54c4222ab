package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// s3API is the subset of the S3 client used here, so tests can inject a fake.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Client implements ObjectStorage on Amazon S3.
type S3Client struct {
	api    s3API
	bucket string
	list   ListOptions
}

// NewS3Client builds an S3Client from a resolved AWS config. A non-empty endpoint
// switches to path-style addressing (LocalStack and friends).
func NewS3Client(awsCfg aws.Config, bucket, endpoint string, list ListOptions) (*S3Client, error) {
	if bucket == "" {
		return nil, ErrNotConfigured
	}

	var s3Opts []func(*s3.Options)
	if endpoint != "" {
		ep := endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &ep
			o.UsePathStyle = true
		})
	}

	return newS3Client(s3.NewFromConfig(awsCfg, s3Opts...), bucket, list), nil
}

func newS3Client(api s3API, bucket string, list ListOptions) *S3Client {
	return &S3Client{api: api, bucket: bucket, list: list}
}

// Bucket returns the bucket this client is bound to.
func (c *S3Client) Bucket() string { return c.bucket }

// ListObjects lists every object under prefix, following continuation tokens
// until S3 reports the listing complete or the page cap is reached.
func (c *S3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var (
		results []ObjectInfo
		token   *string
		pages   int
	)

	for {
		out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			MaxKeys:           aws.Int32(int32(c.list.pageSize())),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 list %s/%s (page %d) failed: %w", c.bucket, prefix, pages+1, err)
		}
		pages++

		for _, obj := range out.Contents {
			results = append(results, ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}

		if !aws.ToBool(out.IsTruncated) || aws.ToString(out.NextContinuationToken) == "" {
			break
		}
		if c.list.MaxPages > 0 && pages >= c.list.MaxPages {
			log.Warn().
				Str("bucket", c.bucket).
				Str("prefix", prefix).
				Int("pages", pages).
				Int("objects", len(results)).
				Msg("listing truncated by page cap")
			break
		}
		token = out.NextContinuationToken
	}

	return results, nil
}

// ReadObject downloads an object into memory.
func (c *S3Client) ReadObject(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %q failed: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %q failed: %w", key, err)
	}
	return data, nil
}

// UploadFile uploads a local file to key, replacing any existing object.
func (c *S3Client) UploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed opening %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ResultContentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %q failed: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*S3Client)(nil)
