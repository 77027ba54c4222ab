package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/andresuchdata/visionbatch/internal/config"
)

// MinIOClient implements ObjectStorage for MinIO and other S3-compatible services.
type MinIOClient struct {
	client *minio.Client
	bucket string
	list   ListOptions
}

// NewMinIOClient builds a MinIOClient. The endpoint may carry an http:// or
// https:// scheme, which then overrides UseSSL.
func NewMinIOClient(cfg config.MinIOConfig, bucket string, list ListOptions) (*MinIOClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if bucket == "" {
		return nil, ErrNotConfigured
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		secure = true
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		secure = false
		endpoint = strings.TrimPrefix(endpoint, "http://")
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client init failed: %w", err)
	}

	return &MinIOClient{client: client, bucket: bucket, list: list}, nil
}

// Bucket returns the bucket this client is bound to.
func (c *MinIOClient) Bucket() string { return c.bucket }

// ListObjects lists every object under prefix. minio-go pages internally, so a
// page cap is applied as an object cap of MaxPages*PageSize.
func (c *MinIOClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := 0
	if c.list.MaxPages > 0 {
		limit = c.list.MaxPages * c.list.pageSize()
	}

	results := make([]ObjectInfo, 0)
	for object := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   c.list.pageSize(),
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("minio list %s/%s failed: %w", c.bucket, prefix, object.Err)
		}
		results = append(results, ObjectInfo{
			Key:  object.Key,
			Size: object.Size,
			ETag: strings.Trim(object.ETag, `"`),
		})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// ReadObject downloads an object into memory.
func (c *MinIOClient) ReadObject(ctx context.Context, key string) ([]byte, error) {
	object, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %q failed: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("minio read %q failed: %w", key, err)
	}
	return data, nil
}

// UploadFile uploads a local file to key, replacing any existing object.
func (c *MinIOClient) UploadFile(ctx context.Context, localPath, key string) error {
	_, err := c.client.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: ResultContentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %q failed: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*MinIOClient)(nil)
