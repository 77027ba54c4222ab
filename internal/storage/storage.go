package storage

import (
	"context"
	"errors"
)

// ResultContentType is attached to every uploaded result file.
const ResultContentType = "text/plain; charset=utf-8"

// ErrNotConfigured is returned when a client is used without a bucket.
var ErrNotConfigured = errors.New("storage: bucket not configured")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// ObjectStorage captures the minimal S3-compatible operations the pipeline needs.
// Every client is bound to a single bucket.
type ObjectStorage interface {
	Bucket() string
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	ReadObject(ctx context.Context, key string) ([]byte, error)
	UploadFile(ctx context.Context, localPath string, key string) error
}

// ListOptions bounds a listing.
type ListOptions struct {
	// PageSize is the number of keys requested per page.
	PageSize int
	// MaxPages stops listing after this many pages. Zero follows every continuation token.
	MaxPages int
}

func (o ListOptions) pageSize() int {
	if o.PageSize <= 0 || o.PageSize > 1000 {
		return 1000
	}
	return o.PageSize
}
