// Package analysis runs label, face and text detection against a single stored image.
package analysis

import (
	"context"
	"errors"
	"fmt"
)

// MaxImageBytes is the largest inline image the analysis service accepts.
const MaxImageBytes = 5 << 20

// ErrImageTooLarge is returned for inline images above MaxImageBytes.
var ErrImageTooLarge = errors.New("analysis: image exceeds inline size limit")

// Kind names one of the detection calls.
type Kind string

const (
	KindLabels Kind = "labels"
	KindFaces  Kind = "faces"
	KindText   Kind = "text"
)

// ImageRef identifies the image to analyze. When Bytes is set the image is sent
// inline, otherwise the service reads Bucket/Key itself.
type ImageRef struct {
	Bucket string
	Key    string
	Bytes  []byte
}

// Result holds the raw, service-defined response of each detection call.
type Result struct {
	Labels any
	Faces  any
	Text   any
}

// Detector is a remote image-analysis service.
type Detector interface {
	DetectLabels(ctx context.Context, ref ImageRef) (any, error)
	DetectFaces(ctx context.Context, ref ImageRef) (any, error)
	DetectText(ctx context.Context, ref ImageRef) (any, error)
}

// DetectionError wraps the failure of one detection call.
type DetectionError struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detect %s for %q: %v", e.Kind, e.Key, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Analyze calls label, face and text detection in that order and stops at the first failure.
func Analyze(ctx context.Context, d Detector, ref ImageRef) (*Result, error) {
	res := &Result{}
	steps := []struct {
		kind Kind
		call func(context.Context, ImageRef) (any, error)
		dst  *any
	}{
		{KindLabels, d.DetectLabels, &res.Labels},
		{KindFaces, d.DetectFaces, &res.Faces},
		{KindText, d.DetectText, &res.Text},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, &DetectionError{Kind: step.kind, Key: ref.Key, Err: err}
		}
		out, err := step.call(ctx, ref)
		if err != nil {
			return nil, &DetectionError{Kind: step.kind, Key: ref.Key, Err: err}
		}
		*step.dst = out
	}
	return res, nil
}
