package analysis

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// rekognitionAPI is the subset of the Rekognition client used here, so tests can inject a fake.
type rekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionOptions tunes the detection requests. Zero values leave the service defaults.
type RekognitionOptions struct {
	MaxLabels      int
	MinConfidence  float64
	FaceAttributes string
}

// RekognitionDetector implements Detector on Amazon Rekognition.
type RekognitionDetector struct {
	api  rekognitionAPI
	opts RekognitionOptions
}

// NewRekognitionDetector builds a detector sharing the credentials and retry settings of awsCfg.
func NewRekognitionDetector(awsCfg aws.Config, opts RekognitionOptions) *RekognitionDetector {
	return newRekognitionDetector(rekognition.NewFromConfig(awsCfg), opts)
}

func newRekognitionDetector(api rekognitionAPI, opts RekognitionOptions) *RekognitionDetector {
	return &RekognitionDetector{api: api, opts: opts}
}

func (d *RekognitionDetector) image(ref ImageRef) (*types.Image, error) {
	if len(ref.Bytes) > 0 {
		if len(ref.Bytes) > MaxImageBytes {
			return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(ref.Bytes))
		}
		return &types.Image{Bytes: ref.Bytes}, nil
	}
	return &types.Image{
		S3Object: &types.S3Object{
			Bucket: aws.String(ref.Bucket),
			Name:   aws.String(ref.Key),
		},
	}, nil
}

// DetectLabels returns the raw DetectLabels response.
func (d *RekognitionDetector) DetectLabels(ctx context.Context, ref ImageRef) (any, error) {
	img, err := d.image(ref)
	if err != nil {
		return nil, err
	}
	input := &rekognition.DetectLabelsInput{Image: img}
	if d.opts.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(int32(d.opts.MaxLabels))
	}
	if d.opts.MinConfidence > 0 {
		input.MinConfidence = aws.Float32(float32(d.opts.MinConfidence))
	}
	out, err := d.api.DetectLabels(ctx, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetectFaces returns the raw DetectFaces response.
func (d *RekognitionDetector) DetectFaces(ctx context.Context, ref ImageRef) (any, error) {
	img, err := d.image(ref)
	if err != nil {
		return nil, err
	}
	input := &rekognition.DetectFacesInput{Image: img}
	if d.opts.FaceAttributes != "" {
		input.Attributes = []types.Attribute{types.Attribute(d.opts.FaceAttributes)}
	}
	out, err := d.api.DetectFaces(ctx, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetectText returns the raw DetectText response.
func (d *RekognitionDetector) DetectText(ctx context.Context, ref ImageRef) (any, error) {
	img, err := d.image(ref)
	if err != nil {
		return nil, err
	}
	out, err := d.api.DetectText(ctx, &rekognition.DetectTextInput{Image: img})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ Detector = (*RekognitionDetector)(nil)
