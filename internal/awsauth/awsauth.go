// Package awsauth builds the AWS configuration shared by the storage and analysis clients.
//
// Credentials are resolved once here and the resulting provider is handed to
// every client built from the returned aws.Config.
package awsauth

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/andresuchdata/visionbatch/internal/config"
)

// StaticProvider returns a static credentials provider when keys are configured, nil otherwise.
func StaticProvider(cfg config.AWSConfig) aws.CredentialsProvider {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
}

// Source names where credentials come from, for logging.
func Source(cfg config.AWSConfig) string {
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		return "static"
	case cfg.Profile != "":
		return "profile:" + cfg.Profile
	default:
		return "default-chain"
	}
}

// LoadConfig resolves region, retry budget and credentials into an aws.Config.
func LoadConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if provider := StaticProvider(cfg); provider != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}
