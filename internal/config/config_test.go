package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestNewAppliesDefaults(t *testing.T) {
	v := viper.New()
	v.Set("SOURCE_BUCKET", "demo-bucket")

	cfg := New(v)

	if cfg.Storage.Bucket != "demo-bucket" {
		t.Errorf("expected bucket demo-bucket, got %q", cfg.Storage.Bucket)
	}
	if cfg.Pipeline.SourcePrefix != "source-images" {
		t.Errorf("expected source prefix source-images, got %q", cfg.Pipeline.SourcePrefix)
	}
	if cfg.Pipeline.ResultsPrefix != "results" {
		t.Errorf("expected results prefix results, got %q", cfg.Pipeline.ResultsPrefix)
	}
	if cfg.Pipeline.ResultSuffix != "-results.txt" {
		t.Errorf("expected suffix -results.txt, got %q", cfg.Pipeline.ResultSuffix)
	}
	if cfg.Pipeline.FailurePolicy != PolicyAbort {
		t.Errorf("expected abort policy, got %q", cfg.Pipeline.FailurePolicy)
	}
	if !cfg.Pipeline.KeepLocal {
		t.Error("expected local results to be kept by default")
	}
	if cfg.Storage.PageSize != MaxListPageSize || cfg.Storage.MaxPages != 0 {
		t.Errorf("unexpected listing defaults: page size %d, max pages %d", cfg.Storage.PageSize, cfg.Storage.MaxPages)
	}
	if cfg.AWS.MaxAttempts != 1 {
		t.Errorf("expected a single attempt per call, got %d", cfg.AWS.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults plus bucket should validate, got %v", err)
	}
}

func TestNewParsesLists(t *testing.T) {
	v := viper.New()
	v.Set("SOURCE_BUCKET", "b")
	v.Set("IMAGE_EXTENSIONS", ".jpg, .png ,,")
	v.Set("SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg := New(v)

	if got := strings.Join(cfg.Pipeline.ImageExtensions, "|"); got != ".jpg|.png" {
		t.Errorf("unexpected extensions %q", got)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.Server.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{
			name:    "missing bucket",
			set:     map[string]any{},
			wantErr: "SOURCE_BUCKET",
		},
		{
			name:    "unknown policy",
			set:     map[string]any{"SOURCE_BUCKET": "b", "FAILURE_POLICY": "retry"},
			wantErr: "FAILURE_POLICY",
		},
		{
			name:    "page size too large",
			set:     map[string]any{"SOURCE_BUCKET": "b", "LIST_PAGE_SIZE": 5000},
			wantErr: "LIST_PAGE_SIZE",
		},
		{
			name:    "negative max pages",
			set:     map[string]any{"SOURCE_BUCKET": "b", "LIST_MAX_PAGES": -1},
			wantErr: "LIST_MAX_PAGES",
		},
		{
			name:    "minio needs bytes",
			set:     map[string]any{"SOURCE_BUCKET": "b", "STORAGE_BACKEND": "minio", "MINIO_ENDPOINT": "localhost:9000"},
			wantErr: "ANALYSIS_IMAGE_SOURCE=bytes",
		},
		{
			name:    "bad extension",
			set:     map[string]any{"SOURCE_BUCKET": "b", "IMAGE_EXTENSIONS": "jpg"},
			wantErr: "IMAGE_EXTENSIONS",
		},
		{
			name:    "half static credentials",
			set:     map[string]any{"SOURCE_BUCKET": "b", "AWS_ACCESS_KEY_ID": "AKIA"},
			wantErr: "must be set together",
		},
		{
			name:    "face attributes",
			set:     map[string]any{"SOURCE_BUCKET": "b", "FACE_ATTRIBUTES": "SOME"},
			wantErr: "FACE_ATTRIBUTES",
		},
		{
			name: "minio with bytes",
			set: map[string]any{
				"SOURCE_BUCKET":         "b",
				"STORAGE_BACKEND":       "minio",
				"MINIO_ENDPOINT":        "localhost:9000",
				"ANALYSIS_IMAGE_SOURCE": "bytes",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			err := New(v).Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
