// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendS3    = "s3"
	BackendMinIO = "minio"

	PolicyAbort    = "abort"
	PolicyContinue = "continue"

	ImageSourceReference = "reference"
	ImageSourceBytes     = "bytes"

	// MaxListPageSize is the largest page ListObjectsV2 will return.
	MaxListPageSize = 1000
)

type Config struct {
	Pipeline PipelineConfig
	Storage  StorageConfig
	Analysis AnalysisConfig
	AWS      AWSConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Queue    QueueConfig
	Server   ServerConfig
	Log      LogConfig
}

type PipelineConfig struct {
	SourcePrefix    string
	ResultsPrefix   string
	ResultSuffix    string
	OutputDir       string
	KeepLocal       bool
	FailurePolicy   string
	ImageExtensions []string
}

type StorageConfig struct {
	Backend  string
	Bucket   string
	Endpoint string
	PageSize int
	MaxPages int
	MinIO    MinIOConfig
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

type AnalysisConfig struct {
	ImageSource    string
	MaxLabels      int
	MinConfidence  float64
	FaceAttributes string
}

type AWSConfig struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	MaxAttempts     int
}

type DatabaseConfig struct {
	URL string
}

type CacheConfig struct {
	Enabled        bool
	RedisURL       string
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	LockTTLSeconds int
}

type QueueConfig struct {
	URL  string
	Name string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env (if present) and the process environment once and returns the shared Config.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		v.AutomaticEnv()
		instance = New(v)
	})

	return instance
}

// SetDefaults registers the documented default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("STORAGE_BACKEND", BackendS3)
	v.SetDefault("SOURCE_BUCKET", "")
	v.SetDefault("SOURCE_PREFIX", "source-images")
	v.SetDefault("RESULTS_PREFIX", "results")
	v.SetDefault("RESULT_SUFFIX", "-results.txt")
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("KEEP_LOCAL_RESULTS", true)
	v.SetDefault("LIST_PAGE_SIZE", MaxListPageSize)
	v.SetDefault("LIST_MAX_PAGES", 0)
	v.SetDefault("FAILURE_POLICY", PolicyAbort)
	v.SetDefault("IMAGE_EXTENSIONS", "")
	v.SetDefault("S3_ENDPOINT", "")

	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_USE_SSL", true)

	v.SetDefault("ANALYSIS_IMAGE_SOURCE", ImageSourceReference)
	v.SetDefault("LABELS_MAX", 0)
	v.SetDefault("LABELS_MIN_CONFIDENCE", 0)
	v.SetDefault("FACE_ATTRIBUTES", "DEFAULT")

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_PROFILE", "")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("AWS_SESSION_TOKEN", "")
	v.SetDefault("AWS_MAX_ATTEMPTS", 1)

	v.SetDefault("DATABASE_URL", "")

	v.SetDefault("RUN_LOCK_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RUN_LOCK_TTL_SECONDS", 3600)

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_QUEUE", "visionbatch.results")

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "release")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "*")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// New builds a Config from v after applying defaults.
func New(v *viper.Viper) *Config {
	SetDefaults(v)

	return &Config{
		Pipeline: PipelineConfig{
			SourcePrefix:    v.GetString("SOURCE_PREFIX"),
			ResultsPrefix:   v.GetString("RESULTS_PREFIX"),
			ResultSuffix:    v.GetString("RESULT_SUFFIX"),
			OutputDir:       v.GetString("OUTPUT_DIR"),
			KeepLocal:       v.GetBool("KEEP_LOCAL_RESULTS"),
			FailurePolicy:   strings.ToLower(strings.TrimSpace(v.GetString("FAILURE_POLICY"))),
			ImageExtensions: SplitList(v.GetString("IMAGE_EXTENSIONS")),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND"))),
			Bucket:   strings.TrimSpace(v.GetString("SOURCE_BUCKET")),
			Endpoint: v.GetString("S3_ENDPOINT"),
			PageSize: v.GetInt("LIST_PAGE_SIZE"),
			MaxPages: v.GetInt("LIST_MAX_PAGES"),
			MinIO: MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				Region:    v.GetString("MINIO_REGION"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
		},
		Analysis: AnalysisConfig{
			ImageSource:    strings.ToLower(strings.TrimSpace(v.GetString("ANALYSIS_IMAGE_SOURCE"))),
			MaxLabels:      v.GetInt("LABELS_MAX"),
			MinConfidence:  v.GetFloat64("LABELS_MIN_CONFIDENCE"),
			FaceAttributes: strings.ToUpper(strings.TrimSpace(v.GetString("FACE_ATTRIBUTES"))),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			Profile:         v.GetString("AWS_PROFILE"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    v.GetString("AWS_SESSION_TOKEN"),
			MaxAttempts:     v.GetInt("AWS_MAX_ATTEMPTS"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("DATABASE_URL"),
		},
		Cache: CacheConfig{
			Enabled:        v.GetBool("RUN_LOCK_ENABLED"),
			RedisURL:       v.GetString("REDIS_URL"),
			RedisHost:      v.GetString("REDIS_HOST"),
			RedisPort:      v.GetString("REDIS_PORT"),
			RedisPassword:  v.GetString("REDIS_PASSWORD"),
			RedisDB:        v.GetInt("REDIS_DB"),
			LockTTLSeconds: v.GetInt("RUN_LOCK_TTL_SECONDS"),
		},
		Queue: QueueConfig{
			URL:  v.GetString("AMQP_URL"),
			Name: v.GetString("AMQP_QUEUE"),
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: SplitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}
}

// Validate reports every setting the batch run cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("SOURCE_BUCKET must be provided"))
	}
	switch c.Storage.Backend {
	case BackendS3:
	case BackendMinIO:
		if c.Storage.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT must be provided for the minio backend"))
		}
		if c.Analysis.ImageSource != ImageSourceBytes {
			errs = append(errs, errors.New("the minio backend requires ANALYSIS_IMAGE_SOURCE=bytes"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if c.Storage.PageSize < 1 || c.Storage.PageSize > MaxListPageSize {
		errs = append(errs, fmt.Errorf("LIST_PAGE_SIZE must be between 1 and %d, got %d", MaxListPageSize, c.Storage.PageSize))
	}
	if c.Storage.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("LIST_MAX_PAGES must not be negative, got %d", c.Storage.MaxPages))
	}

	switch c.Pipeline.FailurePolicy {
	case PolicyAbort, PolicyContinue:
	default:
		errs = append(errs, fmt.Errorf("unknown FAILURE_POLICY %q", c.Pipeline.FailurePolicy))
	}
	if strings.TrimSpace(c.Pipeline.ResultSuffix) == "" {
		errs = append(errs, errors.New("RESULT_SUFFIX must not be empty"))
	}
	for _, ext := range c.Pipeline.ImageExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, "/\\") {
			errs = append(errs, fmt.Errorf("IMAGE_EXTENSIONS entry %q must look like .jpg", ext))
		}
	}

	switch c.Analysis.ImageSource {
	case ImageSourceReference, ImageSourceBytes:
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYSIS_IMAGE_SOURCE %q", c.Analysis.ImageSource))
	}
	switch c.Analysis.FaceAttributes {
	case "DEFAULT", "ALL":
	default:
		errs = append(errs, fmt.Errorf("FACE_ATTRIBUTES must be DEFAULT or ALL, got %q", c.Analysis.FaceAttributes))
	}
	if c.Analysis.MaxLabels < 0 {
		errs = append(errs, fmt.Errorf("LABELS_MAX must not be negative, got %d", c.Analysis.MaxLabels))
	}
	if c.Analysis.MinConfidence < 0 || c.Analysis.MinConfidence > 100 {
		errs = append(errs, fmt.Errorf("LABELS_MIN_CONFIDENCE must be within 0..100, got %v", c.Analysis.MinConfidence))
	}
	if c.AWS.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("AWS_MAX_ATTEMPTS must be at least 1, got %d", c.AWS.MaxAttempts))
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		errs = append(errs, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together"))
	}

	return errors.Join(errs...)
}

// SplitList splits a comma separated setting, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
