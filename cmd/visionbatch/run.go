package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/visionbatch/internal/analysis"
	"github.com/andresuchdata/visionbatch/internal/awsauth"
	"github.com/andresuchdata/visionbatch/internal/cache"
	"github.com/andresuchdata/visionbatch/internal/config"
	"github.com/andresuchdata/visionbatch/internal/notify"
	"github.com/andresuchdata/visionbatch/internal/pipeline"
	"github.com/andresuchdata/visionbatch/internal/repository/postgres"
	"github.com/andresuchdata/visionbatch/internal/storage"
	"github.com/andresuchdata/visionbatch/pkg/logger"
)

// applyFlags lets explicitly set flags override the loaded configuration.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("bucket") {
		cfg.Storage.Bucket = c.String("bucket")
	}
	if c.IsSet("source-prefix") {
		cfg.Pipeline.SourcePrefix = c.String("source-prefix")
	}
	if c.IsSet("results-prefix") {
		cfg.Pipeline.ResultsPrefix = c.String("results-prefix")
	}
	if c.IsSet("output-dir") {
		cfg.Pipeline.OutputDir = c.String("output-dir")
	}
	if c.IsSet("failure-policy") {
		cfg.Pipeline.FailurePolicy = strings.ToLower(strings.TrimSpace(c.String("failure-policy")))
	}
	if c.IsSet("max-pages") {
		cfg.Storage.MaxPages = c.Int("max-pages")
	}
}

func runAnalysis(c *cli.Context) error {
	cfg := *config.Load()
	applyFlags(c, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := c.Context
	log := logger.Component("cli")

	awsCfg, err := awsauth.LoadConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	log.Info().Str("credentials", awsauth.Source(cfg.AWS)).Str("region", cfg.AWS.Region).Msg("aws configuration loaded")

	store, err := newObjectStorage(cfg, awsCfg)
	if err != nil {
		return err
	}

	detector := analysis.NewRekognitionDetector(awsCfg, analysis.RekognitionOptions{
		MaxLabels:      cfg.Analysis.MaxLabels,
		MinConfidence:  cfg.Analysis.MinConfidence,
		FaceAttributes: cfg.Analysis.FaceAttributes,
	})

	policy, err := pipeline.ParseFailurePolicy(cfg.Pipeline.FailurePolicy)
	if err != nil {
		return err
	}

	opts, closers := optionalCollaborators(ctx, cfg)
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()

	runner := pipeline.NewRunner(pipeline.RunConfig{
		SourcePrefix:    cfg.Pipeline.SourcePrefix,
		ResultsPrefix:   cfg.Pipeline.ResultsPrefix,
		ResultSuffix:    cfg.Pipeline.ResultSuffix,
		OutputDir:       cfg.Pipeline.OutputDir,
		KeepLocal:       cfg.Pipeline.KeepLocal,
		FailurePolicy:   policy,
		ImageExtensions: cfg.Pipeline.ImageExtensions,
		InlineImages:    cfg.Analysis.ImageSource == config.ImageSourceBytes,
	}, store, detector, opts...)

	summary, err := runner.Run(ctx)
	if summary != nil {
		for _, key := range summary.ResultKeys {
			fmt.Fprintln(c.App.Writer, key)
		}
	}
	return err
}

func newObjectStorage(cfg config.Config, awsCfg aws.Config) (storage.ObjectStorage, error) {
	list := storage.ListOptions{PageSize: cfg.Storage.PageSize, MaxPages: cfg.Storage.MaxPages}
	switch cfg.Storage.Backend {
	case config.BackendMinIO:
		return storage.NewMinIOClient(cfg.Storage.MinIO, cfg.Storage.Bucket, list)
	default:
		return storage.NewS3Client(awsCfg, cfg.Storage.Bucket, cfg.Storage.Endpoint, list)
	}
}

// optionalCollaborators connects the ledger, run lock and notifier that are
// configured. A collaborator that cannot be reached is logged and left out.
func optionalCollaborators(ctx context.Context, cfg config.Config) ([]pipeline.Option, []io.Closer) {
	log := logger.Component("cli")
	var (
		opts    []pipeline.Option
		closers []io.Closer
	)

	if cfg.Database.URL != "" {
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			log.Warn().Err(err).Msg("run ledger migrations failed, continuing without ledger")
		} else if db, err := postgres.NewDB(cfg.Database.URL); err != nil {
			log.Warn().Err(err).Msg("run ledger unavailable, continuing without ledger")
		} else {
			opts = append(opts, pipeline.WithRecorder(pipeline.NewRepository(db)))
			closers = append(closers, db)
		}
	}

	if cfg.Cache.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			log.Warn().Err(err).Msg("run lock unavailable, continuing without lock")
		} else {
			opts = append(opts, pipeline.WithLocker(cache.NewRunLock(client, cfg.Cache)))
			closers = append(closers, client)
		}
	}

	if cfg.Queue.URL != "" {
		publisher, err := notify.NewPublisher(cfg.Queue)
		if err != nil {
			log.Warn().Err(err).Msg("result notifications unavailable")
		} else {
			opts = append(opts, pipeline.WithNotifier(publisher))
			closers = append(closers, publisher)
		}
	}

	return opts, closers
}

func openLedger() (*postgres.DB, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return postgres.NewDB(cfg.Database.URL)
}

func migrateLedger(c *cli.Context) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	return postgres.Migrate(cfg.Database.URL)
}
