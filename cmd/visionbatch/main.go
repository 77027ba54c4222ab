package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/visionbatch/internal/config"
	"github.com/andresuchdata/visionbatch/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "visionbatch",
		Usage: "Analyze every image under a bucket prefix and publish one result file per image",
		Before: func(c *cli.Context) error {
			cfg := config.Load()
			if cfg.Log.Format == "json" {
				logger.UseJSON(os.Stderr)
			}
			logger.SetLevel(cfg.Log.Level)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "List the source prefix, analyze each image and upload its result file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "bucket",
						Usage:   "Bucket holding source images and results",
						EnvVars: []string{"SOURCE_BUCKET"},
					},
					&cli.StringFlag{
						Name:    "source-prefix",
						Usage:   "Prefix to list source images under",
						EnvVars: []string{"SOURCE_PREFIX"},
					},
					&cli.StringFlag{
						Name:    "results-prefix",
						Usage:   "Prefix for uploaded result files and the local results directory",
						EnvVars: []string{"RESULTS_PREFIX"},
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Usage:   "Local directory result files are written under",
						EnvVars: []string{"OUTPUT_DIR"},
					},
					&cli.StringFlag{
						Name:    "failure-policy",
						Usage:   "abort stops at the first failed image, continue records it and moves on",
						EnvVars: []string{"FAILURE_POLICY"},
					},
					&cli.IntFlag{
						Name:    "max-pages",
						Usage:   "Stop listing after this many pages (0 follows every page)",
						EnvVars: []string{"LIST_MAX_PAGES"},
					},
				},
				Action: runAnalysis,
			},
			{
				Name:  "runs",
				Usage: "Print recent runs from the ledger",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 20,
					},
				},
				Action: listRuns,
			},
			{
				Name:   "migrate",
				Usage:  "Apply run ledger database migrations",
				Action: migrateLedger,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		logger.Log.Error().Err(err).Msg("visionbatch failed")
		os.Exit(1)
	}
}
