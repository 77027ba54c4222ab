package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/visionbatch/internal/analysis"
	"github.com/andresuchdata/visionbatch/internal/report"
	"github.com/andresuchdata/visionbatch/internal/storage"
	"github.com/andresuchdata/visionbatch/pkg/logger"
)

// Recorder persists run progress. Implementations must tolerate being called
// once per listed object.
type Recorder interface {
	StartRun(ctx context.Context, run *Run) error
	RecordImage(ctx context.Context, job *ImageJob) error
	FinishRun(ctx context.Context, run *Run) error
}

// Locker guards a bucket prefix against concurrent runs.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Notifier is told about every uploaded result file.
type Notifier interface {
	ResultPublished(ctx context.Context, event ResultEvent) error
}

// Runner lists the source prefix and processes every object in listing order,
// one at a time.
type Runner struct {
	cfg      RunConfig
	store    storage.ObjectStorage
	detector analysis.Detector
	writer   *report.Writer

	recorder Recorder
	locker   Locker
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
	newUID   func() string
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithRecorder records runs and image outcomes.
func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// WithLocker takes a lock on the bucket prefix for the duration of the run.
func WithLocker(l Locker) Option { return func(r *Runner) { r.locker = l } }

// WithNotifier announces uploaded results.
func WithNotifier(n Notifier) Option { return func(r *Runner) { r.notifier = n } }

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option { return func(r *Runner) { r.log = l } }

// NewRunner creates a Runner.
func NewRunner(cfg RunConfig, store storage.ObjectStorage, detector analysis.Detector, opts ...Option) *Runner {
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = PolicyAbort
	}
	r := &Runner{
		cfg:      cfg,
		store:    store,
		detector: detector,
		writer:   report.NewWriter(cfg.OutputDir, cfg.ResultsPrefix, cfg.ResultSuffix),
		log:      logger.Component("pipeline"),
		now:      time.Now,
		newUID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LockKey is the lock name for runs over bucket/prefix.
func LockKey(bucket, prefix string) string {
	return fmt.Sprintf("visionbatch:run:%s:%s", bucket, prefix)
}

// Run executes one pass over the source prefix. The returned Summary is never
// nil once the lock is held, even when an error is returned.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if r.locker != nil {
		release, acquired, err := r.locker.TryAcquire(ctx, LockKey(r.store.Bucket(), r.cfg.SourcePrefix))
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !acquired {
			return nil, ErrRunInProgress
		}
		defer release()
	}

	run := &Run{
		UID:           r.newUID(),
		Bucket:        r.store.Bucket(),
		SourcePrefix:  r.cfg.SourcePrefix,
		ResultsPrefix: r.cfg.ResultsPrefix,
		Status:        StatusProcessing,
		StartedAt:     r.now(),
	}
	log := r.log.With().Str("run_uid", run.UID).Str("bucket", run.Bucket).Logger()

	rec := r.recorder
	if rec != nil {
		if err := rec.StartRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("run ledger unavailable, continuing without it")
			rec = nil
		}
	}

	log.Info().
		Str("prefix", r.cfg.SourcePrefix).
		Str("policy", string(r.cfg.FailurePolicy)).
		Msg("analysis run started")

	summary := &Summary{RunUID: run.UID}
	err := r.process(ctx, run, rec, summary, log)

	completed := r.now()
	run.CompletedAt = &completed
	run.TotalObjects = summary.Listed
	run.ProcessedObjects = summary.Processed
	run.FailedObjects = summary.Failed
	run.SkippedObjects = summary.Skipped

	var partial *PartialError
	switch {
	case err == nil:
		run.Status = StatusCompleted
	case errors.As(err, &partial):
		run.Status = StatusPartial
		run.ErrorMessage = err.Error()
	default:
		run.Status = StatusFailed
		run.ErrorMessage = err.Error()
	}

	if rec != nil {
		// The run context may already be cancelled; the ledger row should still close.
		if ferr := rec.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			log.Warn().Err(ferr).Msg("failed to finish run in ledger")
		}
	}

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Str("status", string(run.Status)).
		Int("listed", summary.Listed).
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("elapsed", completed.Sub(run.StartedAt)).
		Msg("analysis run finished")

	return summary, err
}

func (r *Runner) process(ctx context.Context, run *Run, rec Recorder, summary *Summary, log zerolog.Logger) error {
	objects, err := r.store.ListObjects(ctx, r.cfg.SourcePrefix)
	if err != nil {
		return &StageError{Stage: StageList, Key: r.cfg.SourcePrefix, Err: err}
	}
	summary.Listed = len(objects)
	log.Info().Int("objects", len(objects)).Msg("source prefix listed")

	var failures []*StageError
	seen := make(map[string]string, len(objects))

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted before %q: %w", obj.Key, err)
		}

		job := &ImageJob{RunID: run.ID, ObjectKey: obj.Key}

		name := storage.ImageName(obj.Key)
		if name == "" || !storage.HasExtension(obj.Key, r.cfg.ImageExtensions) {
			log.Debug().Str("key", obj.Key).Msg("skipping object")
			summary.Skipped++
			job.Status = ImageSkipped
			r.record(ctx, rec, job, log)
			continue
		}
		if prev, ok := seen[name]; ok {
			log.Warn().
				Str("key", obj.Key).
				Str("previous_key", prev).
				Str("result_key", r.writer.Key(name)).
				Msg("result file name collision, later object overwrites earlier result")
		}
		seen[name] = obj.Key

		resultKey, err := r.processObject(ctx, run, obj, name)
		if err != nil {
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				stageErr = &StageError{Stage: StageAnalyze, Key: obj.Key, Err: err}
			}
			summary.Failed++
			job.Status = ImageFailed
			job.Stage = string(stageErr.Stage)
			job.ErrorMessage = stageErr.Err.Error()
			r.record(ctx, rec, job, log)

			if r.cfg.FailurePolicy == PolicyAbort {
				return stageErr
			}
			log.Warn().Err(stageErr).Msg("image failed, continuing")
			failures = append(failures, stageErr)
			continue
		}

		summary.Processed++
		summary.ResultKeys = append(summary.ResultKeys, resultKey)
		job.Status = ImageCompleted
		job.ResultKey = resultKey
		r.record(ctx, rec, job, log)
	}

	if len(failures) > 0 {
		return &PartialError{Listed: summary.Listed, Failures: failures}
	}
	return nil
}

func (r *Runner) record(ctx context.Context, rec Recorder, job *ImageJob, log zerolog.Logger) {
	if rec == nil {
		return
	}
	job.ProcessedAt = r.now()
	if err := rec.RecordImage(context.WithoutCancel(ctx), job); err != nil {
		log.Warn().Err(err).Str("key", job.ObjectKey).Msg("failed to record image in ledger")
	}
}
