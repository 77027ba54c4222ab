package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/visionbatch/internal/repository/postgres"
)

// ErrRunNotFound is returned when a run ID has no ledger row.
var ErrRunNotFound = errors.New("pipeline: run not found")

// Repository handles database operations for run tracking
type Repository struct {
	db *postgres.DB
}

// NewRepository creates a new run repository
func NewRepository(db *postgres.DB) *Repository {
	return &Repository{db: db}
}

const runColumns = `id, run_uid, bucket, source_prefix, results_prefix, status,
	total_objects, processed_objects, failed_objects, skipped_objects,
	started_at, completed_at, error_message`

// StartRun inserts a run record and fills in its ID
func (r *Repository) StartRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO analysis_runs (
			run_uid, bucket, source_prefix, results_prefix, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowxContext(
		ctx, query,
		run.UID, run.Bucket, run.SourcePrefix, run.ResultsPrefix, run.Status, run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordImage stores one image outcome and bumps the matching run counter
func (r *Repository) RecordImage(ctx context.Context, job *ImageJob) error {
	var counter string
	switch job.Status {
	case ImageCompleted:
		counter = "processed_objects"
	case ImageFailed:
		counter = "failed_objects"
	case ImageSkipped:
		counter = "skipped_objects"
	default:
		return fmt.Errorf("unknown image status %q", job.Status)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO analysis_image_jobs (
				run_id, object_key, result_key, status, stage, error_message, processed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		err := tx.QueryRowxContext(
			ctx, insert,
			job.RunID, job.ObjectKey, job.ResultKey, job.Status, job.Stage, job.ErrorMessage, job.ProcessedAt,
		).Scan(&job.ID)
		if err != nil {
			return fmt.Errorf("insert image job: %w", err)
		}

		update := fmt.Sprintf(`UPDATE analysis_runs SET %s = %s + 1 WHERE id = $1`, counter, counter)
		if _, err := tx.ExecContext(ctx, update, job.RunID); err != nil {
			return fmt.Errorf("update run counters: %w", err)
		}
		return nil
	})
}

// FinishRun writes the final status and counts of a run
func (r *Repository) FinishRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE analysis_runs
		SET status = $1, total_objects = $2, processed_objects = $3,
		    failed_objects = $4, skipped_objects = $5,
		    completed_at = $6, error_message = $7
		WHERE id = $8
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.TotalObjects, run.ProcessedObjects,
		run.FailedObjects, run.SkippedObjects,
		run.CompletedAt, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = $1`

	run := &Run{}
	if err := r.db.GetContext(ctx, run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs ORDER BY started_at DESC, id DESC LIMIT $1`

	runs := []Run{}
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListImageJobs returns every recorded image outcome of a run in processing order
func (r *Repository) ListImageJobs(ctx context.Context, runID int64) ([]ImageJob, error) {
	query := `
		SELECT id, run_id, object_key, result_key, status, stage, error_message, processed_at
		FROM analysis_image_jobs
		WHERE run_id = $1
		ORDER BY id
	`

	jobs := []ImageJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, runID); err != nil {
		return nil, err
	}
	return jobs, nil
}

var _ Recorder = (*Repository)(nil)
