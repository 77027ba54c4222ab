package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// FailurePolicy decides what a stage failure does to the rest of the run.
type FailurePolicy string

const (
	// PolicyAbort stops the run at the first failing image.
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue records the failure and moves on to the next image.
	PolicyContinue FailurePolicy = "continue"
)

// ParseFailurePolicy maps a config value to a FailurePolicy. Empty means abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyContinue:
		return PolicyContinue, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

// Stage is a step in processing one listed object.
type Stage string

const (
	StageList    Stage = "list"
	StageFetch   Stage = "fetch"
	StageAnalyze Stage = "analyze"
	StageWrite   Stage = "write"
	StageUpload  Stage = "upload"
)

// RunConfig holds everything a Runner needs besides its collaborators.
type RunConfig struct {
	SourcePrefix    string
	ResultsPrefix   string
	ResultSuffix    string
	OutputDir       string
	KeepLocal       bool
	FailurePolicy   FailurePolicy
	ImageExtensions []string
	// InlineImages sends image bytes to the analysis service instead of a bucket reference.
	InlineImages bool
}

// RunStatus represents the current state of an analysis run
type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusPartial    RunStatus = "partial"
	StatusFailed     RunStatus = "failed"
)

// ImageStatus is the outcome for one listed object.
type ImageStatus string

const (
	ImageCompleted ImageStatus = "completed"
	ImageFailed    ImageStatus = "failed"
	ImageSkipped   ImageStatus = "skipped"
)

// Run tracks a single execution over a bucket prefix
type Run struct {
	ID               int64      `db:"id" json:"id"`
	UID              string     `db:"run_uid" json:"run_uid"`
	Bucket           string     `db:"bucket" json:"bucket"`
	SourcePrefix     string     `db:"source_prefix" json:"source_prefix"`
	ResultsPrefix    string     `db:"results_prefix" json:"results_prefix"`
	Status           RunStatus  `db:"status" json:"status"`
	TotalObjects     int        `db:"total_objects" json:"total_objects"`
	ProcessedObjects int        `db:"processed_objects" json:"processed_objects"`
	FailedObjects    int        `db:"failed_objects" json:"failed_objects"`
	SkippedObjects   int        `db:"skipped_objects" json:"skipped_objects"`
	StartedAt        time.Time  `db:"started_at" json:"started_at"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage     string     `db:"error_message" json:"error_message,omitempty"`
}

// ImageJob records what happened to one listed object
type ImageJob struct {
	ID           int64       `db:"id" json:"id"`
	RunID        int64       `db:"run_id" json:"run_id"`
	ObjectKey    string      `db:"object_key" json:"object_key"`
	ResultKey    string      `db:"result_key" json:"result_key,omitempty"`
	Status       ImageStatus `db:"status" json:"status"`
	Stage        string      `db:"stage" json:"stage,omitempty"`
	ErrorMessage string      `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt  time.Time   `db:"processed_at" json:"processed_at"`
}

// Summary is what a run reports back to its caller.
type Summary struct {
	RunUID     string
	Listed     int
	Processed  int
	Failed     int
	Skipped    int
	ResultKeys []string
}

// ResultEvent announces an uploaded result file.
type ResultEvent struct {
	RunUID      string    `json:"run_uid"`
	Bucket      string    `json:"bucket"`
	ObjectKey   string    `json:"object_key"`
	ResultKey   string    `json:"result_key"`
	PublishedAt time.Time `json:"published_at"`
}
