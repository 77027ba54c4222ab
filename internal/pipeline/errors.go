package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRunInProgress is returned when another run holds the lock for the same bucket prefix.
var ErrRunInProgress = errors.New("pipeline: another run is in progress for this bucket prefix")

// StageError ties a failure to the stage and object it happened on.
type StageError struct {
	Stage Stage
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Key, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PartialError is returned by a continue-policy run in which some images failed.
type PartialError struct {
	Listed   int
	Failures []*StageError
}

func (e *PartialError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d objects failed", len(e.Failures), e.Listed)
	if len(e.Failures) > 0 {
		fmt.Fprintf(&b, "; first: %v", e.Failures[0])
	}
	return b.String()
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
