package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default maximum number of events processed per run.
// A trigger network can pulse itself forever (A fires B fires A with zero
// delay); the quota guarantees every run terminates.
const DefaultMaxSteps = 10000

// StepQuota counts processed events in one run and enforces a limit.
// A limit of zero or less disables the check.
type StepQuota struct {
	maxSteps int
	current  int
}

// NewStepQuota creates a quota with the given limit.
func NewStepQuota(maxSteps int) *StepQuota {
	return &StepQuota{maxSteps: maxSteps}
}

// Check increments the step counter and validates it against the limit.
// Returns StepsExceededError once the limit is passed.
func (q *StepQuota) Check(runID string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			RunID: runID,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset sets the step counter back to 0 for a new run.
func (q *StepQuota) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *StepQuota) Current() int {
	return q.current
}

// MaxSteps returns the configured limit.
func (q *StepQuota) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError ends a run that processed more events than allowed.
// The queue is discarded and the engine returns to idle.
type StepsExceededError struct {
	RunID string
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded max steps quota: %d steps > %d limit",
		e.RunID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
