package engine

import (
	"context"
	"time"
)

// Pacer controls the wall-clock pacing of the run loop. The engine calls
// Wait once per event, after popping it and before broadcasting it, so a
// presentation layer can show each step. Pacing never affects the logical
// order of events.
//
// Wait must return ctx.Err() promptly when ctx is cancelled; cancellation is
// how Reset revokes a pending delivery.
type Pacer interface {
	Wait(ctx context.Context) error
}

// ImmediatePacer never waits. Use it for tests and headless runs.
type ImmediatePacer struct{}

// Wait returns immediately, or the context error if ctx is already done.
func (ImmediatePacer) Wait(ctx context.Context) error {
	return ctx.Err()
}

// IntervalPacer waits a fixed interval per step.
type IntervalPacer struct {
	Interval time.Duration
}

// Wait blocks for the interval or until ctx is cancelled.
func (p IntervalPacer) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewPacer returns an IntervalPacer for positive d and an ImmediatePacer
// otherwise.
func NewPacer(d time.Duration) Pacer {
	if d <= 0 {
		return ImmediatePacer{}
	}
	return IntervalPacer{Interval: d}
}
