package testutil

import (
	"context"
	"time"
)

// GatePacer is an engine.Pacer released one step at a time by the test.
//
// Each engine step blocks in Wait until the test calls Release (or the run
// is cancelled). AwaitWaiting lets the test synchronize with the moment the
// engine is parked between popping an event and broadcasting it.
type GatePacer struct {
	waiting chan struct{}
	release chan struct{}
}

// NewGatePacer creates a closed gate.
func NewGatePacer() *GatePacer {
	return &GatePacer{
		waiting: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Wait implements engine.Pacer.
func (g *GatePacer) Wait(ctx context.Context) error {
	select {
	case g.waiting <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitWaiting blocks until the engine parks in Wait, or the timeout
// elapses. Returns false on timeout.
func (g *GatePacer) AwaitWaiting(timeout time.Duration) bool {
	select {
	case <-g.waiting:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Release lets one parked step proceed. Returns false if nothing picked it
// up within the timeout.
func (g *GatePacer) Release(timeout time.Duration) bool {
	select {
	case g.release <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Step waits for the engine to park and releases it.
func (g *GatePacer) Step(timeout time.Duration) bool {
	return g.AwaitWaiting(timeout) && g.Release(timeout)
}
