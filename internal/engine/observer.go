package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/triggersim/internal/ir"
)

// LogLine is a human-readable log notification. Emphasis marks milestone
// lines (run start, completion, reset). Entry is the trace record the line
// describes.
type LogLine struct {
	Text     string
	Emphasis bool
	Entry    ir.TraceEntry
}

// FlashCue is a transient visual cue for one processed event.
type FlashCue string

const (
	// FlashFire marks the trigger that produced the event being processed.
	FlashFire FlashCue = "fire"

	// FlashListen marks every trigger whose channel sets mention the event's channel.
	FlashListen FlashCue = "listen"
)

// Observer receives the engine's outbound notifications.
//
// Callbacks run synchronously while the engine holds its lock, on whichever
// goroutine performed the operation (the run loop for pulse processing).
// They must return quickly and must not call back into the Engine.
type Observer interface {
	OnLog(line LogLine)
	OnStateChanged(triggerID string, active bool)
	OnFlash(triggerID string, cue FlashCue)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) OnLog(LogLine)               {}
func (NopObserver) OnStateChanged(string, bool) {}
func (NopObserver) OnFlash(string, FlashCue)    {}

// MultiObserver fans notifications out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnLog(line LogLine) {
	for _, o := range m {
		o.OnLog(line)
	}
}

func (m MultiObserver) OnStateChanged(id string, active bool) {
	for _, o := range m {
		o.OnStateChanged(id, active)
	}
}

func (m MultiObserver) OnFlash(id string, cue FlashCue) {
	for _, o := range m {
		o.OnFlash(id, cue)
	}
}

// SlogObserver writes notifications to a structured logger. Log lines go
// out at Info (emphasized) or Debug; state changes and flashes at Debug.
type SlogObserver struct {
	Logger *slog.Logger
}

func (o SlogObserver) OnLog(line LogLine) {
	level := slog.LevelDebug
	if line.Emphasis {
		level = slog.LevelInfo
	}
	o.logger().Log(context.Background(), level, line.Text,
		"kind", line.Entry.Kind,
		"seq", line.Entry.Seq,
		"time", line.Entry.Time,
		"run_id", line.Entry.RunID,
	)
}

func (o SlogObserver) OnStateChanged(id string, active bool) {
	o.logger().Debug("trigger state changed", "trigger", id, "active", active)
}

func (o SlogObserver) OnFlash(id string, cue FlashCue) {
	o.logger().Debug("flash", "trigger", id, "cue", cue)
}

func (o SlogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
