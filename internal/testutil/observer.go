package testutil

import (
	"sync"

	"github.com/roach88/triggersim/internal/engine"
)

// StateChange is one recorded OnStateChanged notification.
type StateChange struct {
	TriggerID string
	Active    bool
}

// Flash is one recorded OnFlash notification.
type Flash struct {
	TriggerID string
	Cue       engine.FlashCue
}

// RecordingObserver records every engine notification for later assertions.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// The engine calls it from its run goroutine while tests read from theirs.
type RecordingObserver struct {
	mu      sync.Mutex
	logs    []engine.LogLine
	states  []StateChange
	flashes []Flash
}

// NewRecordingObserver creates an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (r *RecordingObserver) OnLog(line engine.LogLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, line)
}

func (r *RecordingObserver) OnStateChanged(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, StateChange{TriggerID: id, Active: active})
}

func (r *RecordingObserver) OnFlash(id string, cue engine.FlashCue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flashes = append(r.flashes, Flash{TriggerID: id, Cue: cue})
}

// Logs returns a copy of the recorded log lines.
func (r *RecordingObserver) Logs() []engine.LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.LogLine(nil), r.logs...)
}

// LogTexts returns the text of every recorded log line.
func (r *RecordingObserver) LogTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.logs))
	for i, l := range r.logs {
		out[i] = l.Text
	}
	return out
}

// StateChanges returns a copy of the recorded state changes.
func (r *RecordingObserver) StateChanges() []StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StateChange(nil), r.states...)
}

// Flashes returns a copy of the recorded flash cues.
func (r *RecordingObserver) Flashes() []Flash {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Flash(nil), r.flashes...)
}

// Reset discards everything recorded so far.
func (r *RecordingObserver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = nil
	r.states = nil
	r.flashes = nil
}
