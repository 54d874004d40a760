package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/roach88/triggersim/internal/ir"
)

// Engine is the discrete-event simulator for one trigger network.
//
// An external stimulus (InjectPulse, ManualFire) pushes an event and starts a
// run. The run loop pops the earliest event, advances the clock, waits on
// the Pacer, then broadcasts the channel to every trigger in registry order.
// Events scheduled by firing triggers join the queue. The run ends when the
// queue is empty.
//
// Thread-safety model:
//   - All methods are safe to call from any goroutine.
//   - The run loop executes on a goroutine owned by the engine.
//   - Broadcasting one event is atomic with respect to every other method.
//   - Observer callbacks run with the engine lock held; see Observer.
//
// INVARIANTS:
//   - At most one run is in progress; starting a second is rejected, not queued
//   - Trigger edits, toggles, adds and deletes are rejected while running
//   - Events are delivered in non-decreasing time, FIFO for equal times
//   - After Reset, Clear or Close no stale delivery touches engine state
type Engine struct {
	mu       sync.Mutex
	registry *Registry
	queue    *EventQueue
	clock    *Clock
	pacer    Pacer
	observer Observer
	runIDs   RunIDGenerator
	logger   *slog.Logger
	quota    *StepQuota

	running    bool
	closed     bool
	gen        uint64 // bumped whenever a run starts or is cancelled
	cancel     context.CancelFunc
	idle       chan struct{}
	runID      string
	layoutHash string
	runErr     error

	seq   int64
	trace []ir.TraceEntry
	runs  []ir.RunRecord
}

// Option configures an Engine.
type Option func(*Engine)

// WithPacer sets the step pacer. Default: ImmediatePacer.
func WithPacer(p Pacer) Option {
	return func(e *Engine) {
		if p != nil {
			e.pacer = p
		}
	}
}

// WithObserver sets the notification observer. Default: NopObserver.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithMaxSteps sets the maximum number of events processed per run.
// Zero or less disables the limit. Default: DefaultMaxSteps.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.quota = NewStepQuota(maxSteps)
	}
}

// WithRunIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an idle engine over the given registry. A nil registry starts
// empty. The engine takes over the registry; callers must not use it
// directly afterwards.
func New(reg *Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	e := &Engine{
		registry: reg,
		queue:    NewEventQueue(),
		clock:    NewClock(),
		pacer:    ImmediatePacer{},
		observer: NopObserver{},
		runIDs:   UUIDv7Generator{},
		logger:   slog.Default(),
		quota:    NewStepQuota(DefaultMaxSteps),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InjectPulse schedules an external pulse on channel at time at and starts a
// run. Rejected with RUN_IN_PROGRESS if a run is already in progress; the
// queue is left unchanged.
func (e *Engine) InjectPulse(channel string, at float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return newClosedError()
	}
	if e.running {
		err := newRunInProgressError("inject pulse")
		err.Channel = channel
		e.reject(ir.TraceEntry{Channel: channel}, err,
			fmt.Sprintf("Simulation already running; pulse '%s' ignored", channel))
		return err
	}

	e.beginRunLocked()
	e.queue.Push(Event{Time: at, Channel: channel, SourceID: ir.ExternalSource})
	e.note(ir.TraceEntry{Kind: ir.TraceInject, Time: at, Channel: channel, Source: ir.ExternalSource}, true,
		fmt.Sprintf("Pulse '%s' injected at T=%s", channel, formatTime(at)))
	e.startLocked()
	return nil
}

// ManualFire fires the trigger with the given id as if its TriggerOn
// condition had matched, and starts a run for the scheduled event.
//
// Rejected with RUN_IN_PROGRESS while running, UNKNOWN_TRIGGER for an
// unregistered id, and TRIGGER_INACTIVE when the trigger is not active.
// A trigger without WhenTriggered fires silently and no run starts.
func (e *Engine) ManualFire(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return newClosedError()
	}
	if e.running {
		err := newRunInProgressError("manual fire")
		err.TriggerID = id
		e.reject(ir.TraceEntry{Trigger: id}, err,
			fmt.Sprintf("Simulation already running; manual fire of %s ignored", id))
		return err
	}
	t, ok := e.registry.Get(id)
	if !ok {
		return newUnknownTriggerError(id)
	}

	now := e.clock.Now()
	cfg := t.Config()
	if !t.Active() {
		_, err := t.Fire(e.queue, now)
		e.reject(ir.TraceEntry{Trigger: id}, err,
			fmt.Sprintf("%s is not active; manual fire ignored", id))
		return err
	}

	if cfg.WhenTriggered == "" {
		if _, err := t.Fire(e.queue, now); err != nil {
			return err
		}
		e.note(ir.TraceEntry{Kind: ir.TraceManualFire, Time: now, Trigger: id, Detail: "silent"}, true,
			fmt.Sprintf("%s fired manually (no output channel)", id))
		e.observer.OnFlash(id, FlashFire)
		return nil
	}

	e.beginRunLocked()
	ev, err := t.Fire(e.queue, now)
	if err != nil {
		return err
	}
	e.note(ir.TraceEntry{Kind: ir.TraceManualFire, Time: now, Trigger: id, Channel: ev.Channel}, true,
		fmt.Sprintf("%s fired manually", id))
	e.noteScheduled(*ev)
	e.startLocked()
	return nil
}

// beginRunLocked assigns the id of the run about to start, so the entries
// recorded while seeding the queue carry it.
func (e *Engine) beginRunLocked() {
	e.runID = e.runIDs.Generate()
	hash, err := ir.LayoutHash(e.registry.Serialize())
	if err != nil {
		e.logger.Warn("layout hash failed", "error", err)
	}
	e.layoutHash = hash
}

// startLocked moves the engine from idle to running and spawns the loop.
func (e *Engine) startLocked() {
	e.running = true
	e.gen++
	e.runErr = nil
	e.quota.Reset()
	e.idle = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.logger.Debug("run starting", "run_id", e.runID, "queue_len", e.queue.Len())
	go e.loop(ctx, e.gen)
}

// loop drains the queue for one run. It exits as soon as it observes that
// its generation is stale, without touching state.
func (e *Engine) loop(ctx context.Context, gen uint64) {
	for {
		ev, ok := e.next(gen)
		if !ok {
			return
		}
		if err := e.pacer.Wait(ctx); err != nil {
			return
		}
		if !e.deliver(gen, ev) {
			return
		}
	}
}

// next pops the earliest event, advances the clock and issues the flash
// cues. Returns false when the run is over or stale.
func (e *Engine) next(gen uint64) (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen || !e.running {
		return Event{}, false
	}

	ev, ok := e.queue.PopMin()
	if !ok {
		now := e.clock.Now()
		e.note(ir.TraceEntry{Kind: ir.TraceComplete, Time: now}, true,
			fmt.Sprintf("Simulation complete at T=%s", formatTime(now)))
		e.finishLocked(ir.RunCompleted, nil)
		return Event{}, false
	}

	if err := e.quota.Check(e.runID); err != nil {
		e.queue.Clear()
		e.note(ir.TraceEntry{Kind: ir.TraceAborted, Time: e.clock.Now(), Detail: err.Error()}, true,
			fmt.Sprintf("Simulation aborted: %v", err))
		e.logger.Error("max steps quota exceeded",
			"run_id", e.runID,
			"steps", e.quota.Current(),
			"limit", e.quota.MaxSteps(),
		)
		e.finishLocked(ir.RunStepsExceeded, err)
		return Event{}, false
	}

	e.clock.Advance(ev.Time)
	e.note(ir.TraceEntry{Kind: ir.TraceDeliver, Time: ev.Time, Channel: ev.Channel, Source: ev.SourceID}, false,
		fmt.Sprintf("T=%s: pulse '%s' from %s", formatTime(ev.Time), ev.Channel, ev.SourceID))
	e.flashLocked(ev)
	return ev, true
}

// deliver broadcasts a popped event. Returns false if the run was cancelled
// while the pacer was waiting.
func (e *Engine) deliver(gen uint64, ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen || !e.running {
		return false
	}
	e.broadcastLocked(ev)
	return true
}

// broadcastLocked presents ev.Channel to every trigger in registry order.
// The registry is snapshotted first so the iteration is stable.
func (e *Engine) broadcastLocked(ev Event) {
	now := e.clock.Now()
	handled := false

	for _, t := range e.registry.Triggers() {
		res := t.HandlePulse(ev.Channel, e.queue, now)
		id := t.ID()

		if res.Activated {
			e.note(ir.TraceEntry{Kind: ir.TraceActivate, Time: now, Channel: ev.Channel, Source: ev.SourceID, Trigger: id}, false,
				fmt.Sprintf("%s activated by '%s'", id, ev.Channel))
		}
		if res.Deactivated {
			e.note(ir.TraceEntry{Kind: ir.TraceDeactivate, Time: now, Channel: ev.Channel, Source: ev.SourceID, Trigger: id}, false,
				fmt.Sprintf("%s deactivated by '%s'", id, ev.Channel))
		}
		if res.Changed {
			e.observer.OnStateChanged(id, t.Active())
		}
		if res.Fired {
			if res.Scheduled == nil {
				e.note(ir.TraceEntry{Kind: ir.TraceFire, Time: now, Channel: ev.Channel, Source: ev.SourceID, Trigger: id, Detail: "silent"}, false,
					fmt.Sprintf("%s triggered by '%s' (no output channel)", id, ev.Channel))
			} else {
				e.note(ir.TraceEntry{Kind: ir.TraceFire, Time: now, Channel: ev.Channel, Source: ev.SourceID, Trigger: id}, false,
					fmt.Sprintf("%s triggered by '%s'", id, ev.Channel))
				e.noteScheduled(*res.Scheduled)
			}
		}
		handled = handled || res.Handled()
	}

	if !handled {
		e.note(ir.TraceEntry{Kind: ir.TraceUnhandled, Time: now, Channel: ev.Channel, Source: ev.SourceID}, false,
			fmt.Sprintf("No trigger handled pulse '%s'", ev.Channel))
	}
}

func (e *Engine) noteScheduled(ev Event) {
	e.note(ir.TraceEntry{Kind: ir.TraceSchedule, Time: ev.Time, Channel: ev.Channel, Trigger: ev.SourceID}, false,
		fmt.Sprintf("%s scheduled '%s' at T=%s", ev.SourceID, ev.Channel, formatTime(ev.Time)))
}

// flashLocked issues the per-event flash cues: fire on the event's source,
// listen on every trigger that mentions the channel. Injected pulses have no
// source to flash, even when a trigger is named like the external label.
func (e *Engine) flashLocked(ev Event) {
	if ev.SourceID != ir.ExternalSource {
		if _, ok := e.registry.Get(ev.SourceID); ok {
			e.observer.OnFlash(ev.SourceID, FlashFire)
		}
	}
	for _, t := range e.registry.Triggers() {
		if t.Listens(ev.Channel) {
			e.observer.OnFlash(t.ID(), FlashListen)
		}
	}
}

// finishLocked moves the engine from running to idle and records the run.
func (e *Engine) finishLocked(outcome ir.RunOutcome, err error) {
	e.runs = append(e.runs, ir.RunRecord{
		ID:         e.runID,
		LayoutHash: e.layoutHash,
		Outcome:    outcome,
		FinalTime:  e.clock.Now(),
		Steps:      e.quota.Current(),
	})
	e.logger.Debug("run finished", "run_id", e.runID, "outcome", outcome, "steps", e.quota.Current())

	e.running = false
	e.runErr = err
	e.runID = ""
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	close(e.idle)
}

// cancelRunLocked revokes an in-flight run: the loop goroutine sees a stale
// generation (or a cancelled pacer) and exits without touching state.
func (e *Engine) cancelRunLocked() {
	if !e.running {
		return
	}
	e.gen++
	e.finishLocked(ir.RunCancelled, nil)
	e.runErr = nil
}

// Wait blocks until the engine is idle and returns the error that ended the
// most recent run (a StepsExceededError), or nil.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		err := e.runErr
		e.mu.Unlock()
		return err
	}
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-idle:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// Reset cancels any in-flight run, empties the queue, rewinds the clock to
// 0 and restores every trigger to its initial state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelRunLocked()
	e.queue.Clear()
	e.clock.Reset()
	for _, t := range e.registry.Triggers() {
		if t.Reset() {
			e.observer.OnStateChanged(t.ID(), t.Active())
		}
	}
	e.note(ir.TraceEntry{Kind: ir.TraceReset}, true, "Simulation reset")
}

// Clear cancels any in-flight run, empties the queue, rewinds the clock and
// removes every trigger.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked()
}

func (e *Engine) clearLocked() {
	e.cancelRunLocked()
	e.queue.Clear()
	e.clock.Reset()
	e.registry.Clear()
	e.note(ir.TraceEntry{Kind: ir.TraceClear}, true, "All triggers cleared")
}

// Close cancels any in-flight run. Every later operation that would start a
// run or edit triggers fails with ENGINE_CLOSED.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelRunLocked()
	e.queue.Clear()
	e.closed = true
}

// AddTrigger registers a new trigger. Rejected while running.
func (e *Engine) AddTrigger(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.editableLocked("add trigger"); err != nil {
		return err
	}
	t, err := e.registry.Add(cfg)
	if err != nil {
		e.logger.Warn("trigger rejected", "trigger", cfg.ID, "error", err)
		return err
	}
	e.observer.OnStateChanged(t.ID(), t.Active())
	return nil
}

// DeleteTrigger removes a trigger. Deleting an absent id is a no-op.
// Rejected while running.
func (e *Engine) DeleteTrigger(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.editableLocked("delete trigger"); err != nil {
		return err
	}
	e.registry.Delete(id)
	return nil
}

// SelectTrigger marks a trigger as selected for the presentation layer.
func (e *Engine) SelectTrigger(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Select(id)
}

// Selected returns the selected trigger id, or "".
func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Selected()
}

// UpdateTrigger edits one field of a trigger. Field names and value formats
// follow the snapshot format; see Fields. Rejected while running.
func (e *Engine) UpdateTrigger(id, field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.editableLocked("edit trigger"); err != nil {
		return err
	}
	t, ok := e.registry.Get(id)
	if !ok {
		return newUnknownTriggerError(id)
	}
	changed, err := t.setField(field, value)
	if err != nil {
		return err
	}
	if changed {
		e.observer.OnStateChanged(id, t.Active())
	}
	e.note(ir.TraceEntry{Kind: ir.TraceUpdate, Time: e.clock.Now(), Trigger: id, Detail: field + "=" + value}, false,
		fmt.Sprintf("%s: %s set to %q", id, field, value))
	return nil
}

// ToggleTrigger flips a trigger's state and makes it the new initial state.
// Rejected while running.
func (e *Engine) ToggleTrigger(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.editableLocked("toggle trigger"); err != nil {
		return err
	}
	t, ok := e.registry.Get(id)
	if !ok {
		return newUnknownTriggerError(id)
	}
	active := t.Toggle()
	e.observer.OnStateChanged(id, active)
	e.note(ir.TraceEntry{Kind: ir.TraceToggle, Time: e.clock.Now(), Trigger: id, Detail: strconv.FormatBool(active)}, false,
		fmt.Sprintf("%s toggled %s", id, stateName(active)))
	return nil
}

// editableLocked rejects edits while running or after Close.
func (e *Engine) editableLocked(op string) error {
	if e.closed {
		return newClosedError()
	}
	if e.running {
		err := newRunInProgressError(op)
		e.reject(ir.TraceEntry{}, err, fmt.Sprintf("Cannot %s while the simulation is running", op))
		return err
	}
	return nil
}

// Snapshot serializes all triggers in registry order.
func (e *Engine) Snapshot() []ir.TriggerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Serialize()
}

// LoadSnapshot replaces the registry contents with the given layout: any run
// is cancelled and all triggers removed, then each snapshot is added in
// order. Entries with an empty or duplicate id are skipped and reported in
// the returned (joined) error; the remaining entries are loaded.
//
// Callers are expected to have validated the layout format as a whole
// before calling (see package layout), so a malformed file never clears the
// current state.
func (e *Engine) LoadSnapshot(snapshots []ir.TriggerSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return newClosedError()
	}
	e.clearLocked()

	var errs []error
	for i, s := range snapshots {
		t, err := e.registry.Add(ConfigFromSnapshot(s))
		if err != nil {
			e.reject(ir.TraceEntry{Trigger: s.ID}, err, fmt.Sprintf("Layout entry %d skipped: %v", i, err))
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		e.observer.OnStateChanged(t.ID(), t.Active())
	}
	return errors.Join(errs...)
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Now returns the simulated time.
func (e *Engine) Now() float64 {
	return e.clock.Now()
}

// QueueLen returns the number of pending events.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// Pending returns the pending events in delivery order.
func (e *Engine) Pending() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Pending()
}

// TriggerState returns the current state of a trigger.
func (e *Engine) TriggerState(id string) (active bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.registry.Get(id)
	if !ok {
		return false, false
	}
	return t.Active(), true
}

// States returns the current state of every trigger, keyed by id.
func (e *Engine) States() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool, e.registry.Len())
	for _, t := range e.registry.Triggers() {
		out[t.ID()] = t.Active()
	}
	return out
}

// TriggerIDs returns the registered ids in registry order.
func (e *Engine) TriggerIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.IDs()
}

// TriggerConfig returns a copy of a trigger's configuration.
func (e *Engine) TriggerConfig(id string) (Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.registry.Get(id)
	if !ok {
		return Config{}, false
	}
	return t.Config(), true
}

// Trace returns a copy of every trace entry recorded so far.
func (e *Engine) Trace() []ir.TraceEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ir.TraceEntry, len(e.trace))
	copy(out, e.trace)
	return out
}

// RunTrace returns the trace entries of one run.
func (e *Engine) RunTrace(runID string) []ir.TraceEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []ir.TraceEntry
	for _, entry := range e.trace {
		if entry.RunID == runID {
			out = append(out, entry)
		}
	}
	return out
}

// Runs returns the records of every finished run, oldest first.
func (e *Engine) Runs() []ir.RunRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ir.RunRecord, len(e.runs))
	copy(out, e.runs)
	return out
}

// note appends a trace entry, stamping seq and run id, and emits the log line.
func (e *Engine) note(entry ir.TraceEntry, emphasis bool, text string) {
	e.seq++
	entry.Seq = e.seq
	entry.RunID = e.runID
	e.trace = append(e.trace, entry)

	e.logger.Debug(text,
		"kind", entry.Kind,
		"seq", entry.Seq,
		"time", entry.Time,
		"run_id", entry.RunID,
	)
	e.observer.OnLog(LogLine{Text: text, Emphasis: emphasis, Entry: entry})
}

// reject records a rejected operation as a diagnostic.
func (e *Engine) reject(entry ir.TraceEntry, err error, text string) {
	entry.Kind = ir.TraceRejected
	entry.Time = e.clock.Now()
	entry.Detail = err.Error()
	e.logger.Warn("operation rejected", "error", err)
	e.note(entry, false, text)
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

func stateName(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
