package ir

// TriggerSnapshot is the persisted form of one trigger. A layout is an
// ordered list of snapshots, one per registry entry, in insertion order.
//
// Channel lists are comma-joined strings. WhenTriggered is nil when the
// trigger fires silently.
type TriggerSnapshot struct {
	ID            string  `json:"id" yaml:"id"`
	Delay         float64 `json:"delay" yaml:"delay"`
	ActivateOn    string  `json:"activateOn" yaml:"activateOn"`
	DeactivateOn  string  `json:"deactivateOn" yaml:"deactivateOn"`
	TriggerOn     string  `json:"triggerOn" yaml:"triggerOn"`
	WhenTriggered *string `json:"whenTriggered" yaml:"whenTriggered"`
	InitialState  bool    `json:"initialState" yaml:"initialState"`
	X             float64 `json:"x" yaml:"x"`
	Y             float64 `json:"y" yaml:"y"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
// Convenient for building TriggerSnapshot.WhenTriggered.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TraceKind classifies a trace entry.
type TraceKind string

const (
	TraceInject     TraceKind = "inject"
	TraceManualFire TraceKind = "manual_fire"
	TraceDeliver    TraceKind = "deliver"
	TraceActivate   TraceKind = "activate"
	TraceDeactivate TraceKind = "deactivate"
	TraceFire       TraceKind = "fire"
	TraceSchedule   TraceKind = "schedule"
	TraceUnhandled  TraceKind = "unhandled"
	TraceComplete   TraceKind = "complete"
	TraceAborted    TraceKind = "aborted"
	TraceReset      TraceKind = "reset"
	TraceClear      TraceKind = "clear"
	TraceToggle     TraceKind = "toggle"
	TraceUpdate     TraceKind = "update"
	TraceRejected   TraceKind = "rejected"
)

// TraceEntry is one record of the deterministic simulation trace.
//
// Seq is a logical counter owned by the engine. Time is the simulated clock
// at the moment the entry was recorded (for schedule entries, the time the
// new event will fire). Source is the id of the trigger that produced the
// event being processed, or ExternalSource.
type TraceEntry struct {
	Seq     int64     `json:"seq" yaml:"seq"`
	RunID   string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Kind    TraceKind `json:"kind" yaml:"kind"`
	Time    float64   `json:"time" yaml:"time"`
	Channel string    `json:"channel,omitempty" yaml:"channel,omitempty"`
	Source  string    `json:"source,omitempty" yaml:"source,omitempty"`
	Trigger string    `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Detail  string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// ExternalSource is the source label for pulses injected from outside the
// trigger network.
const ExternalSource = "external"

// RunOutcome describes how a run ended.
type RunOutcome string

const (
	RunCompleted     RunOutcome = "completed"
	RunStepsExceeded RunOutcome = "steps_exceeded"
	RunCancelled     RunOutcome = "cancelled"
)

// RunRecord summarizes one run of the engine, from the stimulus that started
// it to the moment the queue drained (or the run was cancelled).
type RunRecord struct {
	ID         string     `json:"id"`
	LayoutHash string     `json:"layout_hash"`
	Outcome    RunOutcome `json:"outcome"`
	FinalTime  float64    `json:"final_time"`
	Steps      int        `json:"steps"`
}
