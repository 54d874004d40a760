package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/triggersim/internal/channel"
	"github.com/roach88/triggersim/internal/ir"
)

// Config is the user-editable configuration of a trigger.
type Config struct {
	ID            string
	Delay         float64
	ActivateOn    []string
	DeactivateOn  []string
	TriggerOn     []string
	WhenTriggered string // empty: fires silently
	InitialState  bool
	X, Y          float64
}

// ConfigFromSnapshot converts a persisted snapshot into a Config, parsing the
// comma-joined channel lists.
func ConfigFromSnapshot(s ir.TriggerSnapshot) Config {
	cfg := Config{
		ID:           s.ID,
		Delay:        s.Delay,
		ActivateOn:   channel.Parse(s.ActivateOn),
		DeactivateOn: channel.Parse(s.DeactivateOn),
		TriggerOn:    channel.Parse(s.TriggerOn),
		InitialState: s.InitialState,
		X:            s.X,
		Y:            s.Y,
	}
	if s.WhenTriggered != nil {
		cfg.WhenTriggered = strings.TrimSpace(*s.WhenTriggered)
	}
	return cfg
}

// validate checks the invariants a registry entry must satisfy.
func (c Config) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return &SimError{Code: ErrCodeInvalidID, Message: "trigger id must not be empty"}
	}
	if err := validateDelay(c.Delay); err != nil {
		err.TriggerID = c.ID
		return err
	}
	return nil
}

func validateDelay(d float64) *SimError {
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return &SimError{
			Code:    ErrCodeInvalidDelay,
			Message: fmt.Sprintf("delay must be a non-negative number, got %v", d),
		}
	}
	return nil
}

// PulseResult reports what a trigger did with one pulse.
type PulseResult struct {
	// Activated is set when the channel is in ActivateOn.
	Activated bool

	// Deactivated is set when the channel is in DeactivateOn.
	Deactivated bool

	// Fired is set when the channel is in TriggerOn and the trigger was
	// active after activation and deactivation were applied.
	Fired bool

	// Scheduled is the follow-on event pushed by a fire, nil for a silent fire.
	Scheduled *Event

	// Changed is set when the trigger's state differs from before the pulse.
	Changed bool
}

// Handled reports whether any of the three conditions matched.
func (r PulseResult) Handled() bool {
	return r.Activated || r.Deactivated || r.Fired
}

// Trigger is a single addressable automaton: a configuration plus a boolean
// activation state.
//
// State changes only through HandlePulse (activation/deactivation), Toggle
// (which also rewrites the initial state) and Reset (which restores it).
//
// Trigger is not safe for concurrent use; the Engine serializes access.
type Trigger struct {
	cfg   Config
	state bool
}

// NewTrigger creates a trigger in its initial state.
// The channel lists are copied.
func NewTrigger(cfg Config) *Trigger {
	cfg.ActivateOn = channel.Clone(cfg.ActivateOn)
	cfg.DeactivateOn = channel.Clone(cfg.DeactivateOn)
	cfg.TriggerOn = channel.Clone(cfg.TriggerOn)
	return &Trigger{cfg: cfg, state: cfg.InitialState}
}

// ID returns the trigger's immutable id.
func (t *Trigger) ID() string { return t.cfg.ID }

// Active reports the current state.
func (t *Trigger) Active() bool { return t.state }

// InitialState returns the state restored by Reset.
func (t *Trigger) InitialState() bool { return t.cfg.InitialState }

// Config returns a copy of the trigger's configuration.
func (t *Trigger) Config() Config {
	cfg := t.cfg
	cfg.ActivateOn = channel.Clone(cfg.ActivateOn)
	cfg.DeactivateOn = channel.Clone(cfg.DeactivateOn)
	cfg.TriggerOn = channel.Clone(cfg.TriggerOn)
	return cfg
}

// HandlePulse evaluates one pulse on channel ch at time now.
//
// The three conditions are checked in fixed order and all may apply to the
// same pulse:
//  1. ch in ActivateOn: state becomes active
//  2. ch in DeactivateOn: state becomes inactive (so deactivation wins when
//     a channel is in both sets)
//  3. ch in TriggerOn and the state after steps 1-2 is active: the trigger
//     fires, pushing {now+Delay, WhenTriggered, ID} into q unless
//     WhenTriggered is empty
func (t *Trigger) HandlePulse(ch string, q Scheduler, now float64) PulseResult {
	before := t.state
	var res PulseResult

	if channel.Contains(t.cfg.ActivateOn, ch) {
		t.state = true
		res.Activated = true
	}
	if channel.Contains(t.cfg.DeactivateOn, ch) {
		t.state = false
		res.Deactivated = true
	}
	if channel.Contains(t.cfg.TriggerOn, ch) && t.state {
		res.Fired = true
		res.Scheduled = t.schedule(q, now)
	}

	res.Changed = t.state != before
	return res
}

// Fire performs a manual fire: it schedules the follow-on event exactly as
// a TriggerOn match would, without requiring a channel match.
// Returns a TRIGGER_INACTIVE error if the trigger is not active, and a nil
// event for a silent fire.
func (t *Trigger) Fire(q Scheduler, now float64) (*Event, error) {
	if !t.state {
		return nil, &SimError{
			Code:      ErrCodeTriggerInactive,
			Message:   "manual fire requires an active trigger",
			TriggerID: t.cfg.ID,
		}
	}
	return t.schedule(q, now), nil
}

func (t *Trigger) schedule(q Scheduler, now float64) *Event {
	if t.cfg.WhenTriggered == "" {
		return nil
	}
	ev := Event{
		Time:     now + t.cfg.Delay,
		Channel:  t.cfg.WhenTriggered,
		SourceID: t.cfg.ID,
	}
	q.Push(ev)
	return &ev
}

// Reset restores the initial state. Returns true if the state changed.
func (t *Trigger) Reset() bool {
	changed := t.state != t.cfg.InitialState
	t.state = t.cfg.InitialState
	return changed
}

// Toggle flips the state and makes the new state the initial state.
// Returns the new state.
func (t *Trigger) Toggle() bool {
	t.state = !t.state
	t.cfg.InitialState = t.state
	return t.state
}

// Listens reports whether ch appears in any of the trigger's channel sets.
func (t *Trigger) Listens(ch string) bool {
	return channel.Contains(t.cfg.ActivateOn, ch) ||
		channel.Contains(t.cfg.DeactivateOn, ch) ||
		channel.Contains(t.cfg.TriggerOn, ch)
}

// Snapshot returns the persisted form of the trigger.
func (t *Trigger) Snapshot() ir.TriggerSnapshot {
	return ir.TriggerSnapshot{
		ID:            t.cfg.ID,
		Delay:         t.cfg.Delay,
		ActivateOn:    channel.Join(t.cfg.ActivateOn),
		DeactivateOn:  channel.Join(t.cfg.DeactivateOn),
		TriggerOn:     channel.Join(t.cfg.TriggerOn),
		WhenTriggered: ir.StringPtr(t.cfg.WhenTriggered),
		InitialState:  t.cfg.InitialState,
		X:             t.cfg.X,
		Y:             t.cfg.Y,
	}
}

// Editable field names, as they appear in the snapshot format.
const (
	FieldDelay         = "delay"
	FieldActivateOn    = "activateOn"
	FieldDeactivateOn  = "deactivateOn"
	FieldTriggerOn     = "triggerOn"
	FieldWhenTriggered = "whenTriggered"
	FieldInitialState  = "initialState"
	FieldX             = "x"
	FieldY             = "y"
)

// Fields lists the editable field names.
var Fields = []string{
	FieldDelay, FieldActivateOn, FieldDeactivateOn, FieldTriggerOn,
	FieldWhenTriggered, FieldInitialState, FieldX, FieldY,
}

// setField applies a form-style edit. Values arrive as strings; channel
// lists use the comma-joined form. Setting initialState also sets the
// current state, like Toggle. Returns true if the state changed.
func (t *Trigger) setField(field, value string) (bool, error) {
	invalid := func(err error) *SimError {
		return &SimError{
			Code:      ErrCodeInvalidValue,
			Message:   fmt.Sprintf("invalid value %q for %s: %v", value, field, err),
			TriggerID: t.cfg.ID,
		}
	}

	switch field {
	case FieldDelay:
		d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false, invalid(err)
		}
		if serr := validateDelay(d); serr != nil {
			serr.TriggerID = t.cfg.ID
			return false, serr
		}
		t.cfg.Delay = d
	case FieldActivateOn:
		t.cfg.ActivateOn = channel.Parse(value)
	case FieldDeactivateOn:
		t.cfg.DeactivateOn = channel.Parse(value)
	case FieldTriggerOn:
		t.cfg.TriggerOn = channel.Parse(value)
	case FieldWhenTriggered:
		t.cfg.WhenTriggered = strings.TrimSpace(value)
	case FieldInitialState:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return false, invalid(err)
		}
		changed := t.state != b
		t.cfg.InitialState = b
		t.state = b
		return changed, nil
	case FieldX, FieldY:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false, invalid(err)
		}
		if field == FieldX {
			t.cfg.X = f
		} else {
			t.cfg.Y = f
		}
	default:
		return false, &SimError{
			Code:      ErrCodeUnknownField,
			Message:   fmt.Sprintf("unknown field %q (valid: %s)", field, strings.Join(Fields, ", ")),
			TriggerID: t.cfg.ID,
		}
	}
	return false, nil
}
