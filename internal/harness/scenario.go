package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Layout is a layout file (.json, .yaml, .cue) relative to the
	// scenario file. Mutually exclusive with Triggers.
	Layout string `yaml:"layout,omitempty"`

	// Triggers is an inline layout in snapshot format.
	Triggers []any `yaml:"triggers,omitempty"`

	// MaxSteps overrides the engine's step quota when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// RunIDPrefix sets the prefix of generated run ids. Default "run".
	RunIDPrefix string `yaml:"run_id_prefix,omitempty"`

	// Steps drive the engine, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one inbound operation. Exactly one operation field must be set.
type Step struct {
	Inject string   `yaml:"inject,omitempty"`
	At     float64  `yaml:"at,omitempty"`
	Fire   string   `yaml:"fire,omitempty"`
	Toggle string   `yaml:"toggle,omitempty"`
	Delete string   `yaml:"delete,omitempty"`
	Set    *SetStep `yaml:"set,omitempty"`
	Reset  bool     `yaml:"reset,omitempty"`
	Clear  bool     `yaml:"clear,omitempty"`

	// ExpectError is the error code the step must fail with
	// (e.g. "TRIGGER_INACTIVE"). Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SetStep edits one field of a trigger.
type SetStep struct {
	Trigger string `yaml:"trigger"`
	Field   string `yaml:"field"`
	Value   string `yaml:"value"`
}

// Step operation names.
const (
	OpInject = "inject"
	OpFire   = "fire"
	OpToggle = "toggle"
	OpDelete = "delete"
	OpSet    = "set"
	OpReset  = "reset"
	OpClear  = "clear"
)

// Op returns the operation the step performs, or "" if none or several
// operations are set.
func (s Step) Op() string {
	var ops []string
	if s.Inject != "" {
		ops = append(ops, OpInject)
	}
	if s.Fire != "" {
		ops = append(ops, OpFire)
	}
	if s.Toggle != "" {
		ops = append(ops, OpToggle)
	}
	if s.Delete != "" {
		ops = append(ops, OpDelete)
	}
	if s.Set != nil {
		ops = append(ops, OpSet)
	}
	if s.Reset {
		ops = append(ops, OpReset)
	}
	if s.Clear {
		ops = append(ops, OpClear)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// EntryMatch selects trace entries. Empty fields match anything.
type EntryMatch struct {
	Kind    string `yaml:"kind,omitempty"`
	Trigger string `yaml:"trigger,omitempty"`
	Channel string `yaml:"channel,omitempty"`
	Source  string `yaml:"source,omitempty"`
	RunID   string `yaml:"run_id,omitempty"`
	Detail  string `yaml:"detail,omitempty"`
}

// Assertion validates the final trace or state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "state": Trigger must have state Active
	// - "trace_contains": an entry matches the inline EntryMatch
	// - "trace_count": exactly Count entries match the inline EntryMatch
	// - "trace_order": Entries match, in order (not necessarily consecutive)
	// - "clock": the final simulated time equals Time
	// - "queue_empty": no pending events
	Type string `yaml:"type"`

	EntryMatch `yaml:",inline"`

	// Active is the expected state (used by state).
	Active *bool `yaml:"active,omitempty"`

	// Count is the expected number of matches (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Entries is the expected order (used by trace_order).
	Entries []EntryMatch `yaml:"entries,omitempty"`

	// Time is the expected clock (used by clock).
	Time *float64 `yaml:"time,omitempty"`
}

// Assertion type constants.
const (
	AssertState         = "state"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
	AssertClock         = "clock"
	AssertQueueEmpty    = "queue_empty"
)

// LoadScenario reads and parses a scenario YAML file, resolving the layout
// path relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Layout != "" && !filepath.IsAbs(scenario.Layout) {
		scenario.Layout = filepath.Join(filepath.Dir(path), scenario.Layout)
	}
	if scenario.Layout != "" {
		if _, err := os.Stat(scenario.Layout); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: layout file not found: %s", scenario.Layout)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Layout paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Layout != "" && len(s.Triggers) > 0 {
		return fmt.Errorf("layout and triggers are mutually exclusive")
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op() == "" {
			return fmt.Errorf("steps[%d]: exactly one of inject, fire, toggle, delete, set, reset, clear is required", i)
		}
		if step.Set != nil && (step.Set.Trigger == "" || step.Set.Field == "") {
			return fmt.Errorf("steps[%d].set: trigger and field are required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.Trigger == "" {
			return fmt.Errorf("assertions[%d]: trigger is required for state", index)
		}
		if a.Active == nil {
			return fmt.Errorf("assertions[%d]: active is required for state", index)
		}
	case AssertTraceContains:
		if a.EntryMatch == (EntryMatch{}) {
			return fmt.Errorf("assertions[%d]: at least one entry field is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Entries) == 0 {
			return fmt.Errorf("assertions[%d]: entries list is required for trace_order", index)
		}
	case AssertClock:
		if a.Time == nil {
			return fmt.Errorf("assertions[%d]: time is required for clock", index)
		}
	case AssertQueueEmpty:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
