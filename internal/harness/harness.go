package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/triggersim/internal/engine"
	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/layout"
	"github.com/roach88/triggersim/internal/testutil"
)

// StepTimeout bounds how long a single step may take to go idle.
const StepTimeout = 10 * time.Second

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every engine trace entry, in seq order.
	Trace []ir.TraceEntry `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// States maps each trigger id to its final state.
	States map[string]bool `json:"states"`

	// Now is the final simulated time.
	Now float64 `json:"now"`

	// Pending is the number of events left in the queue.
	Pending int `json:"pending"`

	// Runs lists the finished runs, oldest first.
	Runs []ir.RunRecord `json:"runs"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []ir.TraceEntry{},
		Errors: []string{},
		States: make(map[string]bool),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Harness executes scenarios against a fresh engine.
type Harness struct {
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh engine. An error is returned only when
// the scenario cannot be executed at all (unloadable layout, a step that
// never goes idle); behavioral mismatches are reported in Result.Errors.
//
// Execution flow:
// 1. Load the layout into a fresh engine
// 2. Execute each step and wait for the engine to go idle
// 3. Capture trace and final state
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	snapshots, err := scenarioLayout(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load layout: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	opts := []engine.Option{
		engine.WithPacer(engine.ImmediatePacer{}),
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDGenerator(scenario.RunIDPrefix)),
		engine.WithLogger(logger),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	eng := engine.New(nil, opts...)
	defer eng.Close()

	if err := eng.LoadSnapshot(snapshots); err != nil {
		return nil, fmt.Errorf("failed to load layout: %w", err)
	}

	h := &Harness{engine: eng, logger: logger}
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, err
		}
	}

	result.Trace = eng.Trace()
	result.States = eng.States()
	result.Now = eng.Now()
	result.Pending = eng.QueueLen()
	result.Runs = eng.Runs()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// scenarioLayout returns the snapshots the scenario starts from.
func scenarioLayout(scenario *Scenario) ([]ir.TriggerSnapshot, error) {
	if scenario.Layout != "" {
		return layout.LoadFile(scenario.Layout)
	}
	if len(scenario.Triggers) == 0 {
		return nil, nil
	}
	return layout.FromDocument(scenario.Triggers, layout.FormatYAML)
}

// executeStep applies one step and waits for any run it started. Step
// errors are checked against ExpectError and recorded in result.
func (h *Harness) executeStep(i int, step Step, result *Result) error {
	op := step.Op()
	var err error
	switch op {
	case OpInject:
		err = h.engine.InjectPulse(step.Inject, step.At)
	case OpFire:
		err = h.engine.ManualFire(step.Fire)
	case OpToggle:
		err = h.engine.ToggleTrigger(step.Toggle)
	case OpDelete:
		err = h.engine.DeleteTrigger(step.Delete)
	case OpSet:
		err = h.engine.UpdateTrigger(step.Set.Trigger, step.Set.Field, step.Set.Value)
	case OpReset:
		h.engine.Reset()
	case OpClear:
		h.engine.Clear()
	default:
		return fmt.Errorf("step %d: no operation", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), StepTimeout)
	defer cancel()
	waitErr := h.engine.Wait(ctx)
	if errors.Is(waitErr, context.DeadlineExceeded) {
		return fmt.Errorf("step %d (%s): engine did not go idle within %v", i, op, StepTimeout)
	}
	if waitErr != nil {
		// A run ending on the step quota is a normal outcome; the trace
		// records it as "aborted".
		h.logger.Info("run ended with error", "step", i, "error", waitErr)
	}

	code := ErrorCode(err)
	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, op, err))
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got success", i, op, step.ExpectError))
	case step.ExpectError != "" && code != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %v", i, op, step.ExpectError, err))
	}

	h.logger.Info("step completed", "step", i, "op", op, "error", err)
	return nil
}

// ErrorCode returns the SimError code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	var simErr *engine.SimError
	if errors.As(err, &simErr) {
		return string(simErr.Code)
	}
	return ""
}
