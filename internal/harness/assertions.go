package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/triggersim/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []ir.TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", entry.Seq, formatEntry(entry))
		}
	}

	return buf.String()
}

func formatEntry(e ir.TraceEntry) string {
	parts := []string{string(e.Kind), fmt.Sprintf("T=%v", e.Time)}
	if e.Trigger != "" {
		parts = append(parts, "trigger="+e.Trigger)
	}
	if e.Channel != "" {
		parts = append(parts, "channel="+e.Channel)
	}
	if e.Source != "" {
		parts = append(parts, "source="+e.Source)
	}
	if e.Detail != "" {
		parts = append(parts, "detail="+e.Detail)
	}
	return strings.Join(parts, " ")
}

// Matches reports whether entry satisfies every non-empty field of m.
func (m EntryMatch) Matches(entry ir.TraceEntry) bool {
	return (m.Kind == "" || m.Kind == string(entry.Kind)) &&
		(m.Trigger == "" || m.Trigger == entry.Trigger) &&
		(m.Channel == "" || m.Channel == entry.Channel) &&
		(m.Source == "" || m.Source == entry.Source) &&
		(m.RunID == "" || m.RunID == entry.RunID) &&
		(m.Detail == "" || m.Detail == entry.Detail)
}

func (m EntryMatch) String() string {
	var parts []string
	if m.Kind != "" {
		parts = append(parts, "kind="+m.Kind)
	}
	if m.Trigger != "" {
		parts = append(parts, "trigger="+m.Trigger)
	}
	if m.Channel != "" {
		parts = append(parts, "channel="+m.Channel)
	}
	if m.Source != "" {
		parts = append(parts, "source="+m.Source)
	}
	if m.RunID != "" {
		parts = append(parts, "run_id="+m.RunID)
	}
	if m.Detail != "" {
		parts = append(parts, "detail="+m.Detail)
	}
	if len(parts) == 0 {
		return "(any entry)"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// assertState checks a trigger's final state.
func assertState(result *Result, assertion Assertion) error {
	active, ok := result.States[assertion.Trigger]
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("trigger %s to exist", assertion.Trigger),
			Actual:   "trigger not registered",
		}
	}
	if active != *assertion.Active {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s active=%v", assertion.Trigger, *assertion.Active),
			Actual:   fmt.Sprintf("%s active=%v", assertion.Trigger, active),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceContains checks if some trace entry matches.
func assertTraceContains(trace []ir.TraceEntry, assertion Assertion) error {
	for _, entry := range trace {
		if assertion.EntryMatch.Matches(entry) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("entry %s", assertion.EntryMatch),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks if exactly Count entries match.
func assertTraceCount(trace []ir.TraceEntry, assertion Assertion) error {
	count := 0
	for _, entry := range trace {
		if assertion.EntryMatch.Matches(entry) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d entries matching %s", assertion.Count, assertion.EntryMatch),
			Actual:   fmt.Sprintf("%d entries", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the expected entries appear in order.
// Entries don't need to be consecutive (intervening entries are allowed);
// each expected entry matches the first suitable entry after the previous
// match.
func assertTraceOrder(trace []ir.TraceEntry, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Entries {
		found := false
		for pos < len(trace) {
			entry := trace[pos]
			pos++
			if want.Matches(entry) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("entries in order: %v", assertion.Entries),
				Actual:   fmt.Sprintf("entry %d %s not found after the previous match", i, want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertClock checks the final simulated time.
func assertClock(result *Result, assertion Assertion) error {
	if result.Now != *assertion.Time {
		return &AssertionError{
			Type:     AssertClock,
			Expected: fmt.Sprintf("T=%v", *assertion.Time),
			Actual:   fmt.Sprintf("T=%v", result.Now),
		}
	}
	return nil
}

// assertQueueEmpty checks that no events are pending.
func assertQueueEmpty(result *Result) error {
	if result.Pending != 0 {
		return &AssertionError{
			Type:     AssertQueueEmpty,
			Expected: "no pending events",
			Actual:   fmt.Sprintf("%d pending events", result.Pending),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertState:
			if assertion.Active == nil {
				err = fmt.Errorf("assertion[%d]: state requires active", i)
			} else {
				err = assertState(result, assertion)
			}
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertClock:
			if assertion.Time == nil {
				err = fmt.Errorf("assertion[%d]: clock requires time", i)
			} else {
				err = assertClock(result, assertion)
			}
		case AssertQueueEmpty:
			err = assertQueueEmpty(result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
