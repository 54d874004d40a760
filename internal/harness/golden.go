package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/triggersim/internal/ir"
)

// TraceSnapshot captures the complete trace and final state of a scenario
// execution. It is serialized with canonical JSON for deterministic
// comparison.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	FinalTime    float64         `json:"final_time"`
	States       map[string]bool `json:"states"`
	Trace        []ir.TraceEntry `json:"trace"`
}

// NewTraceSnapshot builds the golden snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		FinalTime:    result.Now,
		States:       result.States,
		Trace:        result.Trace,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s)
}

// RunWithGolden executes a scenario and compares its trace against a golden
// file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass as well.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
