package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/triggersim/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestLayout creates a two-trigger relay layout.
func createTestLayout() []ir.TriggerSnapshot {
	return []ir.TriggerSnapshot{
		{ID: "A", Delay: 1, TriggerOn: "go", WhenTriggered: ir.StringPtr("b"), InitialState: true},
		{ID: "B", ActivateOn: "b", X: 12.5},
	}
}

// createTestRun creates a completed run over layout with n trace entries
// starting at firstSeq.
func createTestRun(t *testing.T, id string, layout []ir.TriggerSnapshot, firstSeq int64, n int) (ir.RunRecord, []ir.TraceEntry) {
	t.Helper()
	run := ir.RunRecord{
		ID:         id,
		LayoutHash: ir.MustLayoutHash(layout),
		Outcome:    ir.RunCompleted,
		FinalTime:  1,
		Steps:      n,
	}
	entries := make([]ir.TraceEntry, n)
	for i := range entries {
		entries[i] = ir.TraceEntry{
			Seq:     firstSeq + int64(i),
			RunID:   id,
			Kind:    ir.TraceDeliver,
			Time:    float64(i) / 2,
			Channel: "go",
			Source:  ir.ExternalSource,
		}
	}
	return run, entries
}
