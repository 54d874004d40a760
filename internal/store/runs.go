package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/triggersim/internal/ir"
)

// WriteRun stores a finished run, the layout it ran against and its trace
// entries in one transaction. Entries must all belong to run.ID.
//
// The layout's hash must equal run.LayoutHash. Writing the same run twice
// is a no-op (ON CONFLICT DO NOTHING).
func (s *Store) WriteRun(ctx context.Context, run ir.RunRecord, layout []ir.TriggerSnapshot, entries []ir.TraceEntry) error {
	if run.ID == "" {
		return fmt.Errorf("write run: id must not be empty")
	}
	for _, e := range entries {
		if e.RunID != run.ID {
			return fmt.Errorf("write run %s: trace entry %d belongs to run %q", run.ID, e.Seq, e.RunID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	hash, err := putLayout(ctx, tx, layout)
	if err != nil {
		return err
	}
	if hash != run.LayoutHash {
		return fmt.Errorf("write run %s: layout hash %s does not match run layout %s", run.ID, hash, run.LayoutHash)
	}

	var firstSeq int64
	if len(entries) > 0 {
		firstSeq = entries[0].Seq
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, layout_hash, outcome, final_time, steps, first_seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.LayoutHash, string(run.Outcome), run.FinalTime, run.Steps, firstSeq)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_entries (run_id, seq, kind, time, channel, source, trigger_id, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			run.ID, e.Seq, string(e.Kind), e.Time, e.Channel, e.Source, e.Trigger, e.Detail,
		); err != nil {
			return fmt.Errorf("write trace entry %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// ReadRuns returns every stored run in the order they were recorded.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadRuns(ctx context.Context) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, layout_hash, outcome, final_time, steps
		FROM runs
		ORDER BY first_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, layout_hash, outcome, final_time, steps
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ReadTrace returns the trace entries of a run ordered by seq.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]ir.TraceEntry, error) {
	return s.QueryTrace(ctx, TraceQuery{RunID: runID})
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.RunRecord, error) {
	var run ir.RunRecord
	var outcome string
	if err := row.Scan(&run.ID, &run.LayoutHash, &outcome, &run.FinalTime, &run.Steps); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.RunRecord{}, err
		}
		return ir.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	run.Outcome = ir.RunOutcome(outcome)
	return run, nil
}
