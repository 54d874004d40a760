package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/triggersim/internal/ir"
)

// TraceQuery selects stored trace entries. Zero-valued fields do not
// filter, so the zero query returns every entry of every run.
type TraceQuery struct {
	RunID   string
	Kinds   []ir.TraceKind
	Trigger string // matches the entry's trigger or its source
	Channel string
}

// predicate is a WHERE fragment with its positional parameters.
//
// Values are never interpolated into the SQL text; every fragment uses
// ? placeholders.
type predicate interface {
	compile() (string, []any)
}

// equals is column = value.
type equals struct {
	column string
	value  any
}

func (p equals) compile() (string, []any) {
	return p.column + " = ?", []any{p.value}
}

// in is column IN (values...). An empty set matches nothing.
type in struct {
	column string
	values []any
}

func (p in) compile() (string, []any) {
	if len(p.values) == 0 {
		return "0 = 1", nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(p.values)), ", ")
	return fmt.Sprintf("%s IN (%s)", p.column, marks), p.values
}

// and is a conjunction; empty is always true.
type and []predicate

func (p and) compile() (string, []any) {
	return join(p, " AND ", "1 = 1")
}

// or is a disjunction; empty is always false.
type or []predicate

func (p or) compile() (string, []any) {
	return join(p, " OR ", "0 = 1")
}

func join(preds []predicate, sep, empty string) (string, []any) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps := p.compile()
		if len(preds) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, sep), params
}

// filter builds the WHERE predicate of the query.
func (q TraceQuery) filter() predicate {
	var preds and
	if q.RunID != "" {
		preds = append(preds, equals{"t.run_id", q.RunID})
	}
	if len(q.Kinds) > 0 {
		kinds := make([]any, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		preds = append(preds, in{"t.kind", kinds})
	}
	if q.Trigger != "" {
		preds = append(preds, or{equals{"t.trigger_id", q.Trigger}, equals{"t.source", q.Trigger}})
	}
	if q.Channel != "" {
		preds = append(preds, equals{"t.channel", q.Channel})
	}
	return preds
}

// compile renders the query as parameterized SQL. Rows always come back in
// recording order: runs by first seq, then entries by seq.
func (q TraceQuery) compile() (string, []any) {
	where, params := q.filter().compile()
	sql := `SELECT t.run_id, t.seq, t.kind, t.time, t.channel, t.source, t.trigger_id, t.detail
		FROM trace_entries t
		JOIN runs r ON r.id = t.run_id
		WHERE ` + where + `
		ORDER BY r.first_seq ASC, t.run_id COLLATE BINARY ASC, t.seq ASC`
	return sql, params
}

// QueryTrace returns the trace entries matching q.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryTrace(ctx context.Context, q TraceQuery) ([]ir.TraceEntry, error) {
	sql, params := q.compile()
	rows, err := s.db.QueryContext(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	entries := []ir.TraceEntry{}
	for rows.Next() {
		var e ir.TraceEntry
		var kind string
		if err := rows.Scan(&e.RunID, &e.Seq, &kind, &e.Time, &e.Channel, &e.Source, &e.Trigger, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan trace entry: %w", err)
		}
		e.Kind = ir.TraceKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return entries, nil
}
