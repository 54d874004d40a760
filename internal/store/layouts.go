package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/triggersim/internal/ir"
)

// LayoutInfo describes a named layout.
type LayoutInfo struct {
	Name     string `json:"name"`
	Hash     string `json:"hash"`
	Revision int    `json:"revision"`
	Triggers int    `json:"triggers"`
}

// PutLayout stores a layout body under its content hash and returns the
// hash. Uses ON CONFLICT DO NOTHING: storing the same layout twice is a no-op.
func (s *Store) PutLayout(ctx context.Context, layout []ir.TriggerSnapshot) (string, error) {
	return putLayout(ctx, s.db, layout)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putLayout(ctx context.Context, db execer, layout []ir.TriggerSnapshot) (string, error) {
	body, hash, err := marshalLayout(layout)
	if err != nil {
		return "", err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO layout_snapshots (hash, body, trigger_count)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, body, len(layout))
	if err != nil {
		return "", fmt.Errorf("put layout: %w", err)
	}
	return hash, nil
}

// GetLayout returns the layout stored under hash, or ErrNotFound.
func (s *Store) GetLayout(ctx context.Context, hash string) ([]ir.TriggerSnapshot, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM layout_snapshots WHERE hash = ?`, hash,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("layout %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get layout: %w", err)
	}
	return unmarshalLayout(body)
}

// SaveLayout stores a layout under a name, bumping the revision if the name
// already exists.
func (s *Store) SaveLayout(ctx context.Context, name string, layout []ir.TriggerSnapshot) (LayoutInfo, error) {
	if name == "" {
		return LayoutInfo{}, fmt.Errorf("save layout: name must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LayoutInfo{}, fmt.Errorf("save layout: begin: %w", err)
	}
	defer tx.Rollback()

	hash, err := putLayout(ctx, tx, layout)
	if err != nil {
		return LayoutInfo{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO layouts (name, hash, revision)
		VALUES (?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET hash = excluded.hash, revision = layouts.revision + 1
	`, name, hash)
	if err != nil {
		return LayoutInfo{}, fmt.Errorf("save layout: %w", err)
	}

	info := LayoutInfo{Name: name, Hash: hash, Triggers: len(layout)}
	if err := tx.QueryRowContext(ctx,
		`SELECT revision FROM layouts WHERE name = ?`, name,
	).Scan(&info.Revision); err != nil {
		return LayoutInfo{}, fmt.Errorf("save layout: read revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return LayoutInfo{}, fmt.Errorf("save layout: commit: %w", err)
	}
	return info, nil
}

// LoadLayout returns the current revision of a named layout, or ErrNotFound.
func (s *Store) LoadLayout(ctx context.Context, name string) ([]ir.TriggerSnapshot, LayoutInfo, error) {
	var info LayoutInfo
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT l.name, l.hash, l.revision, ls.trigger_count, ls.body
		FROM layouts l
		JOIN layout_snapshots ls ON ls.hash = l.hash
		WHERE l.name = ?
	`, name).Scan(&info.Name, &info.Hash, &info.Revision, &info.Triggers, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, LayoutInfo{}, fmt.Errorf("layout %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, LayoutInfo{}, fmt.Errorf("load layout: %w", err)
	}

	layout, err := unmarshalLayout(body)
	if err != nil {
		return nil, LayoutInfo{}, err
	}
	return layout, info, nil
}

// ListLayouts returns every named layout ordered by name.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListLayouts(ctx context.Context) ([]LayoutInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.name, l.hash, l.revision, ls.trigger_count
		FROM layouts l
		JOIN layout_snapshots ls ON ls.hash = l.hash
		ORDER BY l.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	defer rows.Close()

	infos := []LayoutInfo{}
	for rows.Next() {
		var info LayoutInfo
		if err := rows.Scan(&info.Name, &info.Hash, &info.Revision, &info.Triggers); err != nil {
			return nil, fmt.Errorf("scan layout: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate layouts: %w", err)
	}
	return infos, nil
}

// DeleteLayout removes a named layout. The snapshot body is kept because
// runs may reference it. Returns false if the name did not exist.
func (s *Store) DeleteLayout(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM layouts WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete layout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete layout: %w", err)
	}
	return n > 0, nil
}
