package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested layout or run does not exist.
var ErrNotFound = errors.New("not found")

// migration upgrades a database from version-1 to version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied in order to databases whose user_version is below
// the migration's version. schema.sql only creates tables, so a fresh
// database runs every migration once.
//
// Schema version history:
//
//	0 - tables only
//	1 - runs indexed by layout_hash (runs of a layout)
//	2 - trace_entries indexed for the trace filters (kind, channel, trigger)
var migrations = []migration{
	{
		version: 1,
		name:    "runs by layout",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_runs_layout_hash ON runs(layout_hash)`,
		},
	},
	{
		version: 2,
		name:    "trace filters",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_trace_kind ON trace_entries(kind)`,
			`CREATE INDEX IF NOT EXISTS idx_trace_channel ON trace_entries(channel)`,
			`CREATE INDEX IF NOT EXISTS idx_trace_trigger ON trace_entries(trigger_id)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_first_seq ON runs(first_seq)`,
		},
	},
}

// currentSchemaVersion is the version of the last migration.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Store provides durable storage for layouts and run traces.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode, so `trace` can read while a shell session writes runs
//   - NORMAL synchronous mode (a lost run on power failure is acceptable)
//   - 5-second busy timeout for two processes sharing one file
//   - Foreign key enforcement (runs need their layout snapshot)
//
// Open is idempotent: reopening an existing database applies nothing twice.
func Open(path string) (*Store, error) {
	// Creates the file if it doesn't exist
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sql.Open is lazy; surface a bad path here rather than on first write
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and WriteRun's
	// transaction must not race a second pooled connection into SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaVersion reports the database's user_version.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// applyPragmas sets required SQLite configuration.
// Pragmas are per-connection, which is one more reason for the pool of one.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db, migrations); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// runMigrations applies every pending migration in its own transaction and
// bumps user_version after each, so a failure leaves the database at the
// last good version.
func runMigrations(db *sql.DB, ms []migration) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range ms {
		if m.version <= version {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
		version = m.version
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	// PRAGMA takes no bind parameters; version is an int we own.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("set user_version %d: %w", m.version, err)
	}
	return tx.Commit()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
