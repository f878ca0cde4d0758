// Package memory is the SQLite persistence layer. SQLiteStore implements the
// planning, conversation and notes repositories over one database file.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DatabaseFile is the file name created under the base path.
const DatabaseFile = "deepagent.db"

// SQLiteStore persists threads, messages, plans, steps and notes.
type SQLiteStore struct {
	db           *sql.DB
	basePath     string
	logger       *slog.Logger
	queryTimeout time.Duration
	uniqueActive bool // partial unique index on active plans is in place
}

// StoreOptions tunes a SQLiteStore.
type StoreOptions struct {
	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration
	// QueryTimeout bounds every repository call. Zero disables it.
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

// NewSQLiteStore opens (or creates) the database under basePath.
// basePath ":memory:" opens a private in-memory database.
func NewSQLiteStore(basePath string, opts StoreOptions) (*SQLiteStore, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		dbPath = filepath.Join(basePath, DatabaseFile)

		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and :memory: is per-connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := &SQLiteStore{
		db:           db,
		basePath:     basePath,
		logger:       logger,
		queryTimeout: opts.QueryTimeout,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		metadata TEXT,                     -- JSON object
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id TEXT NOT NULL,
		role TEXT NOT NULL,                -- human, ai, system, tool
		content TEXT NOT NULL,
		metadata TEXT,                     -- JSON object
		created_at TEXT NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
	);

	-- thread_id is a logical reference: plans may exist for threads that were never stored
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',  -- active, completed, cancelled
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		completed_at TEXT,
		version INTEGER NOT NULL DEFAULT 1  -- bumped on every plan or step write
	);

	CREATE TABLE IF NOT EXISTS steps (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		step_number INTEGER NOT NULL,
		description TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE,
		UNIQUE(plan_id, step_number)
	);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		thread_id TEXT,
		tags TEXT,                         -- JSON array, mirrors note_tags
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS note_tags (
		note_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (note_id, tag),
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);
	CREATE INDEX IF NOT EXISTS idx_plans_thread_status ON plans(thread_id, status, created_at);
	CREATE INDEX IF NOT EXISTS idx_steps_plan ON steps(plan_id, step_number);
	CREATE INDEX IF NOT EXISTS idx_notes_thread ON notes(thread_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Migration: databases created before optimistic locking lack plans.version
	planMigrations := []struct {
		column string
		ddl    string
	}{
		{"version", "ALTER TABLE plans ADD COLUMN version INTEGER NOT NULL DEFAULT 1"},
	}
	for _, m := range planMigrations {
		exists, err := s.columnExists("plans", m.column)
		if err != nil {
			return fmt.Errorf("inspect plans: %w", err)
		}
		if exists {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("plan migration %s failed: %w", m.column, err)
		}
	}

	// Fails on databases that already hold two active plans for a thread.
	// The transactional check in CreatePlan still applies; the integrity sweep reports the duplicates.
	if _, err := s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_one_active ON plans(thread_id) WHERE status = 'active'`); err != nil {
		s.logger.Warn("active plan uniqueness index unavailable", "error", err)
	} else {
		s.uniqueActive = true
	}

	return nil
}

func (s *SQLiteStore) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for diagnostics.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// BasePath returns the directory holding the database, or ":memory:".
func (s *SQLiteStore) BasePath() string {
	return s.basePath
}

// Ping checks that the database answers within ctx.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

// opContext applies the configured per-call timeout.
func (s *SQLiteStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return context.WithCancel(ctx)
}
