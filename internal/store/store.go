// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists runs, ideas, dossier parts, council rounds and
// memos, gate results, agent memos, sealed credentials and literature
// assessments in a single SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFile is the database file name inside the workspace.
const DBFile = "research-council.db"

// timeLayout is fixed-width so that TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the SQLite database.
type Store struct {
	db *sql.DB

	// now is the clock used for every stored timestamp.
	now func() time.Time
}

// Open opens or creates the database at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// OpenWorkspace opens the database file inside a workspace directory.
func OpenWorkspace(workspace string) (*Store, error) {
	return Open(filepath.Join(workspace, DBFile))
}

// SetClock replaces the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			status TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			idea_count INTEGER NOT NULL,
			topic_focus TEXT NOT NULL DEFAULT '',
			literature_query_id INTEGER,
			use_assessment_seeds INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			log TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS ideas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			title TEXT NOT NULL DEFAULT '',
			lane_primary TEXT NOT NULL DEFAULT '',
			lane_secondary TEXT NOT NULL DEFAULT '',
			breakthrough_type TEXT NOT NULL DEFAULT '',
			big_claim TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ideas_run_id ON ideas(run_id)`,
		`CREATE TABLE IF NOT EXISTS dossier_parts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			idea_id INTEGER NOT NULL REFERENCES ideas(id),
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dossier_parts_idea_id ON dossier_parts(idea_id)`,
		`CREATE TABLE IF NOT EXISTS council_rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			idea_id INTEGER NOT NULL REFERENCES ideas(id),
			round_number INTEGER NOT NULL,
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			UNIQUE(idea_id, round_number)
		)`,
		`CREATE TABLE IF NOT EXISTS council_memos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			idea_id INTEGER NOT NULL REFERENCES ideas(id),
			round_id INTEGER REFERENCES council_rounds(id),
			referee TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_council_memos_idea_id ON council_memos(idea_id)`,
		`CREATE TABLE IF NOT EXISTS gate_results (
			idea_id INTEGER NOT NULL REFERENCES ideas(id),
			gate INTEGER NOT NULL CHECK (gate BETWEEN 1 AND 4),
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL,
			PRIMARY KEY (idea_id, gate)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_memos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			idea_id INTEGER REFERENCES ideas(id),
			direction TEXT NOT NULL,
			sender TEXT NOT NULL,
			topic TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			ciphertext BLOB NOT NULL,
			nonce BLOB NOT NULL,
			salt BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_provider ON credentials(provider)`,
		`CREATE TABLE IF NOT EXISTS literature_assessments (
			query_id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) stamp() (time.Time, string) {
	t := s.now().UTC()
	return t, formatTime(t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	if t, err := time.Parse(timeLayout, v); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// notFound converts sql.ErrNoRows into ErrNotFound with the record name.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("querying %s %v: %w", what, id, err)
}

// requireRow reports ErrNotFound when an UPDATE touched nothing.
func requireRow(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s %v update: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}
