// Package store persists completed analyses in SQLite. Records are keyed by
// a random UUID minted at save time; the pipeline never reads them back.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned by Get when no analysis has the requested id.
var ErrNotFound = errors.New("store: analysis not found")

// Analysis is one persisted pipeline run.
type Analysis struct {
	// ID is the opaque record identifier.
	ID string `json:"analysis_id"`
	// Query is the analysed text.
	Query string `json:"query"`
	// Novelty is the novelty rating reported by the analysis stage.
	Novelty string `json:"novelty_score"`
	// Strategy is the retrieval strategy that served the run.
	Strategy string `json:"retrieval_strategy"`
	// Report is the narrative report.
	Report string `json:"report"`
	// Payload is the full pipeline output as JSON.
	Payload json.RawMessage `json:"payload,omitempty"`
	// CreatedAt is when the record was saved.
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisStore persists and retrieves analyses. Implementations must be safe
// for concurrent use.
type AnalysisStore interface {
	// Save persists a and returns the identifier assigned to it. Any ID or
	// CreatedAt already set on a is ignored.
	Save(ctx context.Context, a Analysis) (string, error)
	// Get returns the analysis with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Analysis, error)
	// Recent returns up to n analyses, newest first, without payloads.
	Recent(ctx context.Context, n int) ([]Analysis, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is an AnalysisStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// now returns the current time; replaced in tests.
	now func() time.Time
}

// DefaultDBPath returns ~/.priorart/analyses.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".priorart")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "analyses.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS analyses (
    id          TEXT    PRIMARY KEY,
    query       TEXT    NOT NULL,
    novelty     TEXT    NOT NULL,
    strategy    TEXT    NOT NULL,
    report      TEXT    NOT NULL,
    payload     TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (milliseconds)
);
CREATE INDEX IF NOT EXISTS idx_analyses_created
    ON analyses (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Save persists a under a new UUID.
func (s *SQLiteStore) Save(ctx context.Context, a Analysis) (string, error) {
	id := uuid.New().String()
	payload := a.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	const q = `INSERT INTO analyses (id, query, novelty, strategy, report, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		id, a.Query, a.Novelty, a.Strategy, a.Report, string(payload), s.now().UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("store: save: %w", err)
	}
	return id, nil
}

// Get returns the analysis with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Analysis, error) {
	const q = `SELECT id, query, novelty, strategy, report, payload, created_at FROM analyses WHERE id = ?`
	var (
		a       Analysis
		payload string
		ts      int64
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Query, &a.Novelty, &a.Strategy, &a.Report, &payload, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Analysis{}, fmt.Errorf("store: get: %w", err)
	}
	a.Payload = json.RawMessage(payload)
	a.CreatedAt = time.UnixMilli(ts)
	return a, nil
}

// Recent returns up to n analyses, newest first. Payloads are omitted.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Analysis, error) {
	const q = `
SELECT id, query, novelty, strategy, report, created_at
FROM   analyses
ORDER  BY created_at DESC, rowid DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		var ts int64
		if err := rows.Scan(&a.ID, &a.Query, &a.Novelty, &a.Strategy, &a.Report, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		a.CreatedAt = time.UnixMilli(ts)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return out, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Name identifies the store in readiness reports.
func (s *SQLiteStore) Name() string { return "store" }

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
