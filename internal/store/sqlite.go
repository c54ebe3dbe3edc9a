package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/etp-tracker/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	started_at       DATETIME NOT NULL,
	finished_at      DATETIME NOT NULL,
	duration_seconds REAL NOT NULL DEFAULT 0,
	trusts_processed INTEGER NOT NULL DEFAULT 0,
	new_filings      INTEGER NOT NULL DEFAULT 0,
	errors           INTEGER NOT NULL DEFAULT 0,
	failures         INTEGER NOT NULL DEFAULT 0,
	summary          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_failures ON runs(failures);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun inserts or replaces a run summary.
func (s *SQLiteStore) RecordRun(ctx context.Context, sum *model.RunSummary) error {
	if sum.RunID == "" {
		return eris.New("sqlite: run id is required")
	}
	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	failures := sum.Errors + sum.TrustsFailed + sum.WorkerErrors

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, duration_seconds, trusts_processed, new_filings, errors, failures, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			duration_seconds = excluded.duration_seconds,
			trusts_processed = excluded.trusts_processed,
			new_filings = excluded.new_filings,
			errors = excluded.errors,
			failures = excluded.failures,
			summary = excluded.summary`,
		sum.RunID, sum.StartedAt.UTC(), sum.FinishedAt.UTC(), sum.DurationSeconds,
		sum.TrustsProcessed, sum.NewFilings, sum.Errors, failures, string(summaryJSON),
	)
	return eris.Wrapf(err, "sqlite: record run %s", sum.RunID)
}

// GetRun returns one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT summary FROM runs WHERE id = ?`, runID)
	sum, err := scanSummary(row)
	if errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "sqlite: run %s", runID)
	}
	return sum, err
}

// LastRun returns the most recently started run, or nil when none exist.
func (s *SQLiteStore) LastRun(ctx context.Context) (*model.RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT summary FROM runs ORDER BY started_at DESC LIMIT 1`)
	sum, err := scanSummary(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return sum, err
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error) {
	query := `SELECT summary FROM runs WHERE 1=1`
	var args []any

	if filter.FailedOnly {
		query += ` AND failures > 0`
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.RunSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *sum)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSummary(row scannable) (*model.RunSummary, error) {
	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	var sum model.RunSummary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	return &sum, nil
}
