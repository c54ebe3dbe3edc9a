package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceConfig names the slice of a table owned by one scope value.
type ReplaceConfig struct {
	Table      string   // target table (e.g., "etp.fund_status")
	Columns    []string // columns being inserted
	ScopeCol   string   // column identifying the slice (e.g., "trust")
	ScopeValue any
}

// Replace atomically swaps every row whose ScopeCol equals ScopeValue for
// rows: DELETE then COPY in one transaction. An empty rows slice clears
// the scope.
func Replace(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}
	if cfg.ScopeCol == "" {
		return 0, eris.New("db: replace: no scope column specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		sanitizeTable(cfg.Table), pgx.Identifier{cfg.ScopeCol}.Sanitize())
	if _, err := tx.Exec(ctx, deleteSQL, cfg.ScopeValue); err != nil {
		return 0, eris.Wrapf(err, "db: replace: delete scope in %s", cfg.Table)
	}

	n, err := CopyFrom(ctx, tx, cfg.Table, cfg.Columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}
