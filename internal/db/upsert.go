package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig names the table and key of a keyed row write.
type UpsertConfig struct {
	Table        string   // target table (e.g., "etp.trusts")
	Columns      []string // columns being written, in row order
	ConflictKeys []string // unique key; every other column is overwritten
}

// Upsert inserts rows with a single parameterized INSERT ... ON CONFLICT
// DO UPDATE. It suits the small per-trust writes of the publish sink;
// bulk loads go through Replace.
func Upsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, err := upsertSQL(cfg, len(rows))
	if err != nil {
		return 0, err
	}

	args := make([]any, 0, len(rows)*len(cfg.Columns))
	for i, r := range rows {
		if len(r) != len(cfg.Columns) {
			return 0, eris.Errorf("db: upsert: row %d has %d values, want %d", i, len(r), len(cfg.Columns))
		}
		args = append(args, r...)
	}

	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert into %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

func upsertSQL(cfg UpsertConfig, n int) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var set []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			q := pgx.Identifier{c}.Sanitize()
			set = append(set, q+" = EXCLUDED."+q)
		}
	}
	action := "DO NOTHING"
	if len(set) > 0 {
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}

	values := make([]string, n)
	width := len(cfg.Columns)
	for i := range values {
		ph := make([]string, width)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*width+j+1)
		}
		values[i] = "(" + strings.Join(ph, ", ") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(values, ", "),
		quoteAndJoin(cfg.ConflictKeys),
		action,
	), nil
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
