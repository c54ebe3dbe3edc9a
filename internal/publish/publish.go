// Package publish mirrors each registrant's recomputed tables into Postgres
// for the reporting layer.
package publish

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/db"
	"github.com/sells-group/etp-tracker/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Table names in the etp schema.
const (
	TrustsTable      = "etp.trusts"
	FundStatusTable  = "etp.fund_status"
	NameHistoryTable = "etp.name_history"
)

var (
	trustColumns = []string{"trust", "cik", "funds", "published_at"}

	statusColumns = []string{
		"trust", "fund_key", "cik", "series_id", "class_id", "fund_name", "header_name",
		"prospectus_name", "ticker", "status", "status_reason", "effective_date",
		"date_confidence", "latest_form", "latest_filing_date", "prospectus_link", "published_at",
	}

	nameColumns = []string{
		"trust", "series_id", "name", "name_clean", "first_seen", "last_seen",
		"is_current", "source_form", "source_accession", "published_at",
	}
)

// Sink writes tables to Postgres. Each registrant's rows are replaced as a
// unit, so funds that disappear from a rollup disappear from the database.
type Sink struct {
	pool db.Pool
	now  func() time.Time
	log  *zap.Logger
}

// New creates a Sink backed by pool.
func New(pool db.Pool) *Sink {
	return &Sink{
		pool: pool,
		now:  time.Now,
		log:  zap.L().With(zap.String("component", "publish")),
	}
}

// Migrate applies the schema files in lexicographic order. Every statement
// is idempotent.
func (s *Sink) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "publish: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		data, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return eris.Wrapf(err, "publish: read migration %s", entry.Name())
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "publish: apply migration %s", entry.Name())
		}
		s.log.Debug("migration applied", zap.String("file", entry.Name()))
	}
	return nil
}

// Publish replaces trust's fund status and name history rows and refreshes
// its trusts row.
func (s *Sink) Publish(ctx context.Context, trust string, statuses []model.FundStatus, names []model.NameHistoryEntry) error {
	trust = strings.TrimSpace(trust)
	if trust == "" {
		return eris.New("publish: trust name is required")
	}
	now := s.now().UTC()

	if _, err := db.Replace(ctx, s.pool, db.ReplaceConfig{
		Table:      FundStatusTable,
		Columns:    statusColumns,
		ScopeCol:   "trust",
		ScopeValue: trust,
	}, statusRows(trust, statuses, now)); err != nil {
		return eris.Wrapf(err, "publish: fund status for %s", trust)
	}

	if _, err := db.Replace(ctx, s.pool, db.ReplaceConfig{
		Table:      NameHistoryTable,
		Columns:    nameColumns,
		ScopeCol:   "trust",
		ScopeValue: trust,
	}, nameRows(trust, names, now)); err != nil {
		return eris.Wrapf(err, "publish: name history for %s", trust)
	}

	if _, err := db.Upsert(ctx, s.pool, db.UpsertConfig{
		Table:        TrustsTable,
		Columns:      trustColumns,
		ConflictKeys: []string{"trust"},
	}, [][]any{{trust, trustCIK(statuses), len(statuses), now}}); err != nil {
		return eris.Wrapf(err, "publish: trust row for %s", trust)
	}

	s.log.Info("published trust",
		zap.String("trust", trust),
		zap.Int("funds", len(statuses)),
		zap.Int("names", len(names)),
	)
	return nil
}

// FundKey identifies a status row within its trust: class id, else series
// id, else name and ticker.
func FundKey(st model.FundStatus) string {
	switch {
	case st.ClassID != "":
		return st.ClassID
	case st.SeriesID != "":
		return st.SeriesID
	default:
		return st.FundName + "|" + strings.ToUpper(st.Ticker)
	}
}

func statusRows(trust string, statuses []model.FundStatus, now time.Time) [][]any {
	seen := make(map[string]bool, len(statuses))
	rows := make([][]any, 0, len(statuses))
	for _, st := range statuses {
		key := FundKey(st)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, []any{
			trust, key, st.CIK, st.SeriesID, st.ClassID, st.FundName, st.HeaderName,
			st.ProspectusName, st.Ticker, string(st.Status), st.StatusReason, dateArg(st.EffectiveDate),
			string(st.DateConfidence), st.LatestForm, dateArg(st.LatestFilingDate), st.ProspectusLink, now,
		})
	}
	return rows
}

func nameRows(trust string, names []model.NameHistoryEntry, now time.Time) [][]any {
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		rows = append(rows, []any{
			trust, n.SeriesID, n.Name, n.NameClean, dateArg(n.FirstSeen), dateArg(n.LastSeen),
			n.Current, n.SourceForm, n.SourceAccession, now,
		})
	}
	return rows
}

// dateArg maps an optional date to a nullable DATE parameter.
func dateArg(d *model.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time
}

func trustCIK(statuses []model.FundStatus) string {
	for _, st := range statuses {
		if st.CIK != "" {
			return st.CIK
		}
	}
	return ""
}
