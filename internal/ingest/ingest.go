// Package ingest implements the first pipeline stage: turning a registrant's
// EDGAR filing index into filings.csv and relevant_filings.csv.
package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/fetcher"
	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/tables"
)

// IndexLoader loads a registrant's filing index.
type IndexLoader interface {
	LoadIndex(ctx context.Context, cik string, policy fetcher.RefreshPolicy) (*fetcher.Index, error)
}

// FormFilter decides which form types are relevant to fund lifecycle
// tracking: an exact match on Exact or a prefix match on Prefixes.
type FormFilter struct {
	Exact    []string
	Prefixes []string
}

// DefaultFormFilter covers effectiveness notices, 485 amendments, 497
// supplements, and initial registrations.
func DefaultFormFilter() FormFilter {
	return FormFilter{
		Exact:    []string{"EFFECT"},
		Prefixes: []string{"485A", "485B", "497", "N-1A", "S-1", "S-3"},
	}
}

// Match reports whether form is relevant. Comparison is case-insensitive.
func (f FormFilter) Match(form string) bool {
	form = strings.ToUpper(strings.TrimSpace(form))
	if form == "" {
		return false
	}
	for _, e := range f.Exact {
		if form == strings.ToUpper(e) {
			return true
		}
	}
	for _, p := range f.Prefixes {
		if strings.HasPrefix(form, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// Window bounds filings by filing date, inclusive. Nil bounds are open.
type Window struct {
	Since *model.Date
	Until *model.Date
}

// Contains reports whether d falls in the window. Undated filings are
// excluded only when a bound is set.
func (w Window) Contains(d *model.Date) bool {
	if w.Since == nil && w.Until == nil {
		return true
	}
	if d == nil {
		return false
	}
	if w.Since != nil && d.Before(w.Since.Time) {
		return false
	}
	if w.Until != nil && d.After(w.Until.Time) {
		return false
	}
	return true
}

// Options configures an Ingestor.
type Options struct {
	OutputRoot string
	Policy     fetcher.RefreshPolicy
	Forms      FormFilter
}

// Result summarizes one registrant's ingestion.
type Result struct {
	CIK      string
	Trust    string
	Folder   string
	Filings  int
	Relevant int
}

// Ingestor runs Stage 1 for one registrant at a time.
type Ingestor struct {
	loader IndexLoader
	opts   Options
	log    *zap.Logger
}

// New creates an Ingestor. An empty form filter falls back to DefaultFormFilter.
func New(loader IndexLoader, opts Options) *Ingestor {
	if len(opts.Forms.Exact) == 0 && len(opts.Forms.Prefixes) == 0 {
		opts.Forms = DefaultFormFilter()
	}
	return &Ingestor{
		loader: loader,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "ingest")),
	}
}

// Ingest loads the index for r, writes both filing tables into the
// registrant folder, and reports what was written.
func (in *Ingestor) Ingest(ctx context.Context, r model.Registrant, w Window) (*Result, error) {
	cik, err := model.NormalizeCIK(r.CIK)
	if err != nil {
		return nil, err
	}
	ix, err := in.loader.LoadIndex(ctx, cik, in.opts.Policy)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: CIK %s", cik)
	}

	trust := TrustName(r, ix)
	var all, relevant []model.Filing
	for _, f := range ix.Records(cik, trust) {
		if !w.Contains(f.FilingDate) {
			continue
		}
		all = append(all, f)
		if in.opts.Forms.Match(f.Form) {
			relevant = append(relevant, f)
		}
	}

	dir := tables.Folder(in.opts.OutputRoot, trust)
	if err := tables.WriteFilings(dir, all); err != nil {
		return nil, eris.Wrapf(err, "ingest: CIK %s", cik)
	}
	if err := tables.WriteRelevant(dir, relevant); err != nil {
		return nil, eris.Wrapf(err, "ingest: CIK %s", cik)
	}

	in.log.Info("ingested registrant",
		zap.String("cik", cik),
		zap.String("trust", trust),
		zap.Int("filings", len(all)),
		zap.Int("relevant", len(relevant)),
	)
	return &Result{CIK: cik, Trust: trust, Folder: dir, Filings: len(all), Relevant: len(relevant)}, nil
}

// TrustName resolves the display name: the registry override, else the
// index name, else "CIK n".
func TrustName(r model.Registrant, ix *fetcher.Index) string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	if ix != nil {
		if name := strings.TrimSpace(ix.Name); name != "" {
			return name
		}
	}
	cik, err := model.NormalizeCIK(r.CIK)
	if err != nil {
		cik = strings.TrimSpace(r.CIK)
	}
	return "CIK " + cik
}
