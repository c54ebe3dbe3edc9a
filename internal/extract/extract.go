// Package extract implements the second pipeline stage: turning each new
// relevant filing of a registrant into fund facts.
package extract

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/manifest"
	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/ocr"
	"github.com/sells-group/etp-tracker/internal/tables"
)

// Fetcher retrieves filing documents.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
	FetchHeaderOnly(ctx context.Context, url string) (string, error)
}

// DefaultHeaderOnlyForms are forms whose facts live entirely in the
// submission header.
var DefaultHeaderOnlyForms = []string{"485BXT", "497J"}

// Options configures an Extractor.
type Options struct {
	MaxRetries      int
	HeaderOnlyForms []string
	Now             func() time.Time
}

// Result summarizes Stage 2 for one registrant.
type Result struct {
	Folder       string
	New          int
	Skipped      int
	Errors       int
	Retried      int
	FactsWritten int
	Strategies   map[string]int
}

// Extractor runs Stage 2 over a registrant folder.
type Extractor struct {
	fetch      Fetcher
	ocr        ocr.Extractor
	opts       Options
	headerOnly map[string]bool
	log        *zap.Logger
}

// New creates an Extractor. A nil OCR extractor disables PDF bodies.
func New(fetch Fetcher, pdf ocr.Extractor, opts Options) *Extractor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.HeaderOnlyForms == nil {
		opts.HeaderOnlyForms = DefaultHeaderOnlyForms
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if pdf == nil {
		pdf = ocr.Noop{}
	}
	ho := make(map[string]bool, len(opts.HeaderOnlyForms))
	for _, f := range opts.HeaderOnlyForms {
		ho[strings.ToUpper(strings.TrimSpace(f))] = true
	}
	return &Extractor{
		fetch:      fetch,
		ocr:        pdf,
		opts:       opts,
		headerOnly: ho,
		log:        zap.L().With(zap.String("component", "extract")),
	}
}

// Strategy returns the extraction strategy label for f.
func (e *Extractor) Strategy(f model.Filing) string {
	switch {
	case e.headerOnly[f.FormUpper()]:
		return model.StrategyHeaderOnly
	case f.InlineXBRL:
		return model.StrategyFullIXBRL
	default:
		return model.StrategyFull
	}
}

// ExtractRegistrant processes every relevant filing in folder that the
// ledger says still needs work, appends the resulting facts to
// fund_facts.csv, and only then saves the ledger. Per-filing failures are
// recorded in the ledger and do not stop the registrant.
func (e *Extractor) ExtractRegistrant(ctx context.Context, folder string) (*Result, error) {
	res := &Result{Folder: folder, Strategies: map[string]int{}}

	filings, err := tables.ReadRelevant(folder)
	if err != nil {
		return nil, eris.Wrap(err, "extract: read relevant filings")
	}
	if len(filings) == 0 {
		return res, nil
	}
	sort.SliceStable(filings, func(i, j int) bool {
		return model.Before(filings[i].FilingDate, filings[j].FilingDate)
	})

	m, err := manifest.Load(folder)
	if err != nil {
		return nil, err
	}

	log := e.log.With(zap.String("folder", folder))
	log.Debug("extract: ledger loaded",
		zap.Int("filings", len(filings)),
		zap.Int("processed", len(m.Processed())),
		zap.Int("retryable", len(m.Retryable(e.opts.MaxRetries))),
	)
	var (
		facts     []model.FundFact
		attempted bool
		ctxErr    error
	)
	for _, f := range filings {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		acc := strings.TrimSpace(f.Accession)
		if acc == "" {
			continue
		}
		if !m.ShouldProcess(acc, e.opts.MaxRetries) {
			res.Skipped++
			continue
		}
		attempted = true
		if f.FormUpper() == "EFFECT" {
			m.RecordSuccess(acc, f.Form, 0, e.opts.Now())
			continue
		}
		if m.IsRetry(acc) {
			res.Retried++
		}

		strategy := e.Strategy(f)
		rows, err := e.ExtractFiling(ctx, f)
		if err != nil {
			m.RecordError(acc, f.Form, err, e.opts.Now())
			res.Errors++
			log.Warn("extract: filing failed",
				zap.String("accession", acc),
				zap.String("form", f.Form),
				zap.Error(err),
			)
			continue
		}
		facts = append(facts, rows...)
		m.RecordSuccess(acc, f.Form, len(rows), e.opts.Now())
		res.New++
		res.Strategies[strategy]++
	}

	// Facts are written before the ledger records them; a failed append
	// leaves the ledger as it was so the next run re-extracts.
	if len(facts) > 0 {
		facts = tables.DedupeFacts(facts)
		if _, err := tables.AppendFacts(folder, facts); err != nil {
			return nil, eris.Wrap(err, "extract: append facts")
		}
		res.FactsWritten = len(facts)
	}
	if attempted {
		if err := manifest.Save(folder, m); err != nil {
			return nil, err
		}
	}

	log.Info("extract: registrant done",
		zap.Int("new", res.New),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
		zap.Int("facts", res.FactsWritten),
	)
	if ctxErr != nil {
		return res, eris.Wrap(ctxErr, "extract: interrupted")
	}
	return res, nil
}
