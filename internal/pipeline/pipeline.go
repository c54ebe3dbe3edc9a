// Package pipeline orchestrates the four tracker stages over a set of
// registrants: ingest, extract, status rollup, and name history.
package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/etp-tracker/internal/config"
	"github.com/sells-group/etp-tracker/internal/extract"
	"github.com/sells-group/etp-tracker/internal/fetcher"
	"github.com/sells-group/etp-tracker/internal/ingest"
	"github.com/sells-group/etp-tracker/internal/manifest"
	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/namehistory"
	"github.com/sells-group/etp-tracker/internal/ocr"
	"github.com/sells-group/etp-tracker/internal/rollup"
	"github.com/sells-group/etp-tracker/internal/tables"
)

// Client is everything a stage needs from EDGAR.
type Client interface {
	ingest.IndexLoader
	extract.Fetcher
	Requests() int64
}

// ClientFactory builds a fresh Client. Every Stage 2 task gets its own.
type ClientFactory func() Client

// RunRecorder persists run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, s *model.RunSummary) error
}

// Publisher receives each registrant's recomputed tables.
type Publisher interface {
	Publish(ctx context.Context, trust string, statuses []model.FundStatus, names []model.NameHistoryEntry) error
}

// Deps are the collaborators of a Pipeline. Clients is required; the rest
// are optional.
type Deps struct {
	Clients   ClientFactory
	OCR       ocr.Extractor
	Recorder  RunRecorder
	Publisher Publisher
	Metrics   *Metrics
}

// Options scope a single run.
type Options struct {
	Registrants    []model.Registrant
	Window         ingest.Window
	ForceReprocess bool
	Workers        int         // overrides pipeline.workers when > 0
	Today          *model.Date // reference date for status rules; nil means now
}

// Pipeline runs the tracker end to end.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	policy fetcher.RefreshPolicy
	rules  rollup.Rules
	now    func() time.Time
}

// New creates a Pipeline from configuration.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Clients == nil {
		return nil, eris.New("pipeline: client factory is required")
	}
	policy, err := fetcher.ParseRefreshPolicy(cfg.Pipeline.RefreshMode)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: refresh mode")
	}
	if deps.OCR == nil {
		deps.OCR = ocr.Noop{}
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		policy: policy,
		rules:  rollup.Rules{GraceDays: cfg.Pipeline.DefaultEffectiveDays},
		now:    time.Now,
	}, nil
}

// trustFolder is one ingested registrant.
type trustFolder struct {
	trust  string
	folder string
}

// Run executes all four stages. Per-registrant and per-filing failures are
// counted in the summary; only configuration-level problems return an
// error before any work is done.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*model.RunSummary, error) {
	root := p.cfg.Pipeline.OutputRoot
	if len(opts.Registrants) == 0 {
		return nil, eris.New("pipeline: no active registrants")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: output root %s", root)
	}

	summary := &model.RunSummary{
		RunID:         uuid.New().String(),
		StartedAt:     p.now().UTC(),
		Strategies:    map[string]int{},
		FundsByStatus: map[model.Status]int{},
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", summary.RunID))
	log.Info("pipeline: starting run",
		zap.Int("registrants", len(opts.Registrants)),
		zap.Bool("force_reprocess", opts.ForceReprocess),
	)

	// ===== Stage 1: ingest =====
	trusts := p.ingest(ctx, opts, summary, log)

	if opts.ForceReprocess {
		log.Info("pipeline: force reprocess, clearing ledgers", zap.Int("trusts", len(trusts)))
		for _, t := range trusts {
			if err := manifest.Clear(t.folder); err != nil {
				log.Warn("pipeline: clear ledger failed", zap.String("folder", t.folder), zap.Error(err))
			}
		}
	}

	// ===== Stage 2: extract =====
	workers := opts.Workers
	if workers <= 0 {
		workers = p.cfg.Pipeline.Workers
	}
	if workers <= 0 {
		workers = SafeWorkers(p.cfg.Edgar.Pause(), p.cfg.Edgar.RateLimit)
	}
	p.extract(ctx, trusts, workers, summary, log)

	var runErr error
	if err := ctx.Err(); err != nil {
		runErr = eris.Wrap(err, "pipeline: interrupted")
		log.Warn("pipeline: interrupted after extraction, skipping rollup", zap.Error(err))
	} else {
		// ===== Stages 3 and 4: rollup and name history =====
		today := model.NewDate(p.now())
		if opts.Today != nil {
			today = *opts.Today
		}
		for _, t := range trusts {
			if err := p.rollup(ctx, t, today, summary); err != nil {
				summary.WorkerErrors++
				log.Error("pipeline: rollup failed", zap.String("trust", t.trust), zap.Error(err))
			}
		}
	}

	summary.TrustsProcessed = len(trusts)
	summary.Finish(p.now())
	p.finish(ctx, summary, log)

	return summary, runErr
}

// ingest runs Stage 1 sequentially with a single client.
func (p *Pipeline) ingest(ctx context.Context, opts Options, summary *model.RunSummary, log *zap.Logger) []trustFolder {
	client := p.deps.Clients()
	ing := ingest.New(client, ingest.Options{
		OutputRoot: p.cfg.Pipeline.OutputRoot,
		Policy:     p.policy,
		Forms: ingest.FormFilter{
			Exact:    p.cfg.Pipeline.FormExact,
			Prefixes: p.cfg.Pipeline.FormPrefixes,
		},
	})

	seen := make(map[string]bool)
	var out []trustFolder
	for _, r := range opts.Registrants {
		if ctx.Err() != nil {
			break
		}
		res, err := ing.Ingest(ctx, r, opts.Window)
		if err != nil {
			summary.TrustsFailed++
			log.Error("pipeline: ingest failed, skipping registrant", zap.String("cik", r.CIK), zap.Error(err))
			continue
		}
		if seen[res.Folder] {
			continue
		}
		seen[res.Folder] = true
		out = append(out, trustFolder{trust: res.Trust, folder: res.Folder})
	}
	summary.Requests += client.Requests()
	return out
}

// extract runs Stage 2 over a bounded pool. A failing or panicking task is
// counted and never cancels its siblings.
func (p *Pipeline) extract(ctx context.Context, trusts []trustFolder, workers int, summary *model.RunSummary, log *zap.Logger) {
	log.Info("pipeline: extracting", zap.Int("trusts", len(trusts)), zap.Int("workers", workers))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(workers)

	for _, t := range trusts {
		g.Go(func() error {
			p.extractOne(ctx, t, &mu, summary, log)
			return nil
		})
	}
	_ = g.Wait()
}

// extractOne runs Stage 2 for one registrant on its own client and folds
// the outcome into summary under mu.
func (p *Pipeline) extractOne(ctx context.Context, t trustFolder, mu *sync.Mutex, summary *model.RunSummary, log *zap.Logger) {
	var (
		client Client
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic: %v", r)
		}
		mu.Lock()
		defer mu.Unlock()
		if client != nil {
			summary.Requests += client.Requests()
		}
		if err != nil {
			summary.WorkerErrors++
			log.Error("pipeline: extraction task failed", zap.String("trust", t.trust), zap.Error(err))
		}
	}()

	client = p.deps.Clients()
	ex := extract.New(client, p.deps.OCR, extract.Options{
		MaxRetries:      p.cfg.Pipeline.MaxRetries,
		HeaderOnlyForms: p.cfg.Pipeline.HeaderOnlyForms,
		Now:             p.now,
	})
	var res *extract.Result
	res, err = ex.ExtractRegistrant(ctx, t.folder)
	if res != nil {
		mu.Lock()
		fold(summary, res)
		mu.Unlock()
	}
}

func fold(s *model.RunSummary, r *extract.Result) {
	s.NewFilings += r.New
	s.SkippedFilings += r.Skipped
	s.Errors += r.Errors
	s.Retried += r.Retried
	s.FactsWritten += r.FactsWritten
	for name, n := range r.Strategies {
		s.AddStrategy(name, n)
	}
}

// rollup runs Stages 3 and 4 for one registrant and publishes the result.
func (p *Pipeline) rollup(ctx context.Context, t trustFolder, today model.Date, summary *model.RunSummary) error {
	facts, err := tables.ReadFacts(t.folder)
	if err != nil {
		return eris.Wrap(err, "pipeline: read facts")
	}

	statuses := p.rules.Rollup(facts, t.trust, today)
	if err := tables.WriteStatus(t.folder, statuses); err != nil {
		return eris.Wrap(err, "pipeline: write status")
	}
	names := namehistory.Build(facts)
	if err := tables.WriteNameHistory(t.folder, names); err != nil {
		return eris.Wrap(err, "pipeline: write name history")
	}

	for _, s := range statuses {
		summary.FundsByStatus[s.Status]++
	}

	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.Publish(ctx, t.trust, statuses, names); err != nil {
			zap.L().Warn("pipeline: publish failed", zap.String("trust", t.trust), zap.Error(err))
		}
	}
	return nil
}

// finish persists the summary and reports it. Nothing here fails the run.
func (p *Pipeline) finish(ctx context.Context, summary *model.RunSummary, log *zap.Logger) {
	if err := SaveSummary(p.cfg.Pipeline.OutputRoot, summary); err != nil {
		log.Error("pipeline: save summary failed", zap.Error(err))
	}
	if p.deps.Recorder != nil {
		if err := p.deps.Recorder.RecordRun(context.WithoutCancel(ctx), summary); err != nil {
			log.Warn("pipeline: record run failed", zap.Error(err))
		}
	}
	if m := p.deps.Metrics; m != nil {
		m.Observe(summary)
		if path := p.cfg.Metrics.TextfilePath; path != "" {
			if err := m.WriteTextfile(path); err != nil {
				log.Warn("pipeline: metrics textfile failed", zap.Error(err))
			}
		}
	}

	log.Info(summary.Line(),
		zap.Int("trusts", summary.TrustsProcessed),
		zap.Int("trusts_failed", summary.TrustsFailed),
		zap.Int("worker_errors", summary.WorkerErrors),
		zap.Int64("requests", summary.Requests),
		zap.Any("funds", summary.FundsByStatus),
	)
}
