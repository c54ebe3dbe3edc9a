package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/etp-tracker/internal/config"
	"github.com/sells-group/etp-tracker/internal/fetcher"
	"github.com/sells-group/etp-tracker/internal/pipeline"
	"github.com/sells-group/etp-tracker/internal/publish"
	"github.com/sells-group/etp-tracker/internal/store"
)

// initStore opens and migrates the run history database.
func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// clientFactory returns a factory of EDGAR clients that share one request
// limiter, so the configured rate holds across every worker.
func clientFactory(c config.EdgarConfig, p config.PipelineConfig) pipeline.ClientFactory {
	var limiter *rate.Limiter
	if c.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.RateLimit), 1)
	}
	opts := fetcher.Options{
		UserAgent:      c.UserAgent,
		Timeout:        c.Timeout(),
		Pause:          c.Pause(),
		MaxRetries:     c.MaxRetries,
		CacheDir:       p.CacheDir,
		SubmissionsURL: c.SubmissionsURL,
		IndexMaxAge:    time.Duration(p.RefreshMaxAgeHours) * time.Hour,
		Limiter:        limiter,
	}
	return func() pipeline.Client {
		return fetcher.New(opts)
	}
}

// sinkEnv is an open publish sink and its pool.
type sinkEnv struct {
	Sink *publish.Sink
	pool *pgxpool.Pool
}

// Close releases the pool.
func (s *sinkEnv) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// initSink connects to the reporting database and applies migrations.
// It returns nil when no database is configured.
func initSink(ctx context.Context) (*sinkEnv, error) {
	if cfg.Publish.DatabaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Publish.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "connect publish database")
	}
	sink := publish.New(pool)
	if err := sink.Migrate(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "migrate publish database")
	}
	return &sinkEnv{Sink: sink, pool: pool}, nil
}
