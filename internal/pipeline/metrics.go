package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/etp-tracker/internal/model"
)

// Metrics exposes run outcomes to Prometheus. Each instance owns its
// registry so runs in one process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	Runs             prometheus.Counter
	Filings          *prometheus.CounterVec
	Strategies       *prometheus.CounterVec
	TrustsFailed     prometheus.Counter
	WorkerErrors     prometheus.Counter
	Requests         prometheus.Counter
	Funds            *prometheus.GaugeVec
	LastRunDuration  prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Runs: f.NewCounter(prometheus.CounterOpts{
			Name: "etp_runs_total",
			Help: "Total number of pipeline runs completed",
		}),
		Filings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etp_filings_total",
			Help: "Filings seen by the extractor, by outcome (new, skipped, error, retried)",
		}, []string{"outcome"}),
		Strategies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etp_filings_by_strategy_total",
			Help: "Filings extracted, by extraction strategy",
		}, []string{"strategy"}),
		TrustsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "etp_trusts_failed_total",
			Help: "Registrants skipped because their filing index could not be ingested",
		}),
		WorkerErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "etp_worker_errors_total",
			Help: "Extraction or rollup tasks that failed or panicked",
		}),
		Requests: f.NewCounter(prometheus.CounterOpts{
			Name: "etp_edgar_requests_total",
			Help: "Live HTTP requests issued to EDGAR, retries included",
		}),
		Funds: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "etp_funds",
			Help: "Funds tracked as of the last run, by lifecycle status",
		}, []string{"status"}),
		LastRunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "etp_last_run_duration_seconds",
			Help: "Wall-clock duration of the last run",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "etp_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe folds a finished run into the metrics.
func (m *Metrics) Observe(s *model.RunSummary) {
	m.Runs.Inc()
	m.Filings.WithLabelValues("new").Add(float64(s.NewFilings))
	m.Filings.WithLabelValues("skipped").Add(float64(s.SkippedFilings))
	m.Filings.WithLabelValues("error").Add(float64(s.Errors))
	m.Filings.WithLabelValues("retried").Add(float64(s.Retried))
	for name, n := range s.Strategies {
		m.Strategies.WithLabelValues(name).Add(float64(n))
	}
	m.TrustsFailed.Add(float64(s.TrustsFailed))
	m.WorkerErrors.Add(float64(s.WorkerErrors))
	m.Requests.Add(float64(s.Requests))

	m.Funds.Reset()
	for _, st := range []model.Status{model.StatusPending, model.StatusEffective, model.StatusDelayed, model.StatusUnknown} {
		m.Funds.WithLabelValues(string(st)).Set(float64(s.FundsByStatus[st]))
	}
	m.LastRunDuration.Set(s.DurationSeconds)
	m.LastRunTimestamp.Set(float64(s.FinishedAt.Unix()))
}

// WriteTextfile writes the current metrics in node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "pipeline: write metrics textfile %s", path)
	}
	return nil
}
