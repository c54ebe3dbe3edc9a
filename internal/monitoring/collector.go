// Package monitoring evaluates recorded run history against health
// thresholds and delivers alerts by webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/store"
)

// historyLimit bounds how many recent runs one collection reads.
const historyLimit = 1000

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs started within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsFailed   int     `json:"runs_failed"`
	FailRate     float64 `json:"fail_rate"`
	FilingErrors int     `json:"filing_errors"`
	TrustsFailed int     `json:"trusts_failed"`
	WorkerErrors int     `json:"worker_errors"`
	NewFilings   int     `json:"new_filings"`

	// Most recent run regardless of window; zero when none was recorded.
	LastRunID       string    `json:"last_run_id,omitempty"`
	LastRunFinished time.Time `json:"last_run_finished,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the store methods needed by the collector.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.RunSummary, error)
}

// Collector gathers run health from the run history store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	// Newest first.
	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: historyLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	if len(runs) > 0 {
		snap.LastRunID = runs[0].RunID
		snap.LastRunFinished = runs[0].FinishedAt
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		if Failed(r) {
			snap.RunsFailed++
		}
		snap.FilingErrors += r.Errors
		snap.TrustsFailed += r.TrustsFailed
		snap.WorkerErrors += r.WorkerErrors
		snap.NewFilings += r.NewFilings
	}
	if snap.RunsTotal > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(snap.RunsTotal)
	}
	return snap, nil
}

// Failed reports whether a run had any filing, registrant, or worker error.
func Failed(r model.RunSummary) bool {
	return r.Errors+r.TrustsFailed+r.WorkerErrors > 0
}
