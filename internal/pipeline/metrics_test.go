package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/etp-tracker/internal/model"
)

func TestSafeWorkers(t *testing.T) {
	tests := []struct {
		pause time.Duration
		rate  float64
		want  int
	}{
		{350 * time.Millisecond, 10, 3},
		{time.Second, 10, 9},
		{100 * time.Millisecond, 10, 1},
		{0, 10, 1},
		{time.Second, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeWorkers(tt.pause, tt.rate), "pause=%s rate=%g", tt.pause, tt.rate)
	}
}

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()
	finished := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	first := &model.RunSummary{
		NewFilings:      4,
		SkippedFilings:  10,
		Errors:          1,
		WorkerErrors:    1,
		Requests:        42,
		DurationSeconds: 12.5,
		FinishedAt:      finished,
		Strategies:      map[string]int{"full": 3, "header_only": 1},
		FundsByStatus:   map[model.Status]int{model.StatusEffective: 5, model.StatusPending: 2},
	}
	m.Observe(first)
	m.Observe(&model.RunSummary{
		NewFilings:    1,
		FinishedAt:    finished.Add(time.Hour),
		FundsByStatus: map[model.Status]int{model.StatusEffective: 6},
	})

	assert.InDelta(t, 2, testutil.ToFloat64(m.Runs), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.Filings.WithLabelValues("new")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(m.Filings.WithLabelValues("skipped")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Strategies.WithLabelValues("full")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WorkerErrors), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(m.Requests), 0)

	// Gauges reflect only the latest run.
	assert.InDelta(t, 6, testutil.ToFloat64(m.Funds.WithLabelValues("EFFECTIVE")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Funds.WithLabelValues("PENDING")), 0)
	assert.InDelta(t, float64(finished.Add(time.Hour).Unix()), testutil.ToFloat64(m.LastRunTimestamp), 0)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.Observe(&model.RunSummary{})
	assert.InDelta(t, 0, testutil.ToFloat64(b.Runs), 0)
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.Observe(&model.RunSummary{NewFilings: 2})

	path := filepath.Join(t.TempDir(), "etp.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `etp_filings_total{outcome="new"} 2`)

	err = m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "etp.prom"))
	assert.Error(t, err)
}

func TestSummary_RoundTrip(t *testing.T) {
	root := t.TempDir()
	in := &model.RunSummary{RunID: "r1", NewFilings: 3, Strategies: map[string]int{"full": 3}}
	require.NoError(t, SaveSummary(root, in))

	out, err := LoadSummary(root)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "r1", out.RunID)
	assert.Equal(t, 3, out.Strategies["full"])

	require.NoError(t, os.WriteFile(filepath.Join(root, SummaryFile), []byte("{"), 0o644))
	_, err = LoadSummary(root)
	assert.Error(t, err)
}
