package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/pipeline"
	"github.com/sells-group/etp-tracker/internal/store"
	"github.com/sells-group/etp-tracker/internal/tables"
)

type fakeRuns struct {
	last   *model.RunSummary
	runs   []model.RunSummary
	err    error
	filter store.RunFilter
}

func (f *fakeRuns) LastRun(context.Context) (*model.RunSummary, error) {
	return f.last, f.err
}

func (f *fakeRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]model.RunSummary, error) {
	f.filter = filter
	return f.runs, f.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func seedTrust(t *testing.T, root string) {
	t.Helper()
	dir := tables.Folder(root, "Acme ETF Trust")
	require.NoError(t, tables.WriteStatus(dir, []model.FundStatus{
		{SeriesID: "S000000001", FundName: "Acme Gold ETF", Trust: "Acme ETF Trust", Status: model.StatusEffective},
		{SeriesID: "S000000002", FundName: "Acme Silver ETF", Trust: "Acme ETF Trust", Status: model.StatusPending},
	}))
	require.NoError(t, tables.WriteNameHistory(dir, []model.NameHistoryEntry{
		{SeriesID: "S000000001", Name: "Acme Gold ETF", Current: true},
		{SeriesID: "S000000001", Name: "Acme Bullion ETF"},
		{SeriesID: "S000000002", Name: "Acme Silver ETF", Current: true},
	}))
}

func TestHealthz(t *testing.T) {
	rec := get(t, New(t.TempDir(), nil, nil).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLastRun_FromStore(t *testing.T) {
	runs := &fakeRuns{last: &model.RunSummary{RunID: "r-2", NewFilings: 3}}
	rec := get(t, New(t.TempDir(), runs, nil).Handler(), "/runs/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "r-2", got.RunID)
	assert.Equal(t, 3, got.NewFilings)
}

func TestLastRun_FallsBackToSummaryFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, pipeline.SaveSummary(root, &model.RunSummary{RunID: "local"}))

	rec := get(t, New(root, &fakeRuns{}, nil).Handler(), "/runs/last")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"local"`)
}

func TestLastRun_NoneRecorded(t *testing.T) {
	rec := get(t, New(t.TempDir(), nil, nil).Handler(), "/runs/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLastRun_StoreError(t *testing.T) {
	rec := get(t, New(t.TempDir(), &fakeRuns{err: errors.New("db down")}, nil).Handler(), "/runs/last")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{runs: []model.RunSummary{{RunID: "a"}, {RunID: "b"}}}
	h := New(t.TempDir(), runs, nil).Handler()

	rec := get(t, h, "/runs?limit=5&offset=2&failed=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.RunFilter{FailedOnly: true, Limit: 5, Offset: 2}, runs.filter)

	var got []model.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs?limit=x").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs?offset=-1").Code)
}

func TestListRuns_NoStore(t *testing.T) {
	rec := get(t, New(t.TempDir(), nil, nil).Handler(), "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestTrustStatus(t *testing.T) {
	root := t.TempDir()
	seedTrust(t, root)
	h := New(root, nil, nil).Handler()

	rec := get(t, h, "/trusts/Acme_ETF_Trust/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.FundStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	rec = get(t, h, "/trusts/Acme%20ETF%20Trust/status?status=PENDING")
	require.Equal(t, http.StatusOK, rec.Code)
	got = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Acme Silver ETF", got[0].FundName)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/trusts/Nobody/status").Code)
}

func TestTrustNames(t *testing.T) {
	root := t.TempDir()
	seedTrust(t, root)
	h := New(root, nil, nil).Handler()

	rec := get(t, h, "/trusts/Acme_ETF_Trust/names?series=S000000001")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.NameHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	rec = get(t, h, "/trusts/Acme_ETF_Trust/names?series=S999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	m := pipeline.NewMetrics()
	m.Observe(&model.RunSummary{NewFilings: 2, Strategies: map[string]int{"full": 2}})

	rec := get(t, New(t.TempDir(), nil, m.Registry()).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "etp_runs_total")

	assert.Equal(t, http.StatusNotFound, get(t, New(t.TempDir(), nil, nil).Handler(), "/metrics").Code)
}
