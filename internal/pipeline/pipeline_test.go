package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/etp-tracker/internal/config"
	"github.com/sells-group/etp-tracker/internal/fetcher"
	"github.com/sells-group/etp-tracker/internal/manifest"
	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/tables"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	acmeCIK   = "1001"
	accPOS    = "0001001-24-000001"
	accXT     = "0001001-24-000002"
	accEffect = "0001001-24-000003"
	acc10K    = "0001001-24-000004"
)

const posSubmission = `<SEC-HEADER>
ACCESSION NUMBER: 0001001-24-000001
CONFORMED SUBMISSION TYPE: 485BPOS
<SERIES-AND-CLASSES-CONTRACTS-DATA>
<EXISTING-SERIES-AND-CLASSES-CONTRACTS>
<SERIES>
<SERIES-ID>S000010001
<SERIES-NAME>Acme Momentum ETF
<CLASS-CONTRACT>
<CLASS-CONTRACT-ID>C000020001
<CLASS-CONTRACT-NAME>Acme Momentum ETF
</CLASS-CONTRACT>
</SERIES>
</EXISTING-SERIES-AND-CLASSES-CONTRACTS>
</SERIES-AND-CLASSES-CONTRACTS-DATA>
</SEC-HEADER>
<DOCUMENT>
<TYPE>485BPOS
<FILENAME>acme485bpos.htm
<TEXT>
<p>Acme Momentum ETF (AMOM)</p>
</TEXT>
</DOCUMENT>
`

const xtSubmission = `<SEC-HEADER>
ACCESSION NUMBER: 0001001-24-000002
CONFORMED SUBMISSION TYPE: 485BXT
EFFECTIVENESS DATE: 20240701
<SERIES-AND-CLASSES-CONTRACTS-DATA>
<EXISTING-SERIES-AND-CLASSES-CONTRACTS>
<SERIES>
<SERIES-ID>S000010002
<SERIES-NAME>Acme Value ETF
<CLASS-CONTRACT>
<CLASS-CONTRACT-ID>C000020002
<CLASS-CONTRACT-NAME>Acme Value ETF
</CLASS-CONTRACT>
</SERIES>
</EXISTING-SERIES-AND-CLASSES-CONTRACTS>
</SERIES-AND-CLASSES-CONTRACTS-DATA>
</SEC-HEADER>
<DOCUMENT>
<TYPE>485BXT
<TEXT>
body never read
</TEXT>
</DOCUMENT>
`

// fakeEDGAR is the shared backing store of every fakeClient in a test.
type fakeEDGAR struct {
	mu      sync.Mutex
	indexes map[string]*fetcher.Index
	docs    map[string]string
	fail    map[string]error
	panicOn string

	clients  atomic.Int32
	requests atomic.Int64
}

func newFakeEDGAR() *fakeEDGAR {
	ix := &fetcher.Index{CIK: acmeCIK, Name: "Acme ETF Trust"}
	ix.Filings.Recent = fetcher.FilingColumns{
		AccessionNumber: []string{acc10K, accEffect, accXT, accPOS},
		FilingDate:      []string{"2024-05-01", "2024-03-20", "2024-04-01", "2024-03-01"},
		Form:            []string{"10-K", "EFFECT", "485BXT", "485BPOS"},
		PrimaryDocument: []string{"k.htm", "", "xt.htm", "acme485bpos.htm"},
	}
	return &fakeEDGAR{
		indexes: map[string]*fetcher.Index{acmeCIK: ix},
		docs: map[string]string{
			fetcher.SubmissionLink(acmeCIK, accPOS): posSubmission,
			fetcher.SubmissionLink(acmeCIK, accXT):  xtSubmission,
		},
		fail: map[string]error{},
	}
}

func (e *fakeEDGAR) factory() ClientFactory {
	return func() Client {
		e.clients.Add(1)
		return &fakeClient{edgar: e}
	}
}

type fakeClient struct {
	edgar    *fakeEDGAR
	requests int64
}

func (c *fakeClient) hit(url string) (string, error) {
	c.requests++
	c.edgar.requests.Add(1)
	c.edgar.mu.Lock()
	defer c.edgar.mu.Unlock()
	if url != "" && url == c.edgar.panicOn {
		panic("boom")
	}
	if err := c.edgar.fail[url]; err != nil {
		return "", err
	}
	return c.edgar.docs[url], nil
}

func (c *fakeClient) LoadIndex(_ context.Context, cik string, _ fetcher.RefreshPolicy) (*fetcher.Index, error) {
	c.requests++
	c.edgar.requests.Add(1)
	c.edgar.mu.Lock()
	defer c.edgar.mu.Unlock()
	ix, ok := c.edgar.indexes[cik]
	if !ok {
		return nil, eris.Errorf("http 404: CIK %s", cik)
	}
	return ix, nil
}

func (c *fakeClient) FetchText(_ context.Context, url string) (string, error) {
	return c.hit(url)
}

func (c *fakeClient) FetchBytes(_ context.Context, url string) ([]byte, error) {
	s, err := c.hit(url)
	return []byte(s), err
}

func (c *fakeClient) FetchHeaderOnly(_ context.Context, url string) (string, error) {
	return c.hit(url)
}

func (c *fakeClient) Requests() int64 { return c.requests }

type recorder struct {
	mu   sync.Mutex
	runs []*model.RunSummary
}

func (r *recorder) RecordRun(_ context.Context, s *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, s)
	return nil
}

type publisher struct {
	mu       sync.Mutex
	trusts   []string
	statuses int
	names    int
	err      error
}

func (p *publisher) Publish(_ context.Context, trust string, statuses []model.FundStatus, names []model.NameHistoryEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trusts = append(p.trusts, trust)
	p.statuses += len(statuses)
	p.names += len(names)
	return p.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pipeline.OutputRoot = t.TempDir()
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.RefreshMode = "stale"
	cfg.Pipeline.MaxRetries = 3
	cfg.Pipeline.DefaultEffectiveDays = 75
	cfg.Pipeline.FormExact = []string{"EFFECT"}
	cfg.Pipeline.FormPrefixes = []string{"485A", "485B", "497", "N-1A", "S-1", "S-3"}
	cfg.Pipeline.HeaderOnlyForms = []string{"485BXT", "497J"}
	return cfg
}

func runOpts() Options {
	return Options{
		Registrants: []model.Registrant{
			{CIK: acmeCIK, Active: true},
			{CIK: "2002", Name: "Missing Trust", Active: true},
		},
		Today: model.MustDate("2024-06-01"),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	edgar := newFakeEDGAR()
	rec := &recorder{}
	pub := &publisher{}
	metrics := NewMetrics()

	p, err := New(cfg, Deps{Clients: edgar.factory(), Recorder: rec, Publisher: pub, Metrics: metrics})
	require.NoError(t, err)

	s, err := p.Run(context.Background(), runOpts())
	require.NoError(t, err)

	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, 1, s.TrustsProcessed)
	assert.Equal(t, 1, s.TrustsFailed)
	assert.Equal(t, 2, s.NewFilings, "EFFECT is recorded but not counted")
	assert.Zero(t, s.SkippedFilings)
	assert.Zero(t, s.Errors)
	assert.Zero(t, s.WorkerErrors)
	assert.Equal(t, 2, s.FactsWritten)
	assert.Equal(t, map[string]int{model.StrategyFull: 1, model.StrategyHeaderOnly: 1}, s.Strategies)
	assert.Equal(t, 1, s.FundsByStatus[model.StatusEffective])
	assert.Equal(t, 1, s.FundsByStatus[model.StatusPending])
	assert.Equal(t, edgar.requests.Load(), s.Requests)
	assert.False(t, s.FinishedAt.Before(s.StartedAt))

	dir := tables.Folder(cfg.Pipeline.OutputRoot, "Acme ETF Trust")
	statuses, err := tables.ReadStatus(dir)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	byClass := map[string]model.FundStatus{}
	for _, st := range statuses {
		byClass[st.ClassID] = st
	}
	assert.Equal(t, model.StatusEffective, byClass["C000020001"].Status)
	assert.Equal(t, "AMOM", byClass["C000020001"].Ticker)
	assert.Equal(t, model.StatusPending, byClass["C000020002"].Status)
	assert.Equal(t, "485BXT effective date 2024-07-01 is future", byClass["C000020002"].StatusReason)

	names, err := tables.ReadNameHistory(dir)
	require.NoError(t, err)
	assert.Len(t, names, 2)

	m, err := manifest.Load(dir)
	require.NoError(t, err)
	assert.Len(t, m, 3)
	assert.Equal(t, manifest.StatusSuccess, m[accEffect].Status)
	assert.NotContains(t, m, acc10K)

	saved, err := LoadSummary(cfg.Pipeline.OutputRoot)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, s.RunID, saved.RunID)
	assert.Equal(t, 2, saved.NewFilings)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, s.RunID, rec.runs[0].RunID)
	assert.Equal(t, []string{"Acme ETF Trust"}, pub.trusts)
	assert.Equal(t, 2, pub.statuses)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Filings.WithLabelValues("new")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TrustsFailed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Funds.WithLabelValues(string(model.StatusPending))), 0)
}

func TestRun_Idempotent(t *testing.T) {
	cfg := testConfig(t)
	edgar := newFakeEDGAR()
	p, err := New(cfg, Deps{Clients: edgar.factory()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), runOpts())
	require.NoError(t, err)
	dir := tables.Folder(cfg.Pipeline.OutputRoot, "Acme ETF Trust")
	first, err := os.ReadFile(filepath.Join(dir, tables.StatusFile))
	require.NoError(t, err)
	factsBefore, err := tables.ReadFacts(dir)
	require.NoError(t, err)

	s, err := p.Run(context.Background(), runOpts())
	require.NoError(t, err)
	assert.Zero(t, s.NewFilings)
	assert.Equal(t, 3, s.SkippedFilings)
	assert.Zero(t, s.FactsWritten)

	second, err := os.ReadFile(filepath.Join(dir, tables.StatusFile))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	factsAfter, err := tables.ReadFacts(dir)
	require.NoError(t, err)
	assert.Equal(t, factsBefore, factsAfter)
}

func TestRun_ForceReprocess(t *testing.T) {
	cfg := testConfig(t)
	edgar := newFakeEDGAR()
	p, err := New(cfg, Deps{Clients: edgar.factory()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), runOpts())
	require.NoError(t, err)

	opts := runOpts()
	opts.ForceReprocess = true
	s, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, s.NewFilings)
	assert.Zero(t, s.SkippedFilings)

	facts, err := tables.ReadFacts(tables.Folder(cfg.Pipeline.OutputRoot, "Acme ETF Trust"))
	require.NoError(t, err)
	assert.Len(t, facts, 2, "reprocessed facts replace, never duplicate")
}

func TestRun_FilingErrorIsRecorded(t *testing.T) {
	cfg := testConfig(t)
	edgar := newFakeEDGAR()
	edgar.fail[fetcher.SubmissionLink(acmeCIK, accPOS)] = eris.New("http 503: unavailable")
	p, err := New(cfg, Deps{Clients: edgar.factory()})
	require.NoError(t, err)

	s, err := p.Run(context.Background(), runOpts())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.NewFilings)
	assert.Zero(t, s.WorkerErrors)

	m, err := manifest.Load(tables.Folder(cfg.Pipeline.OutputRoot, "Acme ETF Trust"))
	require.NoError(t, err)
	assert.Equal(t, manifest.StatusError, m[accPOS].Status)
	assert.Equal(t, 1, m[accPOS].RetryCount)
}

func TestRun_PanicIsContained(t *testing.T) {
	cfg := testConfig(t)
	edgar := newFakeEDGAR()
	edgar.panicOn = fetcher.SubmissionLink(acmeCIK, accPOS)

	idx := &fetcher.Index{CIK: "3003", Name: "Beta Funds"}
	idx.Filings.Recent = fetcher.FilingColumns{
		AccessionNumber: []string{"0003003-24-000001"},
		FilingDate:      []string{"2024-02-01"},
		Form:            []string{"485BXT"},
	}
	edgar.indexes["3003"] = idx
	edgar.docs[fetcher.SubmissionLink("3003", "0003003-24-000001")] = xtSubmission

	p, err := New(cfg, Deps{Clients: edgar.factory()})
	require.NoError(t, err)

	opts := runOpts()
	opts.Registrants = append(opts.Registrants, model.Registrant{CIK: "3003", Active: true})
	s, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, s.WorkerErrors)
	assert.Equal(t, 2, s.TrustsProcessed)
	assert.Equal(t, 1, s.NewFilings, "the healthy registrant still completes")

	statuses, err := tables.ReadStatus(tables.Folder(cfg.Pipeline.OutputRoot, "Beta Funds"))
	require.NoError(t, err)
	assert.Len(t, statuses, 1)
}

func TestRun_OneClientPerTask(t *testing.T) {
	cfg := testConfig(t)
	edgar := newFakeEDGAR()
	p, err := New(cfg, Deps{Clients: edgar.factory()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), runOpts())
	require.NoError(t, err)
	// One for Stage 1 plus one per ingested registrant.
	assert.Equal(t, int32(2), edgar.clients.Load())
}

func TestRun_ConfigurationErrors(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, Deps{Clients: newFakeEDGAR().factory()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active registrants")

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.Pipeline.OutputRoot = filepath.Join(file, "out")
	_, err = p.Run(context.Background(), runOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output root")
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, Deps{Clients: newFakeEDGAR().factory()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := p.Run(ctx, runOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	require.NotNil(t, s)
	assert.Zero(t, s.TrustsProcessed)

	saved, err := LoadSummary(cfg.Pipeline.OutputRoot)
	require.NoError(t, err)
	assert.NotNil(t, saved)
}

func TestNew_Validation(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg, Deps{})
	assert.Error(t, err)

	cfg.Pipeline.RefreshMode = "sometimes"
	_, err = New(cfg, Deps{Clients: newFakeEDGAR().factory()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh mode")
}

func TestLoadSummary_Missing(t *testing.T) {
	s, err := LoadSummary(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, s)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFile), []byte("{"), 0o644))
	_, err = LoadSummary(dir)
	assert.Error(t, err)
}
