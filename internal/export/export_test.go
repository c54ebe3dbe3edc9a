package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/tables"
)

func seedTrust(t *testing.T, root, trust string, statuses []model.FundStatus, names []model.NameHistoryEntry) {
	t.Helper()
	dir := tables.Folder(root, trust)
	require.NoError(t, tables.WriteRelevant(dir, nil))
	require.NoError(t, tables.WriteStatus(dir, statuses))
	require.NoError(t, tables.WriteNameHistory(dir, names))
}

func TestWorkbook(t *testing.T) {
	root := t.TempDir()
	seedTrust(t, root, "Acme ETF Trust",
		[]model.FundStatus{
			{Trust: "Acme ETF Trust", CIK: "1001", FundName: "Acme Momentum ETF", Ticker: "AMOM",
				Status: model.StatusEffective, StatusReason: "485BPOS filed (fund trading)",
				LatestFilingDate: model.MustDate("2024-03-01"), ClassID: "C000020001"},
			{Trust: "Acme ETF Trust", CIK: "1001", FundName: "Acme Value ETF", Status: model.StatusPending,
				EffectiveDate: model.MustDate("2024-07-01"), DateConfidence: model.ConfidenceHeader},
		},
		[]model.NameHistoryEntry{
			{SeriesID: "S000010001", Name: "Acme Momentum ETF", NameClean: "Acme Momentum ETF",
				FirstSeen: model.MustDate("2024-03-01"), Current: true, SourceForm: "485BPOS"},
		})
	seedTrust(t, root, "Beta Funds",
		[]model.FundStatus{{Trust: "Beta Funds", FundName: "Beta Gold ETF", Status: model.StatusDelayed}},
		nil)
	// Folders without a relevant filings table are ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "http_cache"), 0o755))

	res, err := Workbook(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, WorkbookFile), res.Path)
	assert.Equal(t, 2, res.Trusts)
	assert.Equal(t, 3, res.Funds)
	assert.Equal(t, 1, res.Names)

	rows, err := ReadSheet(res.Path, StatusSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Trust", rows[0][0])
	assert.Equal(t, "Prospectus Link", rows[0][len(rows[0])-1])
	assert.Equal(t, []string{"Acme ETF Trust", "1001", "Acme Momentum ETF", "AMOM", "EFFECTIVE"}, rows[1][:5])
	assert.Equal(t, "2024-07-01", rows[2][6])
	assert.Equal(t, "HEADER", rows[2][7])
	assert.Equal(t, "Beta Funds", rows[3][0])

	names, err := ReadSheet(res.Path, NamesSheet)
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "Acme ETF Trust", names[1][0])
	assert.Equal(t, "2024-03-01", names[1][4])
	assert.Equal(t, "true", names[1][6])
}

func TestWorkbook_EmptyRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")

	res, err := Workbook(root)
	require.NoError(t, err)
	assert.Zero(t, res.Funds)

	rows, err := ReadSheet(res.Path, StatusSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

func TestReadSheet_Errors(t *testing.T) {
	_, err := ReadSheet(filepath.Join(t.TempDir(), "missing.xlsx"), StatusSheet)
	assert.Error(t, err)

	res, err := Workbook(t.TempDir())
	require.NoError(t, err)
	_, err = ReadSheet(res.Path, "Nope")
	assert.ErrorContains(t, err, `sheet "Nope" not found`)
}
