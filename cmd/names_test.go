package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/tables"
)

// seedFolder writes a minimal trust folder that tables.Folders recognizes.
func seedFolder(t *testing.T, root, trust string, statuses []model.FundStatus, names []model.NameHistoryEntry) {
	t.Helper()
	dir := tables.Folder(root, trust)
	require.NoError(t, tables.WriteRelevant(dir, nil))
	require.NoError(t, tables.WriteStatus(dir, statuses))
	require.NoError(t, tables.WriteNameHistory(dir, names))
}

func TestLoadNameHistory_AcrossTrusts(t *testing.T) {
	root := t.TempDir()
	seedFolder(t, root, "Acme ETF Trust", nil, []model.NameHistoryEntry{
		{SeriesID: "S000000001", Name: "Acme Gold ETF", Current: true},
		{SeriesID: "S000000001", Name: "Acme Bullion ETF"},
	})
	seedFolder(t, root, "Beta Trust", nil, []model.NameHistoryEntry{
		{SeriesID: "S000000009", Name: "Beta Bullion Fund", Current: true},
	})

	all, err := loadNameHistory(root)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	empty, err := loadNameHistory(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFormatNameHistory(t *testing.T) {
	var buf bytes.Buffer
	formatNameHistory(&buf, []model.NameHistoryEntry{
		{SeriesID: "S000000001", Name: "Acme Gold ETF", FirstSeen: model.MustDate("2024-05-01"), Current: true, SourceForm: "485BPOS"},
	})
	out := buf.String()
	assert.Contains(t, out, "FIRST SEEN")
	assert.Contains(t, out, "Acme Gold ETF")
	assert.Contains(t, out, "2024-05-01")
	assert.Contains(t, out, "*")
}

func TestFormatTrusts(t *testing.T) {
	var buf bytes.Buffer
	formatTrusts(&buf, []model.Registrant{{CIK: "1001", Name: "Acme ETF Trust", Act: model.Act40, Active: true}})
	assert.Contains(t, buf.String(), "Acme ETF Trust")
	assert.Contains(t, buf.String(), "true")
}
