package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/etp-tracker/internal/model"
)

const sampleYAML = `trusts:
  - cik: "0002043954"
    name: REX ETF Trust
    active: true
  - cik: "1529505"
    name: United States Commodity Funds Trust I
    act: "33"
    active: true
  - cik: "1040587"
    name: "  Direxion Funds "
    active: false
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, r.Trusts, 3)

	assert.Equal(t, "2043954", r.Trusts[0].CIK)
	assert.Equal(t, model.Act40, r.Trusts[0].Act)
	assert.Equal(t, model.Act33, r.Trusts[1].Act)
	assert.Equal(t, "Direxion Funds", r.Trusts[2].Name)

	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "1529505", active[1].CIK)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad cik", "trusts:\n  - cik: abc\n", "invalid CIK"},
		{"duplicate", "trusts:\n  - cik: '12'\n  - cik: '0012'\n", "duplicate CIK 12"},
		{"bad act", "trusts:\n  - cik: '12'\n    act: '34'\n", "unknown act"},
		{"not yaml", "trusts: [", "unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "trusts.yaml"))
	require.NoError(t, err)
	assert.Empty(t, r.Trusts)
}

func TestAddSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trusts.yaml")
	r, err := Load(path)
	require.NoError(t, err)

	added, err := r.Add("0001976517", "Roundhill ETF Trust", "")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.Add("1976517", "Roundhill again", model.Act40)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = r.Add("x", "bad", "")
	require.Error(t, err)
	_, err = r.Add("5", "bad act", "34")
	require.Error(t, err)

	require.NoError(t, r.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Roundhill ETF Trust")

	loaded, err := Load(path)
	require.NoError(t, err)
	got, ok := loaded.Get("001976517")
	require.True(t, ok)
	assert.True(t, got.Active)
	assert.Equal(t, model.Act40, got.Act)
}

func TestSetActiveAndSorted(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.True(t, r.SetActive("2043954", false))
	assert.False(t, r.SetActive("999", true))
	assert.False(t, r.SetActive("nope", true))
	assert.Len(t, r.Active(), 1)

	sorted := r.Sorted()
	assert.Equal(t, "Direxion Funds", sorted[0].Name)
	assert.Equal(t, "United States Commodity Funds Trust I", sorted[2].Name)
}
