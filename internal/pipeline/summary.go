package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/etp-tracker/internal/atomicfile"
	"github.com/sells-group/etp-tracker/internal/model"
)

// SummaryFile is the run summary written at the output root.
const SummaryFile = "_run_summary.json"

// SaveSummary writes s to <root>/_run_summary.json atomically.
func SaveSummary(root string, s *model.RunSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal summary")
	}
	if err := atomicfile.Write(filepath.Join(root, SummaryFile), data); err != nil {
		return eris.Wrap(err, "pipeline: save summary")
	}
	return nil
}

// LoadSummary reads the last run summary. It returns nil, nil when no run
// has completed yet.
func LoadSummary(root string) (*model.RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(root, SummaryFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read summary")
	}
	var s model.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode summary")
	}
	return &s, nil
}
