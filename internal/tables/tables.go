// Package tables reads and writes the per-registrant CSV tables that carry
// data between pipeline stages.
package tables

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/etp-tracker/internal/atomicfile"
	"github.com/sells-group/etp-tracker/internal/model"
)

// Table file names inside a registrant folder.
const (
	FilingsFile     = "filings.csv"
	RelevantFile    = "relevant_filings.csv"
	FactsFile       = "fund_facts.csv"
	StatusFile      = "fund_status.csv"
	NameHistoryFile = "name_history.csv"
)

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug converts a trust name into a folder name.
func Slug(name string) string {
	s := strings.Trim(reUnsafe.ReplaceAllString(strings.TrimSpace(name), "_"), "_.")
	if s == "" {
		return "unknown"
	}
	return s
}

// Folder returns the registrant folder for trust under root.
func Folder(root, trust string) string {
	return filepath.Join(root, Slug(trust))
}

// Folders lists registrant folders under root that contain a filings table.
func Folders(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tables: list %s", root)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, RelevantFile)); err == nil {
			out = append(out, dir)
		}
	}
	return out, nil
}

// read decodes every row of path into T. A missing or empty file yields no rows.
func read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tables: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	dec, err := csvutil.NewDecoder(r)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tables: read header %s", path)
	}

	var rows []T
	for {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "tables: decode %s", path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// write replaces path with rows. The header is written even when rows is empty.
func write[T any](path string, rows []T) error {
	err := atomicfile.WriteFunc(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		enc := csvutil.NewEncoder(cw)
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return err
		}
		for i := range rows {
			if err := enc.Encode(rows[i]); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	return eris.Wrapf(err, "tables: write %s", filepath.Base(path))
}

// ReadFilings reads filings.csv from dir.
func ReadFilings(dir string) ([]model.Filing, error) {
	return read[model.Filing](filepath.Join(dir, FilingsFile))
}

// WriteFilings replaces filings.csv in dir.
func WriteFilings(dir string, rows []model.Filing) error {
	return write(filepath.Join(dir, FilingsFile), rows)
}

// ReadRelevant reads relevant_filings.csv from dir.
func ReadRelevant(dir string) ([]model.Filing, error) {
	return read[model.Filing](filepath.Join(dir, RelevantFile))
}

// WriteRelevant replaces relevant_filings.csv in dir.
func WriteRelevant(dir string, rows []model.Filing) error {
	return write(filepath.Join(dir, RelevantFile), rows)
}

// ReadFacts reads fund_facts.csv from dir.
func ReadFacts(dir string) ([]model.FundFact, error) {
	return read[model.FundFact](filepath.Join(dir, FactsFile))
}

// AppendFacts merges rows into fund_facts.csv, keeping the last row per
// dedup key, and returns the merged table. Existing row order is kept; a
// replaced row moves to the position of its replacement.
func AppendFacts(dir string, rows []model.FundFact) ([]model.FundFact, error) {
	existing, err := ReadFacts(dir)
	if err != nil {
		return nil, err
	}
	merged := DedupeFacts(append(existing, rows...))
	if err := write(filepath.Join(dir, FactsFile), merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// DedupeFacts keeps the last occurrence of each fact key, preserving the
// relative order of the survivors.
func DedupeFacts(rows []model.FundFact) []model.FundFact {
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[r.Key()] = i
	}
	out := make([]model.FundFact, 0, len(last))
	for i, r := range rows {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out
}

// ReadStatus reads fund_status.csv from dir.
func ReadStatus(dir string) ([]model.FundStatus, error) {
	return read[model.FundStatus](filepath.Join(dir, StatusFile))
}

// WriteStatus replaces fund_status.csv in dir.
func WriteStatus(dir string, rows []model.FundStatus) error {
	return write(filepath.Join(dir, StatusFile), rows)
}

// ReadNameHistory reads name_history.csv from dir.
func ReadNameHistory(dir string) ([]model.NameHistoryEntry, error) {
	return read[model.NameHistoryEntry](filepath.Join(dir, NameHistoryFile))
}

// WriteNameHistory replaces name_history.csv in dir.
func WriteNameHistory(dir string, rows []model.NameHistoryEntry) error {
	return write(filepath.Join(dir, NameHistoryFile), rows)
}
