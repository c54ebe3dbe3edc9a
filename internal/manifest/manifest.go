// Package manifest tracks which filings of a registrant have been processed,
// so repeated pipeline runs only extract new, failed, or outdated work.
package manifest

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/atomicfile"
)

// PipelineVersion is bumped whenever extraction logic changes in a way that
// should invalidate earlier successes.
const PipelineVersion = 2

// FileName is the ledger file inside each registrant folder.
const FileName = "_manifest.json"

const maxErrorRunes = 500

// Entry status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry is the processing outcome of one filing.
type Entry struct {
	Status       string    `json:"status"`
	Version      int       `json:"version"`
	Form         string    `json:"form"`
	FactCount    int       `json:"extracted_count"`
	ErrorMessage *string   `json:"error_message"`
	RetryCount   int       `json:"retry_count"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Manifest maps accession number to its latest outcome.
type Manifest map[string]Entry

// Path returns the ledger path for a registrant folder.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the ledger in dir. A missing ledger is empty. A corrupt ledger
// is logged and treated as empty, which forces reprocessing.
func Load(dir string) (Manifest, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		zap.L().Warn("manifest: corrupt ledger, reprocessing all filings",
			zap.String("path", path), zap.Error(err))
		return Manifest{}, nil
	}
	return m, nil
}

// Save replaces the ledger in dir atomically.
func Save(dir string, m Manifest) error {
	if m == nil {
		m = Manifest{}
	}
	err := atomicfile.WriteFunc(Path(dir), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
	return eris.Wrap(err, "manifest: save")
}

// Clear removes the ledger in dir. A missing ledger is not an error.
func Clear(dir string) error {
	err := os.Remove(Path(dir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "manifest: clear %s", dir)
	}
	return nil
}

func processed(e Entry) bool {
	return e.Status == StatusSuccess && e.Version >= PipelineVersion
}

func retryable(e Entry, max int) bool {
	return e.Status == StatusError && e.RetryCount < max
}

// Processed returns the accessions that succeeded at the current version.
// They are never re-extracted.
func (m Manifest) Processed() map[string]bool {
	out := make(map[string]bool)
	for acc, e := range m {
		if processed(e) {
			out[acc] = true
		}
	}
	return out
}

// Retryable returns the failed accessions with fewer than max attempts.
func (m Manifest) Retryable(max int) map[string]bool {
	out := make(map[string]bool)
	for acc, e := range m {
		if retryable(e, max) {
			out[acc] = true
		}
	}
	return out
}

// ShouldProcess reports whether acc needs (re)extraction: it is unknown,
// outside Processed, or in Retryable. Exhausted errors are skipped.
func (m Manifest) ShouldProcess(acc string, max int) bool {
	e, ok := m[acc]
	if !ok {
		return true
	}
	if e.Status == StatusError {
		return retryable(e, max)
	}
	return !processed(e)
}

// IsRetry reports whether acc has a previous failed attempt.
func (m Manifest) IsRetry(acc string) bool {
	e, ok := m[acc]
	return ok && e.Status == StatusError
}

// RecordSuccess marks acc processed at the current version and clears any
// earlier error.
func (m Manifest) RecordSuccess(acc, form string, count int, now time.Time) {
	m[acc] = Entry{
		Status:      StatusSuccess,
		Version:     PipelineVersion,
		Form:        form,
		FactCount:   count,
		ProcessedAt: now.UTC(),
	}
}

// RecordError marks acc failed and increments its retry count.
func (m Manifest) RecordError(acc, form string, cause error, now time.Time) {
	msg := "unknown error"
	if cause != nil {
		msg = truncate(cause.Error(), maxErrorRunes)
	}
	m[acc] = Entry{
		Status:       StatusError,
		Version:      PipelineVersion,
		Form:         form,
		ErrorMessage: &msg,
		RetryCount:   m[acc].RetryCount + 1,
		ProcessedAt:  now.UTC(),
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
