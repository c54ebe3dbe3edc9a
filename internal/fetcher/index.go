package fetcher

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/model"
)

// DefaultSubmissionsURL is the EDGAR per-registrant filing index endpoint.
const DefaultSubmissionsURL = "https://data.sec.gov/submissions/CIK{CIK10}.json"

// RefreshPolicy decides when LoadIndex goes to the network.
type RefreshPolicy int

const (
	// RefreshIfStale fetches when the cached index is missing or older than IndexMaxAge.
	RefreshIfStale RefreshPolicy = iota
	// RefreshAlways fetches unconditionally.
	RefreshAlways
	// RefreshNever uses any readable cached index.
	RefreshNever
)

func (p RefreshPolicy) String() string {
	switch p {
	case RefreshAlways:
		return "always"
	case RefreshNever:
		return "never"
	default:
		return "stale"
	}
}

// ParseRefreshPolicy maps a config value to a RefreshPolicy.
func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stale", "if_stale":
		return RefreshIfStale, nil
	case "always", "force", "now":
		return RefreshAlways, nil
	case "never", "cache":
		return RefreshNever, nil
	default:
		return RefreshIfStale, eris.Errorf("fetcher: unknown refresh mode %q", s)
	}
}

// Index is the subset of an EDGAR submissions document the tracker reads.
// Filing columns are parallel arrays.
type Index struct {
	CIK     string   `json:"cik"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings struct {
		Recent FilingColumns `json:"recent"`
	} `json:"filings"`
}

// FilingColumns holds the parallel filing arrays of an index.
type FilingColumns struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
	IsInlineXBRL    []int    `json:"isInlineXBRL"`
}

// Records flattens the index into filing rows for cik, labelled with
// registrant. Rows shorter than the form column get empty values.
func (ix *Index) Records(cik, registrant string) []model.Filing {
	cols := ix.Filings.Recent
	out := make([]model.Filing, 0, len(cols.Form))
	for i := range cols.Form {
		acc := strings.TrimSpace(at(cols.AccessionNumber, i))
		doc := strings.TrimSpace(at(cols.PrimaryDocument, i))
		f := model.Filing{
			Form:            strings.TrimSpace(cols.Form[i]),
			Accession:       acc,
			PrimaryDocument: doc,
			PrimaryLink:     PrimaryLink(cik, acc, doc),
			SubmissionLink:  SubmissionLink(cik, acc),
			CIK:             cik,
			Registrant:      registrant,
			InlineXBRL:      i < len(cols.IsInlineXBRL) && cols.IsInlineXBRL[i] == 1,
		}
		if d, err := model.ParseDate(at(cols.FilingDate, i)); err == nil {
			f.FilingDate = d
		}
		out = append(out, f)
	}
	return out
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// LoadIndex returns the filing index for cik, going to the network as the
// policy requires. A cached index that cannot be parsed is refetched.
func (c *Client) LoadIndex(ctx context.Context, cik string, policy RefreshPolicy) (*Index, error) {
	norm, err := model.NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}
	padded := model.PadCIK(norm)
	path := c.cachePath(submissionsDir, padded+".json")

	if !c.indexNeedsRefresh(path, policy) {
		if data, ok := readCache(path); ok {
			var ix Index
			if err := json.Unmarshal(data, &ix); err == nil {
				return &ix, nil
			}
			c.log.Warn("cached index unreadable, refetching", zap.String("cik", norm), zap.String("path", path))
		}
	}

	url := strings.ReplaceAll(c.opts.SubmissionsURL, "{CIK10}", padded)
	body, _, err := c.get(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: load index for CIK %s", norm)
	}
	var ix Index
	if err := json.Unmarshal(body, &ix); err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode index for CIK %s", norm)
	}
	c.writeCache(path, body)
	return &ix, nil
}

func (c *Client) indexNeedsRefresh(path string, policy RefreshPolicy) bool {
	if path == "" {
		return true
	}
	switch policy {
	case RefreshAlways:
		return true
	case RefreshNever:
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return true
	}
	return time.Since(fi.ModTime()) >= c.opts.IndexMaxAge
}
