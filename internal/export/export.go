// Package export builds the combined workbook across every registrant folder.
package export

import (
	"io"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/atomicfile"
	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/tables"
)

// Workbook file and sheet names.
const (
	WorkbookFile = "etp_tracker_summary.xlsx"
	StatusSheet  = "Fund Status"
	NamesSheet   = "Name History"
)

// Result describes a written workbook.
type Result struct {
	Path   string
	Trusts int
	Funds  int
	Names  int
}

type column[T any] struct {
	header string
	value  func(T) string
}

var statusColumns = []column[model.FundStatus]{
	{"Trust", func(s model.FundStatus) string { return s.Trust }},
	{"CIK", func(s model.FundStatus) string { return s.CIK }},
	{"Fund Name", func(s model.FundStatus) string { return s.FundName }},
	{"Ticker", func(s model.FundStatus) string { return s.Ticker }},
	{"Status", func(s model.FundStatus) string { return string(s.Status) }},
	{"Status Reason", func(s model.FundStatus) string { return s.StatusReason }},
	{"Effective Date", func(s model.FundStatus) string { return model.DateString(s.EffectiveDate) }},
	{"Effective Date Confidence", func(s model.FundStatus) string { return string(s.DateConfidence) }},
	{"Latest Form", func(s model.FundStatus) string { return s.LatestForm }},
	{"Latest Filing Date", func(s model.FundStatus) string { return model.DateString(s.LatestFilingDate) }},
	{"Series ID", func(s model.FundStatus) string { return s.SeriesID }},
	{"Class-Contract ID", func(s model.FundStatus) string { return s.ClassID }},
	{"SGML Name", func(s model.FundStatus) string { return s.HeaderName }},
	{"Prospectus Name", func(s model.FundStatus) string { return s.ProspectusName }},
	{"Prospectus Link", func(s model.FundStatus) string { return s.ProspectusLink }},
}

// namedEntry tags a name history row with its trust.
type namedEntry struct {
	trust string
	model.NameHistoryEntry
}

var nameColumns = []column[namedEntry]{
	{"Trust", func(n namedEntry) string { return n.trust }},
	{"Series ID", func(n namedEntry) string { return n.SeriesID }},
	{"Name", func(n namedEntry) string { return n.Name }},
	{"Name Clean", func(n namedEntry) string { return n.NameClean }},
	{"First Seen Date", func(n namedEntry) string { return model.DateString(n.FirstSeen) }},
	{"Last Seen Date", func(n namedEntry) string { return model.DateString(n.LastSeen) }},
	{"Is Current", func(n namedEntry) string { return strconv.FormatBool(n.Current) }},
	{"Source Form", func(n namedEntry) string { return n.SourceForm }},
	{"Source Accession", func(n namedEntry) string { return n.SourceAccession }},
}

// Workbook combines fund_status.csv and name_history.csv from every
// registrant folder under root into <root>/etp_tracker_summary.xlsx.
func Workbook(root string) (*Result, error) {
	folders, err := tables.Folders(root)
	if err != nil {
		return nil, eris.Wrap(err, "export: list folders")
	}

	var (
		statuses []model.FundStatus
		names    []namedEntry
	)
	for _, dir := range folders {
		st, err := tables.ReadStatus(dir)
		if err != nil {
			return nil, eris.Wrapf(err, "export: %s", dir)
		}
		nh, err := tables.ReadNameHistory(dir)
		if err != nil {
			return nil, eris.Wrapf(err, "export: %s", dir)
		}
		trust := filepath.Base(dir)
		if len(st) > 0 && st[0].Trust != "" {
			trust = st[0].Trust
		}
		statuses = append(statuses, st...)
		for _, n := range nh {
			names = append(names, namedEntry{trust: trust, NameHistoryEntry: n})
		}
	}

	f := xlsx.NewFile()
	if err := addSheet(f, StatusSheet, statusColumns, statuses); err != nil {
		return nil, err
	}
	if err := addSheet(f, NamesSheet, nameColumns, names); err != nil {
		return nil, err
	}

	path := filepath.Join(root, WorkbookFile)
	if err := atomicfile.WriteFunc(path, func(w io.Writer) error { return f.Write(w) }); err != nil {
		return nil, eris.Wrap(err, "export: save workbook")
	}

	zap.L().Info("export: workbook written",
		zap.String("path", path),
		zap.Int("trusts", len(folders)),
		zap.Int("funds", len(statuses)),
		zap.Int("names", len(names)),
	)
	return &Result{Path: path, Trusts: len(folders), Funds: len(statuses), Names: len(names)}, nil
}

func addSheet[T any](f *xlsx.File, name string, cols []column[T], rows []T) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}
	header := sheet.AddRow()
	for _, c := range cols {
		header.AddCell().SetString(c.header)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range cols {
			row.AddCell().SetString(c.value(r))
		}
	}
	return nil
}

// ReadSheet returns every row of the named sheet as strings.
func ReadSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open workbook")
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("export: sheet %q not found", name)
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
