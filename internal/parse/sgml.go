// Package parse extracts fund facts from EDGAR submission text. Every
// function is total: garbage input yields empty results, never a panic.
package parse

import (
	"regexp"
	"strings"
)

// HeaderClass is one (series, class) pair from a submission header.
type HeaderClass struct {
	SeriesID   string
	SeriesName string
	ClassID    string
	ClassName  string
	Ticker     string
}

// Name returns the class name, else the series name.
func (h HeaderClass) Name() string {
	if h.ClassName != "" {
		return h.ClassName
	}
	return h.SeriesName
}

var (
	reNewSeries = regexp.MustCompile(`(?is)<NEW-SERIES>(.*?)</NEW-SERIES>`)
	reSeries    = regexp.MustCompile(`(?is)<SERIES>(.*?)</SERIES>`)
	reClass     = regexp.MustCompile(`(?is)<CLASS-CONTRACT>(.*?)</CLASS-CONTRACT>`)
	tagPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{
		"SERIES-ID", "SERIES-NAME",
		"CLASS-CONTRACT-ID", "CLASS-CONTRACTIDENTIFIER",
		"CLASS-CONTRACT-NAME", "CLASS-NAME",
		"CLASS-CONTRACT-TICKER-SYMBOL", "CLASS-TICKER-SYMBOL", "CLASS-TICKER",
		"TYPE", "FILENAME",
	} {
		tagPatterns[tag] = regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(tag) + `>[ \t]*([^<\r\n]+)`)
	}
}

// grab returns the whitespace-normalized value of the first of tags present in block.
func grab(block string, tags ...string) string {
	for _, tag := range tags {
		re, ok := tagPatterns[tag]
		if !ok {
			continue
		}
		if m := re.FindStringSubmatch(block); m != nil {
			if v := normalizeSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseHeader enumerates the series and share classes declared in a
// submission header. NEW-SERIES blocks come first, then SERIES blocks.
// A series with no class blocks yields a single row with empty class fields.
func ParseHeader(txt string) []HeaderClass {
	if txt == "" {
		return nil
	}
	var out []HeaderClass
	for _, re := range []*regexp.Regexp{reNewSeries, reSeries} {
		for _, m := range re.FindAllStringSubmatch(txt, -1) {
			out = append(out, seriesRows(m[1])...)
		}
	}
	return out
}

func seriesRows(block string) []HeaderClass {
	base := HeaderClass{
		SeriesID:   grab(block, "SERIES-ID"),
		SeriesName: grab(block, "SERIES-NAME"),
	}
	classes := reClass.FindAllStringSubmatch(block, -1)
	if len(classes) == 0 {
		return []HeaderClass{base}
	}
	rows := make([]HeaderClass, 0, len(classes))
	for _, cm := range classes {
		row := base
		row.ClassID = grab(cm[1], "CLASS-CONTRACT-ID", "CLASS-CONTRACTIDENTIFIER")
		row.ClassName = grab(cm[1], "CLASS-CONTRACT-NAME", "CLASS-NAME")
		sym := strings.ToUpper(grab(cm[1], "CLASS-CONTRACT-TICKER-SYMBOL", "CLASS-TICKER-SYMBOL", "CLASS-TICKER"))
		if ValidTicker(sym) {
			row.Ticker = sym
		}
		rows = append(rows, row)
	}
	return rows
}

var reHeaderEffective = regexp.MustCompile(`(?i)EFFECTIVENESS\s+DATE:\s*(\d{8})`)
