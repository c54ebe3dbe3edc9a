package parse

import (
	"strings"
	"time"

	"github.com/sells-group/etp-tracker/internal/model"
)

// Layouts tried first, in order, after commas are removed.
var dateLayouts = []string{
	"January 2 2006",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02",
}

// Looser layouts tried, after ordinals and "Sept" are normalized, when
// none of dateLayouts match.
var fallbackLayouts = []string{
	"January 2 2006",
	"Jan 2 2006",
	"Jan. 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"20060102",
	"2006/01/02",
	"2006-1-2",
	"01-02-2006",
	"January 2006",
}

var ordinalSuffix = strings.NewReplacer("1st", "1", "2nd", "2", "3rd", "3", "th ", " ", "Sept ", "Sep ", "Sept. ", "Sep. ")

// ParseDate parses a date string found in filing text. It returns nil when
// no layout matches.
func ParseDate(s string) *model.Date {
	s = normalizeSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.DatePtr(t)
		}
	}
	loose := strings.TrimSpace(ordinalSuffix.Replace(s + " "))
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, loose); err == nil {
			return model.DatePtr(t)
		}
	}
	return nil
}

// parseCompactDate parses the YYYYMMDD form used by header fields.
func parseCompactDate(s string) *model.Date {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return nil
	}
	return model.DatePtr(t)
}
