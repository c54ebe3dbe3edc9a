package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/etp-tracker/internal/model"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"November 7, 2025", "2025-11-07"},
		{"November 7 2025", "2025-11-07"},
		{"NOVEMBER 7, 2025", "2025-11-07"},
		{"11/07/2025", "2025-11-07"},
		{"1/5/2025", "2025-01-05"},
		{"11/07/25", "2025-11-07"},
		{"2025-11-07", "2025-11-07"},
		{"Nov. 7, 2025", "2025-11-07"},
		{"Sept. 30, 2024", "2024-09-30"},
		{"7 November 2025", "2025-11-07"},
		{"November 7th, 2025", "2025-11-07"},
		{"20251107", "2025-11-07"},
		{"", ""},
		{"Octember 40, 2025", ""},
		{"soon", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, model.DateString(ParseDate(tt.in)))
		})
	}
}

func TestFindEffectiveDate(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		date       string
		confidence model.Confidence
		delaying   bool
	}{
		{
			name:       "header field wins",
			text:       "EFFECTIVENESS DATE: 20240515\nIt is proposed that this filing will become effective on June 1, 2024",
			date:       "2024-05-15",
			confidence: model.ConfidenceHeader,
		},
		{
			name:       "checkbox pursuant to paragraph",
			text:       "[X] on May 20, 2024 pursuant to paragraph (b) of Rule 485",
			date:       "2024-05-20",
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "new effective date designation across lines",
			text:       "designating\nJuly 1, 2024 as the\nnew effective date for the Fund",
			date:       "2024-07-01",
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "high beats medium regardless of position",
			text:       "shares will become effective on March 3, 2024. The effective date of April 4, 2024 applies.",
			date:       "2024-04-04",
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "medium numeric",
			text:       "The amendment is effective as of 6/30/2024.",
			date:       "2024-06-30",
			confidence: model.ConfidenceMedium,
		},
		{
			name:       "medium on or about",
			text:       "The Fund will commence operations effective on or about August 15, 2024.",
			date:       "2024-08-15",
			confidence: model.ConfidenceMedium,
		},
		{
			name:     "delaying without date",
			text:     "The registrant hereby amends this registration statement to delay its effective date until further notice.",
			delaying: true,
		},
		{
			name:       "delaying with date",
			text:       "Pursuant to Rule 473 ... designating May 1, 2024 as the new effective date",
			date:       "2024-05-01",
			confidence: model.ConfidenceHigh,
			delaying:   true,
		},
		{
			name: "unparseable date falls through",
			text: "the effective date is Someday 99, 2024",
		},
		{name: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := FindEffectiveDate(tt.text)
			assert.Equal(t, tt.date, model.DateString(ev.Date))
			assert.Equal(t, tt.confidence, ev.Confidence)
			assert.Equal(t, tt.delaying, ev.Delaying)
		})
	}
}

func TestHeaderEffectiveDate(t *testing.T) {
	assert.Equal(t, "2024-05-15", model.DateString(HeaderEffectiveDate("effectiveness date:   20240515")))
	assert.Nil(t, HeaderEffectiveDate("EFFECTIVENESS DATE: 20241399"))
	assert.Nil(t, HeaderEffectiveDate(""))
}

func TestDateEvidenceMerge(t *testing.T) {
	medium := DateEvidence{Date: model.MustDate("2024-01-01"), Confidence: model.ConfidenceMedium}
	high := DateEvidence{Date: model.MustDate("2024-02-02"), Confidence: model.ConfidenceHigh}
	header := DateEvidence{Date: model.MustDate("2024-03-03"), Confidence: model.ConfidenceHeader}
	ixbrl := DateEvidence{Date: model.MustDate("2024-04-04"), Confidence: model.ConfidenceIXBRL}

	var ev DateEvidence
	ev.Merge(DateEvidence{Delaying: true})
	assert.Nil(t, ev.Date)
	assert.True(t, ev.Delaying)

	ev.Merge(medium)
	assert.Equal(t, "2024-01-01", ev.Date.String())
	assert.False(t, ev.Settled())

	// Same rank never replaces.
	ev.Merge(DateEvidence{Date: model.MustDate("2024-09-09"), Confidence: model.ConfidenceMedium})
	assert.Equal(t, "2024-01-01", ev.Date.String())

	ev.Merge(high)
	assert.Equal(t, model.ConfidenceHigh, ev.Confidence)
	assert.True(t, ev.Settled())

	ev.Merge(header)
	ev.Merge(high)
	ev.Merge(medium)
	require.NotNil(t, ev.Date)
	assert.Equal(t, "2024-03-03", ev.Date.String())

	ev.Merge(ixbrl)
	assert.Equal(t, "2024-04-04", ev.Date.String())
	assert.Equal(t, model.ConfidenceIXBRL, ev.Confidence)
	assert.True(t, ev.Delaying, "delaying flag is sticky")
}
