package parse

import (
	"regexp"
	"strings"

	"github.com/sells-group/etp-tracker/internal/model"
)

// DateEvidence is an effective date found in filing text, with the tier of
// the pattern that produced it. Delaying is independent of the date.
type DateEvidence struct {
	Date       *model.Date
	Confidence model.Confidence
	Delaying   bool
}

// Merge folds other into e. The date is replaced only by evidence of
// strictly higher rank; the delaying flag is ORed.
func (e *DateEvidence) Merge(other DateEvidence) {
	e.Delaying = e.Delaying || other.Delaying
	if other.Date == nil {
		return
	}
	if e.Date == nil || other.Confidence.Rank() > e.Confidence.Rank() {
		e.Date = other.Date
		e.Confidence = other.Confidence
	}
}

// Settled reports whether no text source can outrank the current date.
func (e DateEvidence) Settled() bool {
	return e.Date != nil && e.Confidence.Rank() >= model.ConfidenceHigh.Rank()
}

var delayingPhrases = []string{
	"delaying amendment",
	"delay its effective date",
	"delay the effective date",
	"rule 485(a)",
	"rule 473",
}

const longDate = `([A-Z][a-z]+\s+\d{1,2},?\s+\d{4})`

var highPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)on\s+` + longDate + `\s+pursuant\s+to\s+paragraph`),
	regexp.MustCompile(`(?i)designating\s+` + longDate + `\s+as\s+the\s+new\s+effective\s+date`),
	regexp.MustCompile(`(?i)effective\s+date\s+(?:of|is)\s+` + longDate),
}

var mediumPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:become|becomes|shall become|will become|will be)\s+effective\s+(?:on|as of)\s+` + longDate),
	regexp.MustCompile(`(?i)effective\s+(?:on|as of)\s+(\d{1,2}/\d{1,2}/\d{2,4})`),
	regexp.MustCompile(`(?i)effective\s+on\s+or\s+about\s+` + longDate),
}

// IsDelaying reports whether text contains delaying-amendment language.
func IsDelaying(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range delayingPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// HeaderEffectiveDate returns the EFFECTIVENESS DATE header field, if any.
func HeaderEffectiveDate(text string) *model.Date {
	m := reHeaderEffective.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return parseCompactDate(m[1])
}

// FindEffectiveDate searches text for an effective date, trying the header
// field, then high-confidence phrasing, then medium-confidence phrasing.
// The first tier that yields a parseable date wins.
func FindEffectiveDate(text string) DateEvidence {
	if strings.TrimSpace(text) == "" {
		return DateEvidence{}
	}
	ev := DateEvidence{Delaying: IsDelaying(text)}

	if d := HeaderEffectiveDate(text); d != nil {
		ev.Date, ev.Confidence = d, model.ConfidenceHeader
		return ev
	}

	flat := normalizeSpace(text)
	tiers := []struct {
		patterns   []*regexp.Regexp
		confidence model.Confidence
	}{
		{highPatterns, model.ConfidenceHigh},
		{mediumPatterns, model.ConfidenceMedium},
	}
	for _, tier := range tiers {
		for _, re := range tier.patterns {
			m := re.FindStringSubmatch(flat)
			if m == nil {
				continue
			}
			if d := ParseDate(m[1]); d != nil {
				ev.Date, ev.Confidence = d, tier.confidence
				return ev
			}
		}
	}
	return ev
}
