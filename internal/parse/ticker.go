package parse

import (
	"regexp"
	"strings"
)

// Ticker provenance markers appended to a fact's ExtractedFrom.
const (
	TickerFromTitle = "TITLE-PAREN"
	TickerFromLabel = "LABEL-WINDOW"
)

const tickerWindow = 600

var tickerStopwords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "WITH": true, "ETF": true, "FUND": true,
	"RISK": true, "USD": true, "MEMBER": true, "SYMBOL": true, "NAN": true,
	"NONE": true, "TBD": true, "COM": true, "INC": true, "LLC": true,
	"TRUST": true, "DAILY": true, "TARGET": true,
}

var reTickerLabel = regexp.MustCompile(`(?i)(Ticker|Trading\s*Symbol)\s*[:\-\x{2013}]\s*([A-Z0-9]{1,6})`)

// ValidTicker reports whether s looks like an exchange ticker: 2 to 5
// letters or digits, at least one letter, and not a placeholder word.
func ValidTicker(s string) bool {
	t := strings.ToUpper(strings.TrimSpace(s))
	if len(t) < 2 || len(t) > 5 || tickerStopwords[t] {
		return false
	}
	letter := false
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return letter
}

// namePattern matches name with any whitespace between its words.
func namePattern(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `\s+`)
}

// TickerFor finds the ticker for a fund name in body texts. It prefers
// "Name (TICK)" anywhere, then a Ticker:/Trading Symbol: label within 600
// characters of a name occurrence. It returns the ticker and its provenance
// marker, or two empty strings.
func TickerFor(name string, texts []string) (string, string) {
	pat := namePattern(name)
	if pat == "" {
		return "", ""
	}
	reParen, err := regexp.Compile(`(?i)` + pat + `\s*\(\s*([A-Z0-9]{1,6})\s*\)`)
	if err != nil {
		return "", ""
	}
	for _, t := range texts {
		for _, m := range reParen.FindAllStringSubmatch(t, -1) {
			if cand := strings.ToUpper(m[1]); ValidTicker(cand) {
				return cand, TickerFromTitle
			}
		}
	}

	reName := regexp.MustCompile(`(?i)` + pat)
	for _, t := range texts {
		for _, loc := range reName.FindAllStringIndex(t, -1) {
			start := max(0, loc[0]-tickerWindow)
			end := min(len(t), loc[1]+tickerWindow)
			for _, m := range reTickerLabel.FindAllStringSubmatch(t[start:end], -1) {
				if cand := strings.ToUpper(m[2]); ValidTicker(cand) {
					return cand, TickerFromLabel
				}
			}
		}
	}
	return "", ""
}
