package parse

import (
	"regexp"
	"strings"
)

const maxFundNames = 50

var (
	reFundName   = regexp.MustCompile(`[A-Z][A-Za-z0-9 \t\-\.]+(?:ETF|Fund|Trust)`)
	reJunkPrefix = regexp.MustCompile(`(?i)^(?:SUMMARY\s+PROSPECTUS\s+.*?TRUST\s+SUMMARY\s+PROSPECTUS\s+|SUMMARY\s+PROSPECTUS\s+|Prospectus\s+for\s+|Income\s+ETF\s+|Option\s+Strategy\s+ETF\s+)`)
	reCompound   = regexp.MustCompile(`(?i)\b(?:ETF|Fund)\s+and\s+`)
)

// CleanFundName strips cover-page boilerplate that the name pattern tends
// to capture ahead of a fund name. Names of five characters or fewer after
// cleaning are rejected as "".
func CleanFundName(name string) string {
	cleaned := strings.TrimSpace(reJunkPrefix.ReplaceAllString(normalizeSpace(name), ""))
	if len(cleaned) <= 5 {
		return ""
	}
	return cleaned
}

// FundNames returns candidate fund names found in body text, in order of
// first appearance, at most 50. Compound names such as "X ETF and Y ETF"
// are dropped.
func FundNames(text string) []string {
	if text == "" {
		return nil
	}
	seenRaw := map[string]bool{}
	seen := map[string]bool{}
	var names []string
	for _, m := range reFundName.FindAllString(text, -1) {
		raw := normalizeSpace(m)
		if len(raw) <= 10 || seenRaw[raw] {
			continue
		}
		seenRaw[raw] = true

		cleaned := CleanFundName(raw)
		if cleaned == "" || reCompound.MatchString(cleaned) || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		names = append(names, cleaned)
		if len(names) == maxFundNames {
			break
		}
	}
	return names
}

var reFundSuffix = regexp.MustCompile(`(?i)\s*\(\s*(?:the\s+)?["\x{201c}]?(?:fund|etf)["\x{201d}]?\s*\)\s*$`)

// CanonicalName normalizes a header-registered fund name for display and
// comparison: whitespace collapsed, a trailing `(the "Fund")` defined-term
// suffix and stray edge punctuation removed.
func CanonicalName(name string) string {
	s := strings.Trim(normalizeSpace(name), " ,;:-")
	s = reFundSuffix.ReplaceAllString(s, "")
	return strings.Trim(s, " ,;:-")
}
