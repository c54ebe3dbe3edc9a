package parse

import (
	"regexp"
	"strings"
)

const minNameSimilarity = 0.5

var reNameToken = regexp.MustCompile(`[A-Z0-9]+`)

var nameStopwords = map[string]bool{
	"ETF": true, "FUND": true, "TRUST": true, "THE": true, "AND": true,
	"FOR": true, "WITH": true, "DAILY": true, "TARGET": true, "CAPITAL": true,
}

func nameTokens(upper string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range reNameToken.FindAllString(upper, -1) {
		if !nameStopwords[tok] {
			set[tok] = true
		}
	}
	return set
}

// NameSimilarity is the Jaccard overlap of two names' distinctive tokens.
func NameSimilarity(a, b string) float64 {
	ta := nameTokens(strings.ToUpper(a))
	tb := nameTokens(strings.ToUpper(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// MatchProspectusName returns the body name most similar to headerName,
// provided the overlap is at least 0.5 and the names differ. Ties keep the
// earliest candidate. It returns "" when nothing qualifies.
func MatchProspectusName(headerName string, bodyNames []string) string {
	header := strings.ToUpper(normalizeSpace(headerName))
	if header == "" {
		return ""
	}
	best, bestScore := "", 0.0
	for _, cand := range bodyNames {
		if strings.ToUpper(normalizeSpace(cand)) == header {
			continue
		}
		score := NameSimilarity(header, cand)
		if score >= minNameSimilarity && score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}
