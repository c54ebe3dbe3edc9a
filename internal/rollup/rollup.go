package rollup

import (
	"sort"
	"strings"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/parse"
)

var badTickers = map[string]bool{
	"SYMBOL": true, "NAN": true, "N/A": true, "NA": true, "NONE": true, "TBD": true,
}

// Rollup applies DefaultRules to a registrant's facts.
func Rollup(facts []model.FundFact, trust string, today model.Date) []model.FundStatus {
	return DefaultRules.Rollup(facts, trust, today)
}

// Rollup groups facts by fund and derives one status row per fund. Rows are
// ordered by trust, status, then fund name. When two rows share a series id
// and ticker, the later one in that order is kept.
func (r Rules) Rollup(facts []model.FundFact, trust string, today model.Date) []model.FundStatus {
	if len(facts) == 0 {
		return nil
	}
	sorted := append([]model.FundFact(nil), facts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return model.Before(sorted[i].FilingDate, sorted[j].FilingDate)
	})

	var order []string
	groups := map[string][]model.FundFact{}
	for _, f := range sorted {
		k := f.GroupKey()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}

	rows := make([]model.FundStatus, 0, len(order))
	for _, k := range order {
		rows = append(rows, r.fundStatus(groups[k], trust, today))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Trust != b.Trust {
			return a.Trust < b.Trust
		}
		if a.Status.SortOrder() != b.Status.SortOrder() {
			return a.Status.SortOrder() < b.Status.SortOrder()
		}
		return a.FundName < b.FundName
	})
	return dedupe(rows)
}

// fundStatus reduces one fund's facts, already in filing-date order. The
// deciding fact is the latest one of the most authoritative form class.
func (r Rules) fundStatus(g []model.FundFact, trust string, today model.Date) model.FundStatus {
	var latest model.FundFact
	best := FormClass(-1)
	for _, f := range g {
		if c := Classify(f.Form); c >= best {
			latest, best = f, c
		}
	}

	last := g[len(g)-1]
	status, reason := r.Determine(latest, today)
	out := model.FundStatus{
		SeriesID:         lastNonEmpty(g, func(f model.FundFact) string { return f.SeriesID }),
		ClassID:          lastNonEmpty(g, func(f model.FundFact) string { return f.ClassID }),
		HeaderName:       last.HeaderName(),
		ProspectusName:   lastNonEmpty(g, func(f model.FundFact) string { return f.ProspectusName }),
		Ticker:           lastNonEmpty(g, cleanTicker),
		Trust:            lastNonEmpty(g, func(f model.FundFact) string { return f.Registrant }),
		CIK:              lastNonEmpty(g, func(f model.FundFact) string { return f.CIK }),
		Status:           status,
		StatusReason:     reason,
		EffectiveDate:    latest.EffectiveDate,
		DateConfidence:   latest.DateConfidence,
		LatestForm:       latest.Form,
		LatestFilingDate: latest.FilingDate,
		ProspectusLink:   prospectusLink(g, latest),
	}
	out.FundName = parse.CanonicalName(out.HeaderName)
	if out.Trust == "" {
		out.Trust = trust
	}
	return out
}

func lastNonEmpty(g []model.FundFact, field func(model.FundFact) string) string {
	for i := len(g) - 1; i >= 0; i-- {
		if v := strings.TrimSpace(field(g[i])); v != "" {
			return v
		}
	}
	return ""
}

func cleanTicker(f model.FundFact) string {
	t := strings.ToUpper(strings.TrimSpace(f.Ticker))
	if len(t) < 2 || badTickers[t] {
		return ""
	}
	return t
}

// prospectusLink prefers the latest 485 filing's primary document; 497
// supplements are not full prospectuses.
func prospectusLink(g []model.FundFact, latest model.FundFact) string {
	for i := len(g) - 1; i >= 0; i-- {
		if strings.HasPrefix(g[i].FormUpper(), "485") && g[i].PrimaryLink != "" {
			return g[i].PrimaryLink
		}
	}
	return latest.PrimaryLink
}

func dedupe(rows []model.FundStatus) []model.FundStatus {
	last := map[string]int{}
	for i, r := range rows {
		if r.SeriesID != "" {
			last[r.SeriesID+"|"+r.Ticker] = i
		}
	}
	out := rows[:0:0]
	for i, r := range rows {
		if r.SeriesID == "" || last[r.SeriesID+"|"+r.Ticker] == i {
			out = append(out, r)
		}
	}
	return out
}
