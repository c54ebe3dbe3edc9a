// Package namehistory implements the fourth pipeline stage: the history of
// legally registered names per permanent series identifier.
package namehistory

import (
	"sort"
	"strings"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/parse"
)

type span struct {
	entry model.NameHistoryEntry
	order int
}

// Build derives name history from fund facts. Only header-registered names
// are used, and facts without a series id are ignored. Within a series,
// names differing only in case or spacing collapse into one entry. The entry
// seen most recently is current and has no last-seen date.
func Build(facts []model.FundFact) []model.NameHistoryEntry {
	sorted := make([]model.FundFact, 0, len(facts))
	for _, f := range facts {
		if strings.TrimSpace(f.SeriesID) != "" {
			sorted = append(sorted, f)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return model.Before(sorted[i].FilingDate, sorted[j].FilingDate)
	})

	var seriesOrder []string
	bySeries := map[string][]*span{}
	index := map[string]*span{}
	for _, f := range sorted {
		name := strings.TrimSpace(f.HeaderName())
		clean := parse.CanonicalName(name)
		if clean == "" {
			continue
		}
		id := strings.TrimSpace(f.SeriesID)
		key := id + "\x00" + strings.ToLower(clean)
		if s, ok := index[key]; ok {
			if f.FilingDate != nil {
				s.entry.LastSeen = f.FilingDate
			}
			continue
		}
		if _, ok := bySeries[id]; !ok {
			seriesOrder = append(seriesOrder, id)
		}
		s := &span{
			entry: model.NameHistoryEntry{
				SeriesID:        id,
				Name:            name,
				NameClean:       clean,
				FirstSeen:       f.FilingDate,
				LastSeen:        f.FilingDate,
				SourceForm:      f.Form,
				SourceAccession: f.Accession,
			},
			order: len(bySeries[id]),
		}
		index[key] = s
		bySeries[id] = append(bySeries[id], s)
	}

	sort.Strings(seriesOrder)
	var out []model.NameHistoryEntry
	for _, id := range seriesOrder {
		spans := bySeries[id]
		cur := current(spans)
		cur.entry.Current = true
		cur.entry.LastSeen = nil

		sort.SliceStable(spans, func(i, j int) bool {
			return model.Before(spans[i].entry.FirstSeen, spans[j].entry.FirstSeen)
		})
		for _, s := range spans {
			out = append(out, s.entry)
		}
	}
	return out
}

// current picks the span with the latest last-seen date. Ties go to the
// later first-seen date, then to the name that appeared later.
func current(spans []*span) *span {
	best := spans[0]
	for _, s := range spans[1:] {
		if later(s, best) {
			best = s
		}
	}
	return best
}

func later(a, b *span) bool {
	if c := compareDates(a.entry.LastSeen, b.entry.LastSeen); c != 0 {
		return c > 0
	}
	if c := compareDates(a.entry.FirstSeen, b.entry.FirstSeen); c != 0 {
		return c > 0
	}
	return a.order > b.order
}

// compareDates orders dates ascending with nil as the oldest.
func compareDates(a, b *model.Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(b.Time)
	}
}

// ForSeries returns the entries of one series in first-seen order.
func ForSeries(entries []model.NameHistoryEntry, seriesID string) []model.NameHistoryEntry {
	var out []model.NameHistoryEntry
	for _, e := range entries {
		if strings.EqualFold(e.SeriesID, strings.TrimSpace(seriesID)) {
			out = append(out, e)
		}
	}
	return out
}

// SeriesMatch is a series whose name history matched a search.
type SeriesMatch struct {
	SeriesID    string   `json:"series_id"`
	CurrentName string   `json:"current_name"`
	AllNames    []string `json:"all_names"`
}

// FindByName returns the series that have ever carried a name containing
// query, case-insensitively, in order of first match.
func FindByName(entries []model.NameHistoryEntry, query string) []SeriesMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var order []string
	matched := map[string]bool{}
	for _, e := range entries {
		if matched[e.SeriesID] {
			continue
		}
		if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.NameClean), q) {
			matched[e.SeriesID] = true
			order = append(order, e.SeriesID)
		}
	}

	out := make([]SeriesMatch, 0, len(order))
	for _, id := range order {
		m := SeriesMatch{SeriesID: id}
		for _, e := range ForSeries(entries, id) {
			m.AllNames = append(m.AllNames, e.Name)
			if e.Current {
				m.CurrentName = e.Name
			}
		}
		out = append(out, m)
	}
	return out
}
