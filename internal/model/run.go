package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RunSummary records what one pipeline run did.
type RunSummary struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	TrustsProcessed int            `json:"trusts_processed"`
	TrustsFailed    int            `json:"trusts_failed"`
	NewFilings      int            `json:"new_filings"`
	SkippedFilings  int            `json:"skipped_filings"`
	Errors          int            `json:"errors"`
	Retried         int            `json:"retried"`
	WorkerErrors    int            `json:"worker_errors"`
	FactsWritten    int            `json:"facts_written"`
	Requests        int64          `json:"requests"`
	Strategies      map[string]int `json:"strategies"`
	FundsByStatus   map[Status]int `json:"funds_by_status"`
}

// AddStrategy adds n filings to a strategy tally.
func (s *RunSummary) AddStrategy(name string, n int) {
	if s.Strategies == nil {
		s.Strategies = map[string]int{}
	}
	s.Strategies[name] += n
}

// Finish stamps the end time and duration, rounded to a tenth of a second.
func (s *RunSummary) Finish(end time.Time) {
	s.FinishedAt = end.UTC()
	if !s.StartedAt.IsZero() {
		d := end.Sub(s.StartedAt).Seconds()
		s.DurationSeconds = float64(int64(d*10+0.5)) / 10
	}
}

// Line renders a one-line human summary, e.g.
// "Processed 4 new filings (skipped 10) Strategies: 1 full, 3 header_only. 1 errors. 2.5s".
func (s *RunSummary) Line() string {
	parts := []string{
		fmt.Sprintf("Processed %d new filings", s.NewFilings),
		fmt.Sprintf("(skipped %d)", s.SkippedFilings),
	}
	if len(s.Strategies) > 0 {
		names := make([]string, 0, len(s.Strategies))
		for k := range s.Strategies {
			names = append(names, k)
		}
		sort.Strings(names)
		strat := make([]string, len(names))
		for i, k := range names {
			strat[i] = fmt.Sprintf("%d %s", s.Strategies[k], k)
		}
		parts = append(parts, "Strategies: "+strings.Join(strat, ", ")+".")
	}
	if s.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors.", s.Errors))
	}
	parts = append(parts, fmt.Sprintf("%gs", s.DurationSeconds))
	return strings.Join(parts, " ")
}
