package model

// Status is the registration lifecycle state of a fund.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusEffective Status = "EFFECTIVE"
	StatusDelayed   Status = "DELAYED"
	StatusUnknown   Status = "UNKNOWN"
)

// SortOrder ranks statuses for report ordering.
func (s Status) SortOrder() int {
	switch s {
	case StatusPending:
		return 0
	case StatusDelayed:
		return 1
	case StatusEffective:
		return 2
	default:
		return 3
	}
}

// FundStatus is the current rollup state of one fund.
type FundStatus struct {
	SeriesID         string     `csv:"Series ID" json:"series_id"`
	ClassID          string     `csv:"Class-Contract ID" json:"class_id"`
	FundName         string     `csv:"Fund Name" json:"fund_name"`
	HeaderName       string     `csv:"SGML Name" json:"header_name"`
	ProspectusName   string     `csv:"Prospectus Name" json:"prospectus_name,omitempty"`
	Ticker           string     `csv:"Ticker" json:"ticker,omitempty"`
	Trust            string     `csv:"Trust" json:"trust"`
	CIK              string     `csv:"CIK" json:"cik"`
	Status           Status     `csv:"Status" json:"status"`
	StatusReason     string     `csv:"Status Reason" json:"status_reason"`
	EffectiveDate    *Date      `csv:"Effective Date" json:"effective_date,omitempty"`
	DateConfidence   Confidence `csv:"Effective Date Confidence" json:"date_confidence,omitempty"`
	LatestForm       string     `csv:"Latest Form" json:"latest_form"`
	LatestFilingDate *Date      `csv:"Latest Filing Date" json:"latest_filing_date,omitempty"`
	ProspectusLink   string     `csv:"Prospectus Link" json:"prospectus_link,omitempty"`
}

// NameHistoryEntry is one legally registered name observed for a series.
type NameHistoryEntry struct {
	SeriesID        string `csv:"Series ID" json:"series_id"`
	Name            string `csv:"Name" json:"name"`
	NameClean       string `csv:"Name Clean" json:"name_clean"`
	FirstSeen       *Date  `csv:"First Seen Date" json:"first_seen,omitempty"`
	LastSeen        *Date  `csv:"Last Seen Date" json:"last_seen,omitempty"`
	Current         bool   `csv:"Is Current" json:"current"`
	SourceForm      string `csv:"Source Form" json:"source_form"`
	SourceAccession string `csv:"Source Accession" json:"source_accession"`
}
