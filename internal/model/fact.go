package model

import "strings"

// Confidence grades how an effective date was obtained.
type Confidence string

const (
	ConfidenceNone   Confidence = ""
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceHeader Confidence = "HEADER"
	ConfidenceIXBRL  Confidence = "IXBRL"
)

// Rank orders confidence tiers; a higher rank is more authoritative.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceIXBRL:
		return 4
	case ConfidenceHeader:
		return 3
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Extraction strategies recorded on each fact.
const (
	StrategyHeaderOnly = "header_only"
	StrategyFull       = "full"
	StrategyFullIXBRL  = "full+ixbrl"
)

// Provenance markers for ExtractedFrom.
const (
	SourceSGML = "SGML-TXT"
	SourceNone = "NONE"
)

// FundFact is one (series, class) tuple observed in one filing.
type FundFact struct {
	SeriesID       string     `csv:"Series ID" json:"series_id"`
	SeriesName     string     `csv:"Series Name" json:"series_name"`
	ClassID        string     `csv:"Class-Contract ID" json:"class_id"`
	ClassName      string     `csv:"Class Contract Name" json:"class_name"`
	Ticker         string     `csv:"Class Symbol" json:"ticker"`
	Form           string     `csv:"Form" json:"form"`
	FilingDate     *Date      `csv:"Filing Date" json:"filing_date,omitempty"`
	Accession      string     `csv:"Accession Number" json:"accession"`
	PrimaryLink    string     `csv:"Primary Link" json:"primary_link"`
	SubmissionLink string     `csv:"Full Submission TXT" json:"submission_link"`
	Registrant     string     `csv:"Registrant" json:"registrant"`
	CIK            string     `csv:"CIK" json:"cik"`
	ExtractedFrom  string     `csv:"Extracted From" json:"extracted_from"`
	EffectiveDate  *Date      `csv:"Effective Date" json:"effective_date,omitempty"`
	DateConfidence Confidence `csv:"Effective Date Confidence" json:"date_confidence,omitempty"`
	Delaying       bool       `csv:"Delaying Amendment" json:"delaying"`
	ProspectusName string     `csv:"Prospectus Name" json:"prospectus_name,omitempty"`
	Strategy       string     `csv:"Extraction Strategy" json:"strategy"`
	ExpenseRatio   *float64   `csv:"Expense Ratio" json:"expense_ratio,omitempty"`
}

// Key returns the de-duplication key: accession, class id, class name, ticker.
func (f FundFact) Key() string {
	return f.Accession + "|" + f.ClassID + "|" + f.ClassName + "|" + f.Ticker
}

// HeaderName returns the legally registered name from the structured header:
// the class name when present, else the series name.
func (f FundFact) HeaderName() string {
	if strings.TrimSpace(f.ClassName) != "" {
		return f.ClassName
	}
	return f.SeriesName
}

// GroupKey identifies the fund a fact belongs to: class id, else series id,
// else header name plus ticker.
func (f FundFact) GroupKey() string {
	if f.ClassID != "" {
		return f.ClassID
	}
	if f.SeriesID != "" {
		return f.SeriesID
	}
	return f.HeaderName() + "|" + strings.ToUpper(f.Ticker)
}

// FormUpper returns the trimmed, upper-cased form type.
func (f FundFact) FormUpper() string {
	return strings.ToUpper(strings.TrimSpace(f.Form))
}
