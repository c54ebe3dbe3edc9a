// Package model defines the records that flow between pipeline stages.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Act identifies the statute a registrant files under.
type Act string

const (
	Act33 Act = "33" // Securities Act of 1933 (S-1/10-K filers)
	Act40 Act = "40" // Investment Company Act of 1940 (N-1A filers)
)

// Registrant is a monitored filer (a trust).
type Registrant struct {
	CIK    string `json:"cik" yaml:"cik"`
	Name   string `json:"name" yaml:"name"`
	Act    Act    `json:"act,omitempty" yaml:"act,omitempty"`
	Active bool   `json:"active" yaml:"active"`
}

// NormalizeCIK strips leading zeros and whitespace from a CIK.
// Returns an error if the value is not numeric.
func NormalizeCIK(cik string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(cik), 10, 64)
	if err != nil || n <= 0 {
		return "", eris.Errorf("model: invalid CIK %q", cik)
	}
	return strconv.FormatInt(n, 10), nil
}

// PadCIK returns the 10-digit zero-padded form used by EDGAR URLs.
func PadCIK(cik string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(cik), 10, 64)
	if err != nil {
		return cik
	}
	return fmt.Sprintf("%010d", n)
}

// Filing is one disclosure document discovered in a registrant's filing index.
type Filing struct {
	FilingDate      *Date  `csv:"Filing Date" json:"filing_date,omitempty"`
	Form            string `csv:"Form" json:"form"`
	Accession       string `csv:"Accession Number" json:"accession"`
	PrimaryDocument string `csv:"Primary Document" json:"primary_document"`
	PrimaryLink     string `csv:"Primary Link" json:"primary_link"`
	SubmissionLink  string `csv:"Full Submission TXT" json:"submission_link"`
	CIK             string `csv:"CIK" json:"cik"`
	Registrant      string `csv:"Registrant" json:"registrant"`
	InlineXBRL      bool   `csv:"Inline XBRL" json:"inline_xbrl"`
}

// FormUpper returns the trimmed, upper-cased form type.
func (f Filing) FormUpper() string {
	return strings.ToUpper(strings.TrimSpace(f.Form))
}
