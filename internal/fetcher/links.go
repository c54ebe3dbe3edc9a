package fetcher

import (
	"fmt"
	"strings"

	"github.com/sells-group/etp-tracker/internal/model"
)

// ArchivesBase is the root of the EDGAR document archive.
const ArchivesBase = "https://www.sec.gov/Archives/edgar/data"

func folderLink(cik, accession string) string {
	if n, err := model.NormalizeCIK(cik); err == nil {
		cik = n
	}
	return fmt.Sprintf("%s/%s/%s", ArchivesBase, cik, strings.ReplaceAll(accession, "-", ""))
}

// PrimaryLink returns the archive URL of a filing's primary document, or ""
// when the document name is unknown.
func PrimaryLink(cik, accession, doc string) string {
	if doc == "" || accession == "" {
		return ""
	}
	return folderLink(cik, accession) + "/" + doc
}

// SubmissionLink returns the archive URL of a filing's full submission text.
func SubmissionLink(cik, accession string) string {
	if accession == "" {
		return ""
	}
	return folderLink(cik, accession) + "/" + accession + ".txt"
}
