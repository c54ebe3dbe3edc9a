package parse

import (
	"regexp"
	"strings"
)

// Document is one <DOCUMENT> body embedded in a submission.
type Document struct {
	Type     string
	Filename string
	Text     string
}

var (
	reDocument = regexp.MustCompile(`(?is)<DOCUMENT>(.*?)</DOCUMENT>`)
	reDocText  = regexp.MustCompile(`(?is)<TEXT>(.*?)</TEXT>`)
)

// Documents returns the embedded documents of a submission in order.
func Documents(txt string) []Document {
	var out []Document
	for _, m := range reDocument.FindAllStringSubmatch(txt, -1) {
		block := m[1]
		doc := Document{
			Type:     strings.ToUpper(grab(block, "TYPE")),
			Filename: grab(block, "FILENAME"),
			Text:     block,
		}
		if tm := reDocText.FindStringSubmatch(block); tm != nil {
			doc.Text = tm[1]
		}
		out = append(out, doc)
	}
	return out
}

// IsProspectus reports whether the document type is a prospectus body
// (485A*, 485B*, 497*).
func (d Document) IsProspectus() bool {
	for _, p := range []string{"485A", "485B", "497"} {
		if strings.HasPrefix(d.Type, p) {
			return true
		}
	}
	return false
}

// PlainText returns the document text with markup removed when it is HTML.
func (d Document) PlainText() string {
	if LooksLikeHTML(d.Text) || IsHTMLName(d.Filename) {
		return HTMLToText(d.Text)
	}
	return d.Text
}

// IsHTMLName reports whether a document name or URL has an HTML extension.
func IsHTMLName(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".htm") || strings.HasSuffix(n, ".html")
}

// IsPDFName reports whether a document name or URL has a PDF extension.
func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
