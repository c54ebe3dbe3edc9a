package parse

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/sells-group/etp-tracker/internal/model"
)

// XBRLFacts holds the inline XBRL concepts the tracker reads from a fund
// prospectus. Only the first occurrence of each concept is kept.
type XBRLFacts struct {
	ProspectusDate  string
	RegistrantName  string
	CIK             string
	DocumentType    string
	PeriodEndDate   string
	ExpenseRatio    *float64
	ManagementFee   *float64
	NetExpenseRatio *float64
	FeeWaiver       *float64
}

// EffectiveDate parses ProspectusDate, or returns nil.
func (x XBRLFacts) EffectiveDate() *model.Date {
	return ParseDate(x.ProspectusDate)
}

// Empty reports whether no concept was found.
func (x XBRLFacts) Empty() bool {
	return x == XBRLFacts{}
}

const (
	ixText    = "ix:nonnumeric"
	ixNumeric = "ix:nonfraction"
)

func (x *XBRLFacts) textField(concept string) *string {
	switch concept {
	case "oef:ProspectusDate":
		return &x.ProspectusDate
	case "dei:EntityRegistrantName":
		return &x.RegistrantName
	case "dei:EntityCentralIndexKey":
		return &x.CIK
	case "dei:DocumentType":
		return &x.DocumentType
	case "dei:DocumentPeriodEndDate":
		return &x.PeriodEndDate
	}
	return nil
}

func (x *XBRLFacts) numericField(concept string) **float64 {
	switch concept {
	case "oef:ExpensesOverAssets":
		return &x.ExpenseRatio
	case "oef:ManagementFeesOverAssets":
		return &x.ManagementFee
	case "oef:NetExpensesOverAssets":
		return &x.NetExpenseRatio
	case "oef:FeeWaiverOrReimbursementOverAssets":
		return &x.FeeWaiver
	}
	return nil
}

// HasInlineXBRL reports whether an HTML document carries ix: tags.
func HasInlineXBRL(doc string) bool {
	return strings.Contains(doc, "<ix:")
}

type ixCapture struct {
	tag     string
	concept string
	depth   int
	text    strings.Builder
}

// ParseInlineXBRL extracts fund concepts from ix:nonNumeric and
// ix:nonFraction elements of an HTML document.
func ParseInlineXBRL(doc string) XBRLFacts {
	var facts XBRLFacts
	if !HasInlineXBRL(doc) {
		return facts
	}

	z := html.NewTokenizer(strings.NewReader(doc))
	var cur *ixCapture
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return facts
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if cur != nil {
				if tag == cur.tag {
					cur.depth++
				}
				continue
			}
			if (tag != ixText && tag != ixNumeric) || !hasAttr {
				continue
			}
			if concept := conceptAttr(z); concept != "" {
				cur = &ixCapture{tag: tag, concept: concept, depth: 1}
			}
		case html.EndTagToken:
			if cur == nil {
				continue
			}
			name, _ := z.TagName()
			if string(name) != cur.tag {
				continue
			}
			cur.depth--
			if cur.depth == 0 {
				facts.set(cur)
				cur = nil
			}
		case html.TextToken:
			if cur != nil {
				cur.text.Write(z.Text())
				cur.text.WriteByte(' ')
			}
		}
	}
}

func conceptAttr(z *html.Tokenizer) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "name" {
			return string(val)
		}
		if !more {
			return ""
		}
	}
}

func (x *XBRLFacts) set(c *ixCapture) {
	value := normalizeSpace(c.text.String())
	if value == "" {
		return
	}
	if c.tag == ixText {
		if f := x.textField(c.concept); f != nil && *f == "" {
			*f = value
		}
		return
	}
	if f := x.numericField(c.concept); f != nil && *f == nil {
		if n, ok := parsePercent(value); ok {
			*f = &n
		}
	}
}

func parsePercent(s string) (float64, bool) {
	s = strings.NewReplacer("%", "", ",", "", " ", "").Replace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
