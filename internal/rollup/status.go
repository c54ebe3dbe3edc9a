// Package rollup implements the third pipeline stage: reducing a
// registrant's fund facts to one lifecycle status per fund.
package rollup

import (
	"fmt"
	"strings"

	"github.com/sells-group/etp-tracker/internal/model"
)

// DefaultGraceDays is how long after filing an initial registration is
// presumed effective when no effective date was extracted.
const DefaultGraceDays = 75

// FormClass buckets a form type by what it says about a fund's lifecycle.
type FormClass int

// Form classes in ascending authority.
const (
	ClassOther FormClass = iota
	ClassInitial
	ClassExtension
	ClassSupplement
	ClassPostEffective
)

// Classify returns the lifecycle class of a form type.
func Classify(form string) FormClass {
	f := strings.ToUpper(strings.TrimSpace(form))
	switch {
	case strings.HasPrefix(f, "485B") && strings.Contains(f, "POS"):
		return ClassPostEffective
	case strings.HasPrefix(f, "497"):
		return ClassSupplement
	case strings.HasPrefix(f, "485B") && strings.Contains(f, "XT"):
		return ClassExtension
	case strings.HasPrefix(f, "485A"):
		return ClassInitial
	default:
		return ClassOther
	}
}

// Rules holds the tunables of the status state machine.
type Rules struct {
	GraceDays int
}

// DefaultRules uses the 75-day grace period.
var DefaultRules = Rules{GraceDays: DefaultGraceDays}

// Determine applies DefaultRules to one fact.
func Determine(f model.FundFact, today model.Date) (model.Status, string) {
	return DefaultRules.Determine(f, today)
}

// Determine derives the status of a fund from its most authoritative fact.
// It is a pure function of f and today.
func (r Rules) Determine(f model.FundFact, today model.Date) (model.Status, string) {
	form := f.FormUpper()
	switch Classify(form) {
	case ClassPostEffective:
		return model.StatusEffective, form + " filed (fund trading)"
	case ClassSupplement:
		return model.StatusEffective, form + " filed (fund is trading)"
	case ClassExtension:
		if f.Delaying {
			return model.StatusDelayed, form + " with delaying amendment"
		}
		if status, reason, ok := byDate(form, f.EffectiveDate, today); ok {
			return status, reason
		}
		return model.StatusPending, form + " filed (awaiting effectiveness)"
	case ClassInitial:
		if f.Delaying {
			return model.StatusDelayed, form + " with delaying amendment"
		}
		if status, reason, ok := byDate(form, f.EffectiveDate, today); ok {
			return status, reason
		}
		if f.FilingDate != nil {
			presumed := f.FilingDate.AddDate(0, 0, r.GraceDays)
			if !presumed.After(today.Time) {
				return model.StatusEffective, fmt.Sprintf("%s presumed effective (+%d days)", form, r.GraceDays)
			}
			return model.StatusPending, fmt.Sprintf("%s +%d day period not elapsed", form, r.GraceDays)
		}
		return model.StatusPending, form + " filed (awaiting effectiveness)"
	default:
		return model.StatusUnknown, "Unrecognized form type: " + form
	}
}

func byDate(form string, eff *model.Date, today model.Date) (model.Status, string, bool) {
	if eff == nil {
		return "", "", false
	}
	if !eff.After(today.Time) {
		return model.StatusEffective, fmt.Sprintf("%s effective as of %s", form, eff), true
	}
	return model.StatusPending, fmt.Sprintf("%s effective date %s is future", form, eff), true
}
