package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the serialized form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DatePtr returns a pointer to NewDate(t).
func DatePtr(t time.Time) *Date {
	d := NewDate(t)
	return &d
}

// ParseDate parses a YYYY-MM-DD string. Empty input yields nil.
func ParseDate(s string) (*Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, eris.Wrapf(err, "model: parse date %q", s)
	}
	return DatePtr(t), nil
}

// MustDate parses a YYYY-MM-DD string and panics on error. Intended for tests and constants.
func MustDate(s string) *Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return eris.Wrapf(err, "model: unmarshal date %q", s)
	}
	*d = NewDate(t)
	return nil
}

// DateString formats an optional date, returning "" for nil.
func DateString(d *Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// Before reports whether a sorts strictly before b. Nil dates sort last.
func Before(a, b *Date) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Time.Before(b.Time)
	}
}
