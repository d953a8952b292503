// Package dateutil resolves the run date and expands date tokens in URL
// templates and filenames. The strict YYYY-MM-DD form always works; free
// form text ("june 21, 2025") only works when the natural-language parser
// is wired in.
package dateutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// FormatError reports an unparseable requested date. It is fatal to the
// whole run since the date applies to every source.
type FormatError struct {
	Input string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot parse date %q: %v", e.Input, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ResolvedDate is a calendar date in every shape a URL template or
// filename scheme needs.
type ResolvedDate struct {
	t time.Time
}

func At(t time.Time) ResolvedDate {
	y, m, d := t.Date()
	return ResolvedDate{t: time.Date(y, m, d, 0, 0, 0, 0, time.Local)}
}

func (d ResolvedDate) Time() time.Time { return d.t }

// ISO is the YYYY-MM-DD form used for archive filenames and pointers.
func (d ResolvedDate) ISO() string { return d.t.Format("2006-01-02") }

func (d ResolvedDate) Year() string  { return d.t.Format("2006") }
func (d ResolvedDate) Month() string { return d.t.Format("01") }
func (d ResolvedDate) Day() string   { return d.t.Format("02") }

// MonthName is the short lowercase month name some search URLs embed.
func (d ResolvedDate) MonthName() string { return strings.ToLower(d.t.Format("Jan")) }

// MonthLong is the full lowercase month name.
func (d ResolvedDate) MonthLong() string { return strings.ToLower(d.t.Format("January")) }

// DayN is the day of month without zero padding.
func (d ResolvedDate) DayN() string { return d.t.Format("2") }

// Human is the long form shown on rendered pages.
func (d ResolvedDate) Human() string { return d.t.Format("Monday, January 02, 2006") }

func (d ResolvedDate) AddDays(n int) ResolvedDate {
	return ResolvedDate{t: d.t.AddDate(0, 0, n)}
}

func (d ResolvedDate) Before(o ResolvedDate) bool { return d.t.Before(o.t) }

// Resolver turns requested date text into a ResolvedDate. Now is
// swappable for tests. Natural, when non-nil, handles anything the strict
// form rejects.
type Resolver struct {
	Now     func() time.Time
	Natural func(string) (time.Time, error)
}

func NewResolver() *Resolver {
	return &Resolver{Now: time.Now}
}

// WithNaturalLanguage wires in the dateparse free-form parser.
func (r *Resolver) WithNaturalLanguage() *Resolver {
	r.Natural = func(s string) (time.Time, error) {
		return dateparse.ParseAny(s)
	}
	return r
}

// Resolve parses text, or returns the current date when text is empty.
func (r *Resolver) Resolve(text string) (ResolvedDate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return At(r.Now()), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", text, time.Local); err == nil {
		return At(t), nil
	}
	if r.Natural == nil {
		return ResolvedDate{}, &FormatError{Input: text, Err: fmt.Errorf("expected YYYY-MM-DD")}
	}
	t, err := r.Natural(text)
	if err != nil {
		return ResolvedDate{}, &FormatError{Input: text, Err: err}
	}
	return At(t), nil
}

// Expand substitutes the date tokens a search-page template may embed.
func Expand(template string, d ResolvedDate) string {
	if !HasTokens(template) {
		return template
	}
	// {month} must precede {mon}: the replacer matches old strings in
	// argument order and {mon} is a prefix of {month}.
	return strings.NewReplacer(
		"{iso}", d.ISO(),
		"{yyyy}", d.Year(),
		"{mm}", d.Month(),
		"{dd}", d.Day(),
		"{month}", d.MonthLong(),
		"{mon}", d.MonthName(),
		"{day}", d.DayN(),
	).Replace(template)
}

// HasTokens reports whether template embeds any date token.
func HasTokens(template string) bool {
	for _, tok := range []string{"{iso}", "{yyyy}", "{mm}", "{dd}", "{mon}", "{month}", "{day}"} {
		if strings.Contains(template, tok) {
			return true
		}
	}
	return false
}
