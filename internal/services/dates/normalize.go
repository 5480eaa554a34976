// Package dates normalizes the date and datetime strings that arrive from the
// bank feeds. The webhook, the spreadsheet export, and the AI-extracted slips
// all use different display formats; everything is reduced to a single
// canonical form before it touches storage or the matching engine.
package dates

import (
	"regexp"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Canonical is a parsed date that remembers whether the input carried a
// time-of-day component. A date-only value never grows a fabricated time
// except through the explicit AtMidnight conversion.
type Canonical struct {
	t       time.Time
	hasTime bool
}

// Time returns the underlying time value.
func (c *Canonical) Time() time.Time { return c.t }

// HasTime reports whether the input carried a time-of-day component.
func (c *Canonical) HasTime() bool { return c.hasTime }

// String renders "YYYY-MM-DD" for date-only values and
// "YYYY-MM-DD HH:MM:SS" for datetimes.
func (c *Canonical) String() string {
	if c.hasTime {
		return c.t.Format(dateTimeLayout)
	}
	return c.t.Format(dateLayout)
}

// SameDay reports whether two canonical values fall on the same calendar day.
func (c *Canonical) SameDay(other *Canonical) bool {
	if other == nil {
		return false
	}
	y1, m1, d1 := c.t.Date()
	y2, m2, d2 := other.t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// AtMidnight converts a date-only value into a datetime at 00:00:00. Used only
// when a transaction has no booking timestamp and its value date must stand in
// for it. Datetime values are returned unchanged.
func (c *Canonical) AtMidnight() *Canonical {
	return &Canonical{t: c.t, hasTime: true}
}

// pattern is one entry in the ordered parse list. Entries flagged shortYear
// use a two-digit year, which is always expanded to 20xx regardless of Go's
// default century pivot.
type pattern struct {
	layout    string
	shortYear bool
}

var dateTimePatterns = []pattern{
	{layout: "2006-01-02T15:04:05"},
	{layout: "2006-01-02T15:04:05.999999"},
	{layout: "2006-01-02 15:04:05"},
	{layout: "2-Jan-2006 15:04:05"},
	{layout: "2-Jan-06 15:04:05", shortYear: true},
	{layout: "2-1-2006 15:04:05"},
	{layout: "2/1/2006 15:04:05"},
	{layout: "2 Jan 2006 15:04:05"},
	{layout: "2-Jan-2006 15:04"},
	{layout: "2-Jan-06 15:04", shortYear: true},
}

var datePatterns = []pattern{
	{layout: "2006-01-02"},
	{layout: "2-Jan-2006"},
	{layout: "2-Jan-06", shortYear: true},
	{layout: "2-1-2006"},
	{layout: "2/1/2006"},
	{layout: "2 Jan 2006"},
	{layout: "2-1-06", shortYear: true},
	{layout: "2/1/06", shortYear: true},
}

var tokenSplit = regexp.MustCompile(`[,\s]+`)

// Normalize parses a raw date or datetime string against the known feed
// formats and returns its canonical form, or nil when nothing matches. It
// never panics on malformed input.
func Normalize(raw string) *Canonical {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "none", "null":
		return nil
	}

	// Some feeds emit sub-microsecond fractional seconds and a trailing zone
	// marker; strip the marker and clamp the fraction to what time.Parse
	// accepts before trying the pattern lists.
	s = strings.TrimSuffix(s, "Z")
	s = clampFraction(s)

	for _, p := range dateTimePatterns {
		if t, err := time.Parse(p.layout, s); err == nil {
			return &Canonical{t: expandYear(t, p.shortYear), hasTime: true}
		}
	}
	for _, p := range datePatterns {
		if t, err := time.Parse(p.layout, s); err == nil {
			return &Canonical{t: expandYear(t, p.shortYear), hasTime: false}
		}
	}

	return normalizeSplitTokens(s)
}

// normalizeSplitTokens handles the "02-Oct-25,180854" shape: a day-month-year
// date and a bare HHMMSS block separated by a comma or whitespace run.
func normalizeSplitTokens(s string) *Canonical {
	tokens := tokenSplit.Split(s, -1)
	if len(tokens) != 2 {
		return nil
	}
	day := Normalize(tokens[0])
	if day == nil || day.HasTime() {
		return nil
	}
	clock := strings.NewReplacer(":", "", "-", "").Replace(tokens[1])
	if len(clock) != 6 || !allDigits(clock) {
		return nil
	}
	t, err := time.Parse(dateTimeLayout, day.String()+" "+clock[0:2]+":"+clock[2:4]+":"+clock[4:6])
	if err != nil {
		return nil
	}
	return &Canonical{t: t, hasTime: true}
}

// clampFraction truncates a fractional-seconds component to at most 6 digits.
func clampFraction(s string) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	frac := s[dot+1:]
	if len(frac) <= 6 || !allDigits(frac) {
		return s
	}
	return s[:dot+1] + frac[:6]
}

// expandYear maps two-digit years onto the 2000s. Go's parser pivots 69-99
// into the 1900s; the feeds never predate this system.
func expandYear(t time.Time, shortYear bool) time.Time {
	if shortYear && t.Year() < 2000 {
		return t.AddDate(100, 0, 0)
	}
	return t
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
