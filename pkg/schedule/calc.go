// Package schedule computes rolled-forward due dates for recurring tasks.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/mklimuk/vault-recur/pkg/recurrence"
)

var (
	// ErrInvalidDate is returned when a due date cannot be parsed or the
	// computed date cannot be represented.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRule is returned for rules that cannot advance a date.
	ErrInvalidRule = errors.New("invalid recurrence rule")
)

// DefaultFormat is used when no date format is configured.
const DefaultFormat = "YYYY-MM-DD"

// fallbackFormats are tried, in order, after the configured format.
var fallbackFormats = []string{
	"YYYY-MM-DD",
	"YYYY/MM/DD",
	"DD-MM-YYYY",
	"DD/MM/YYYY",
	"MM-DD-YYYY",
	"MM/DD/YYYY",
	"YYYY-MM-DD HH:mm",
	"YYYY-MM-DDTHH:mm:ss",
}

// Calculator parses due dates and advances them by recurrence rules.
type Calculator struct {
	Now      func() time.Time
	Location *time.Location
}

// NewCalculator returns a Calculator using the wall clock and local time zone.
func NewCalculator() *Calculator {
	return &Calculator{Now: time.Now, Location: time.Local}
}

func (c *Calculator) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c *Calculator) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.location())
	}
	return c.Now().In(c.location())
}

// Parse reads value using the configured format first and a fixed list of
// common layouts after it. Every candidate is parsed strictly; a best-effort
// parse is attempted only when none of them matches.
func (c *Calculator) Parse(value, format string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	if format == "" {
		format = DefaultFormat
	}

	loc := c.location()
	seen := make(map[string]bool, len(fallbackFormats)+1)
	for _, f := range append([]string{format}, fallbackFormats...) {
		if seen[f] {
			continue
		}
		seen[f] = true
		if t, err := time.ParseInLocation(Layout(f), value, loc); err == nil {
			return t, nil
		}
	}

	t, err := dateparse.ParseIn(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// NextDueDate advances currentDue by the rule and formats the result. An empty
// currentDue starts from now. Month and year steps clamp to the last day of
// the target month, so 2024-01-31 plus one month is 2024-02-29.
func (c *Calculator) NextDueDate(currentDue string, rule recurrence.Rule, format string) (string, error) {
	if format == "" {
		format = DefaultFormat
	}

	var base time.Time
	if strings.TrimSpace(currentDue) == "" {
		base = c.now()
	} else {
		parsed, err := c.Parse(currentDue, format)
		if err != nil {
			return "", err
		}
		base = parsed
	}

	next, err := Add(base, rule.Amount, rule.Unit)
	if err != nil {
		return "", err
	}
	return Format(next, format), nil
}

// Add advances t by amount units using calendar arithmetic.
func Add(t time.Time, amount int, unit recurrence.Unit) (time.Time, error) {
	if amount <= 0 {
		return time.Time{}, fmt.Errorf("%w: amount must be > 0, got %d", ErrInvalidRule, amount)
	}

	var next time.Time
	switch unit {
	case recurrence.Day:
		next = t.AddDate(0, 0, amount)
	case recurrence.Week:
		next = t.AddDate(0, 0, 7*amount)
	case recurrence.Month:
		next = addMonths(t, amount)
	case recurrence.Year:
		next = addMonths(t, 12*amount)
	default:
		return time.Time{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidRule, unit)
	}

	if y := next.Year(); y < 1 || y > 9999 {
		return time.Time{}, fmt.Errorf("%w: year %d out of range", ErrInvalidDate, y)
	}
	return next, nil
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
