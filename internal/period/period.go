// Package period splits a reporting window into calendar-year, fiscal-year or
// custom buckets and keeps per-period aggregates in label order.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvertedRange indicates a window whose end precedes its start.
	ErrInvertedRange = errors.New("period: end precedes start")
	// ErrFiscalMonths indicates a fiscal start/end month pair that does not span twelve months.
	ErrFiscalMonths = errors.New("period: fiscal months must span twelve months")
)

// Mode selects how a window is split.
type Mode string

const (
	ModeCalendarYear Mode = "calendarYear"
	ModeFiscalYear   Mode = "fiscalYear"
	ModeCustom       Mode = "custom"
)

// ParseMode maps the template "organize" values onto a Mode. Unknown values fall back to calendar years.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fiscal", "fiscalyear", "fy":
		return ModeFiscalYear
	case "custom", "customrange", "range":
		return ModeCustom
	default:
		return ModeCalendarYear
	}
}

// Config parameterises bucketing.
type Config struct {
	Mode       Mode
	StartMonth time.Month
	EndMonth   time.Month
	// SkipEmpty drops buckets that received no records.
	SkipEmpty bool
}

// Normalize fills the fiscal month defaults and validates the pair.
func (c Config) Normalize() (Config, error) {
	if c.Mode == "" {
		c.Mode = ModeCalendarYear
	}
	if c.Mode != ModeFiscalYear {
		return c, nil
	}
	if c.StartMonth < time.January || c.StartMonth > time.December {
		c.StartMonth = time.July
	}
	expected := c.StartMonth - 1
	if expected == 0 {
		expected = time.December
	}
	if c.EndMonth == 0 {
		c.EndMonth = expected
	}
	if c.EndMonth != expected {
		return c, fmt.Errorf("%w: %s..%s", ErrFiscalMonths, c.StartMonth, c.EndMonth)
	}
	return c, nil
}

// Range is an inclusive day window.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange truncates both bounds to whole days and validates their order.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: day(start), End: day(end)}
	if r.End.Before(r.Start) {
		return Range{}, ErrInvertedRange
	}
	return r, nil
}

// Contains reports whether t falls on a day inside the window.
func (r Range) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Intersect clips r to o.
func (r Range) Intersect(o Range) (Range, bool) {
	start := r.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := r.End
	if o.End.Before(end) {
		end = o.End
	}
	if end.Before(start) {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// Months counts the calendar months the window touches.
func (r Range) Months() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return (r.End.Year()-r.Start.Year())*12 + int(r.End.Month()-r.Start.Month()) + 1
}

// Days counts the days in the window, inclusive.
func (r Range) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// YearMonths lists every calendar month the window touches in order.
func (r Range) YearMonths() []YearMonth {
	n := r.Months()
	out := make([]YearMonth, 0, n)
	cursor := time.Date(r.Start.Year(), r.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, YearMonth{Year: cursor.Year(), Month: cursor.Month()})
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out
}

// Years lists the distinct calendar years the window touches.
func (r Range) Years() []int {
	years := make([]int, 0, r.End.Year()-r.Start.Year()+1)
	for y := r.Start.Year(); y <= r.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// Key renders the window as a stable cache key component.
func (r Range) Key() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Midpoint returns the instant halfway between start and end, the representative date of a meter read.
func Midpoint(start, end time.Time) time.Time {
	if end.Before(start) {
		start, end = end, start
	}
	return start.Add(end.Sub(start) / 2)
}

func monthOf(m int) time.Month {
	return time.Month(m)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
