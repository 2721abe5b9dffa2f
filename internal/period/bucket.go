package period

import (
	"fmt"
	"time"
)

// Dated is implemented by records that can be placed on the calendar.
type Dated interface {
	RepresentativeDate() time.Time
}

// Span is a named period clipped to the requested window.
type Span struct {
	Label  string
	Start  time.Time
	End    time.Time
	Months int
}

// Range returns the clipped window covered by the span.
func (s Span) Range() Range {
	return Range{Start: s.Start, End: s.End}
}

// Fraction is the share of a full year covered by the span.
func (s Span) Fraction() float64 {
	return float64(s.Months) / 12
}

// Bucket is one span with the records that fall inside it.
type Bucket[T Dated] struct {
	Span
	Records []T
}

// Split assigns records to chronologically ordered buckets covering window.
// Records outside window are dropped and no record lands in two buckets.
func Split[T Dated](records []T, cfg Config, window Range) ([]Bucket[T], error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	if window.End.Before(window.Start) {
		return nil, ErrInvertedRange
	}
	spans := frame(cfg, window)
	buckets := make([]Bucket[T], len(spans))
	for i, sp := range spans {
		buckets[i] = Bucket[T]{Span: sp}
	}
	for _, rec := range records {
		at := rec.RepresentativeDate()
		if !window.Contains(at) {
			continue
		}
		for i := range buckets {
			if buckets[i].Range().Contains(at) {
				buckets[i].Records = append(buckets[i].Records, rec)
				break
			}
		}
	}
	if !cfg.SkipEmpty {
		return buckets, nil
	}
	kept := buckets[:0]
	for _, b := range buckets {
		if len(b.Records) > 0 {
			kept = append(kept, b)
		}
	}
	return kept, nil
}

// Frame returns the spans covering window without assigning records.
func Frame(cfg Config, window Range) ([]Span, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	if window.End.Before(window.Start) {
		return nil, ErrInvertedRange
	}
	return frame(cfg, window), nil
}

func frame(cfg Config, window Range) []Span {
	switch cfg.Mode {
	case ModeFiscalYear:
		return fiscalFrame(cfg.StartMonth, window)
	case ModeCustom:
		return []Span{{
			Label:  CustomLabel(window),
			Start:  window.Start,
			End:    window.End,
			Months: window.Months(),
		}}
	default:
		return calendarFrame(window)
	}
}

func calendarFrame(window Range) []Span {
	var out []Span
	for y := window.Start.Year(); y <= window.End.Year(); y++ {
		full := Range{
			Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		}
		clipped, ok := full.Intersect(window)
		if !ok {
			continue
		}
		out = append(out, Span{
			Label:  fmt.Sprintf("%d", y),
			Start:  clipped.Start,
			End:    clipped.End,
			Months: clipped.Months(),
		})
	}
	return out
}

func fiscalFrame(startMonth time.Month, window Range) []Span {
	var out []Span
	first := FiscalYear(window.Start, startMonth)
	last := FiscalYear(window.End, startMonth)
	for fy := first; fy <= last; fy++ {
		full := FiscalRange(fy, startMonth)
		clipped, ok := full.Intersect(window)
		if !ok {
			continue
		}
		out = append(out, Span{
			Label:  FiscalLabel(fy),
			Start:  clipped.Start,
			End:    clipped.End,
			Months: clipped.Months(),
		})
	}
	return out
}

// FiscalYear returns the fiscal year t belongs to, named after the calendar year it ends in.
func FiscalYear(t time.Time, startMonth time.Month) int {
	if startMonth <= time.January || t.Month() < startMonth {
		return t.Year()
	}
	return t.Year() + 1
}

// FiscalRange returns the full twelve-month window of fiscal year fy.
func FiscalRange(fy int, startMonth time.Month) Range {
	startYear := fy
	if startMonth > time.January {
		startYear = fy - 1
	}
	start := time.Date(startYear, startMonth, 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: start.AddDate(1, 0, -1)}
}

// FiscalLabel renders "FY" plus the two-digit ending year.
func FiscalLabel(fy int) string {
	return fmt.Sprintf("FY%02d", fy%100)
}

// CustomLabel renders the single bucket label of a custom range.
func CustomLabel(window Range) string {
	return window.Start.Format("Jan 2006") + " - " + window.End.Format("Jan 2006")
}
