package period

import (
	"errors"
	"fmt"
)

// AverageLabel names the synthetic column appended to multi-period tables.
const AverageLabel = "Average"

var (
	// ErrDuplicateLabel indicates a second column with an existing label.
	ErrDuplicateLabel = errors.New("period: duplicate label")
	// ErrReservedLabel indicates an attempt to add the synthetic average column by hand.
	ErrReservedLabel = errors.New("period: label is reserved")
	// ErrUnknownLabel indicates a lookup of a column that was never added.
	ErrUnknownLabel = errors.New("period: unknown label")
)

// Column carries the per-field values of one period.
type Column struct {
	Span
	Values map[string]float64
}

// Value returns the field value, zero when absent.
func (c Column) Value(field string) float64 {
	return c.Values[field]
}

// Table keeps period columns in insertion order with unique labels.
type Table struct {
	cols  []Column
	index map[string]int
}

// NewTable constructs an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Add appends a column for span.
func (t *Table) Add(span Span) error {
	if span.Label == AverageLabel {
		return ErrReservedLabel
	}
	if _, ok := t.index[span.Label]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, span.Label)
	}
	t.index[span.Label] = len(t.cols)
	t.cols = append(t.cols, Column{Span: span, Values: make(map[string]float64)})
	return nil
}

// Set stores a field value on an existing column.
func (t *Table) Set(label, field string, v float64) error {
	i, ok := t.index[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	t.cols[i].Values[field] = v
	return nil
}

// Get returns the column for label.
func (t *Table) Get(label string) (Column, bool) {
	i, ok := t.index[label]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// Len reports the number of real periods.
func (t *Table) Len() int {
	return len(t.cols)
}

// Columns returns the real periods in insertion order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// WithAverage returns the columns followed by an Average column when more than one period exists.
// Each average value is the arithmetic mean over every period, counting absent values as zero.
func (t *Table) WithAverage() []Column {
	out := t.Columns()
	if len(out) < 2 {
		return out
	}
	sums := make(map[string]float64)
	months := 0
	for _, c := range out {
		months += c.Months
		for field, v := range c.Values {
			sums[field] += v
		}
	}
	n := float64(len(out))
	avg := Column{
		Span:   Span{Label: AverageLabel, Months: months / len(out)},
		Values: make(map[string]float64, len(sums)),
	}
	for field, sum := range sums {
		avg.Values[field] = sum / n
	}
	return append(out, avg)
}
