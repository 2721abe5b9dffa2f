package table

import (
	"math"
	"strconv"
	"strings"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/markup"
)

// TotalLabel heads the totals row.
const TotalLabel = "Total"

// Table is a rendered grid of display strings.
type Table struct {
	Title  string
	Source Target
	Header []string
	Rows   [][]string
	Totals []string
}

// Empty reports whether the table has no body rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Markup renders the table fragment.
func (t Table) Markup() (string, error) {
	if t.Empty() {
		return "", nil
	}
	return markup.Render("table", t)
}

// Fragment is the output of one block: the markup plus the tables it contains
// for spreadsheet output.
type Fragment struct {
	Markup string
	Tables []Table
}

// Empty reports whether the fragment renders nothing.
func (f Fragment) Empty() bool { return strings.TrimSpace(f.Markup) == "" }

func fragmentOf(tables ...Table) (Fragment, error) {
	var b strings.Builder
	kept := make([]Table, 0, len(tables))
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		out, err := t.Markup()
		if err != nil {
			return Fragment{}, err
		}
		b.WriteString(out)
		kept = append(kept, t)
	}
	return Fragment{Markup: b.String(), Tables: kept}, nil
}

// knownUnits are suffixes stripped before totalling, longest first.
var knownUnits = []string{
	field.UnitGHGPerSqFt, field.UnitGHG, field.UnitEUI, field.UnitSquareFeet,
	"therms", "gallons", "kWh", "kGal", "kBtu", "Mlb", field.UnitPercent,
}

type parsedCell struct {
	value    float64
	unit     string
	currency bool
	grouped  bool
	decimals int
}

func parseCell(s string) (parsedCell, bool) {
	s = strings.TrimSpace(s)
	var c parsedCell
	for _, u := range knownUnits {
		if strings.HasSuffix(s, u) {
			c.unit = u
			s = strings.TrimSpace(strings.TrimSuffix(s, u))
			break
		}
	}
	if strings.Contains(s, "$") {
		c.currency = true
	}
	c.grouped = strings.Contains(s, ",")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		c.decimals = len(s) - i - 1
	}
	n, ok := field.ParseNumber(s)
	if !ok {
		return parsedCell{}, false
	}
	c.value = n
	return c, true
}

// Totals computes a totals row for rows. The first cell is TotalLabel; a column is
// summed only when every cell parses as a number with the same unit, else it is "-".
func Totals(rows [][]string, width int) []string {
	if len(rows) == 0 || width == 0 {
		return nil
	}
	out := make([]string, width)
	out[0] = TotalLabel
	for col := 1; col < width; col++ {
		out[col] = totalColumn(rows, col)
	}
	return out
}

func totalColumn(rows [][]string, col int) string {
	var (
		sum      float64
		unit     string
		currency bool
		grouped  bool
		decimals int
		seen     bool
	)
	for _, row := range rows {
		if col >= len(row) {
			return field.Placeholder
		}
		c, ok := parseCell(row[col])
		if !ok {
			return field.Placeholder
		}
		// bare zeros carry no unit and do not conflict with the column unit
		if c.unit != "" || c.value != 0 {
			if seen && c.unit != unit {
				return field.Placeholder
			}
			unit, seen = c.unit, true
		}
		currency = currency || c.currency
		grouped = grouped || c.grouped
		if c.decimals > decimals {
			decimals = c.decimals
		}
		sum += c.value
	}
	if currency {
		return field.FormatCurrency(sum, decimals)
	}
	var s string
	if grouped {
		s = field.FormatNumber(sum, decimals)
	} else {
		s = strconv.FormatFloat(roundTo(sum, decimals), 'f', -1, 64)
	}
	switch unit {
	case "":
		return s
	case field.UnitPercent:
		return s + unit
	default:
		return s + " " + unit
	}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
