package table

import (
	"fmt"
	"strings"

	"github.com/buildsight/buildsight/internal/field"
)

var weekdays = []struct {
	key   string
	label string
}{
	{"sunday", "Sun"}, {"monday", "Mon"}, {"tuesday", "Tue"}, {"wednesday", "Wed"},
	{"thursday", "Thu"}, {"friday", "Fri"}, {"saturday", "Sat"},
}

const hoursPerDay = 24

// operation renders one weekly grid per matched schedule. Fields name the
// schedule types or names to include; no fields includes every schedule.
func (g *Generator) operation(rows []field.Doc, paths []field.Path, opts Options) []Table {
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[strings.ToLower(p.Last())] = true
	}
	var out []Table
	for _, doc := range rows {
		name := field.LookupString(doc, "name")
		kind := field.LookupString(doc, "type")
		if len(wanted) > 0 && !wanted[strings.ToLower(kind)] && !wanted[strings.ToLower(name)] {
			continue
		}
		title := name
		if title == "" {
			title = field.LabelFor(kind, opts.CustomLabels)
		}
		out = append(out, scheduleGrid(title, doc))
	}
	return out
}

func scheduleGrid(title string, doc field.Doc) Table {
	t := Table{Title: title, Source: TargetOperation, Header: []string{"Hour"}}
	days := make([][]string, len(weekdays))
	for i, d := range weekdays {
		t.Header = append(t.Header, d.label)
		raw, _ := field.Lookup(doc, "schedule."+d.key)
		days[i] = carryForward(raw)
	}
	for h := 0; h < hoursPerDay; h++ {
		line := []string{fmt.Sprintf("%02d:00", h)}
		for i := range weekdays {
			line = append(line, days[i][h])
		}
		t.Rows = append(t.Rows, line)
	}
	return t
}

// carryForward expands a day's hourly values, repeating the last known value
// across empty hours. Non-zero values are percentages.
func carryForward(raw any) []string {
	values, _ := raw.([]any)
	out := make([]string, hoursPerDay)
	prev := field.Placeholder
	for h := 0; h < hoursPerDay; h++ {
		if h < len(values) {
			if n, ok := field.ToFloat(values[h]); ok {
				prev = percent(n)
			}
		}
		out[h] = prev
	}
	return out
}

func percent(n float64) string {
	if n == 0 {
		return "0"
	}
	return field.FormatNumber(n, 2) + field.UnitPercent
}
