package table

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/buildsight/buildsight/internal/field"
)

const (
	locationDetails = "details"
	locationSummary = "summary"
)

// location renders either the per-space details table or the use-type/floor summaries,
// selected by the "details." or "summary." field prefix.
func (g *Generator) location(rows []field.Doc, paths []field.Path, opts Options) []Table {
	if len(rows) == 0 {
		return nil
	}
	var details, summaries []field.Path
	for _, p := range paths {
		switch {
		case p.First() == locationSummary && len(p) > 1:
			summaries = append(summaries, p[1:])
		case p.First() == locationDetails && len(p) > 1:
			details = append(details, p[1:])
		default:
			details = append(details, p)
		}
	}
	var out []Table
	if len(details) > 0 {
		out = append(out, locationDetailsTable(rows, details, opts))
	}
	seen := make(map[string]bool)
	for _, p := range summaries {
		by := "usetype"
		if strings.EqualFold(p.Last(), "floor") {
			by = "floor"
		}
		if seen[by] {
			continue
		}
		seen[by] = true
		out = append(out, locationSummaryTable(rows, by, opts))
	}
	return out
}

func useType(doc field.Doc) string {
	for _, key := range []string{"usetype", "useType"} {
		if s := field.LookupString(doc, key); s != "" {
			return s
		}
	}
	return ""
}

func area(doc field.Doc) float64 {
	for _, key := range []string{"area", "squareFeet"} {
		if n, ok := lookupFloat(doc, key); ok {
			return n
		}
	}
	return 0
}

func locationDetailsTable(rows []field.Doc, paths []field.Path, opts Options) Table {
	t := Table{Title: opts.Title, Source: TargetLocation}
	t.Header = append([]string{"Use Type"}, headerOf(paths, opts)...)
	for _, doc := range rows {
		line := []string{displayName(useType(doc))}
		for _, p := range paths {
			line = append(line, locationCell(doc, p))
		}
		t.Rows = append(t.Rows, line)
	}
	t.Totals = Totals(t.Rows, len(t.Header))
	return t
}

// locationCell renders square-foot columns as plain numbers with the ft² suffix.
func locationCell(doc field.Doc, p field.Path) string {
	format := field.FormatFor(p.String())
	if format.Unit != field.UnitSquareFeet {
		return cell(doc, p)
	}
	v, ok := field.Resolve(doc, p)
	if !ok {
		return field.Placeholder
	}
	n, ok := field.ToFloat(v)
	if !ok {
		return field.Placeholder
	}
	return strconv.FormatFloat(n, 'f', -1, 64) + " " + field.UnitSquareFeet
}

func locationSummaryTable(rows []field.Doc, by string, opts Options) Table {
	heading := "Use Type"
	if by == "floor" {
		heading = "Floor"
	}
	t := Table{
		Title:  opts.Title,
		Source: TargetLocation,
		Header: []string{heading, "Area", "% of Building Area"},
	}
	groups := lo.GroupBy(rows, func(doc field.Doc) string {
		if by == "floor" {
			return field.FormatValue(mustLookup(doc, "floor"), field.Format{})
		}
		return displayName(useType(doc))
	})
	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool { return naturalLess(keys[i], keys[j]) })

	total := lo.SumBy(rows, area)
	for _, key := range keys {
		sum := lo.SumBy(groups[key], area)
		pct := 0.0
		if total > 0 {
			pct = sum / total * 100
		}
		t.Rows = append(t.Rows, []string{
			key,
			field.FormatMeasure(sum, field.Format{Unit: field.UnitSquareFeet}),
			field.FormatMeasure(pct, field.Format{Unit: field.UnitPercent}),
		})
	}
	t.Totals = Totals(t.Rows, len(t.Header))
	return t
}

func mustLookup(doc field.Doc, key string) any {
	v, _ := field.Lookup(doc, key)
	return v
}

func displayName(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return field.Placeholder
	}
	return field.LabelFor(raw, nil)
}

// naturalLess orders numeric labels numerically and everything else lexically.
func naturalLess(a, b string) bool {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
