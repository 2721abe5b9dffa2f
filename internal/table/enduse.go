package table

import (
	"github.com/buildsight/buildsight/internal/enduse"
	"github.com/buildsight/buildsight/internal/field"
)

var endUseColumns = map[string]string{
	"kbtu":    "Energy (kBtu)",
	"cost":    "Cost",
	"percent": "% of Energy",
}

// endUse renders the category split with one usage column per period when
// more than one period exists. Fields select among kbtu, cost and percent.
func (g *Generator) endUse(paths []field.Path, opts Options) Table {
	bd := opts.EndUse
	t := Table{Title: opts.Title, Source: TargetEndUseBreakdown}
	if bd.Empty() {
		return t
	}
	columns := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := endUseColumns[p.Last()]; ok {
			columns = append(columns, p.Last())
		}
	}
	if len(columns) == 0 {
		columns = []string{"kbtu", "cost", "percent"}
	}

	t.Header = []string{"End Use"}
	periods := bd.Periods
	if len(periods) < 2 {
		periods = nil
	}
	for _, ps := range periods {
		t.Header = append(t.Header, ps.Label+" (kBtu)")
	}
	for _, c := range columns {
		t.Header = append(t.Header, endUseColumns[c])
	}

	for _, c := range enduse.Categories {
		share := bd.Share(c)
		line := []string{string(c)}
		for _, ps := range periods {
			line = append(line, field.FormatValue(periodKBtu(ps, c), field.Format{Integer: true, Total: true}))
		}
		for _, col := range columns {
			switch col {
			case "kbtu":
				line = append(line, field.FormatValue(share.KBtu, field.Format{Integer: true, Total: true}))
			case "cost":
				line = append(line, field.FormatValue(share.Cost, field.Format{Currency: true, Total: true}))
			case "percent":
				line = append(line, field.FormatValue(share.Percent, field.Format{Unit: field.UnitPercent, Decimals: 1, Total: true}))
			}
		}
		t.Rows = append(t.Rows, line)
	}
	t.Totals = Totals(t.Rows, len(t.Header))
	return t
}

func periodKBtu(ps enduse.PeriodShares, c enduse.Category) float64 {
	for _, s := range ps.Shares {
		if s.Category == c {
			return s.KBtu
		}
	}
	return 0
}
