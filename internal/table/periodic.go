package table

import (
	"context"
	"fmt"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

// periodic renders fields as rows and periods as columns, closing with an
// Average column when more than one period exists. Without utility records and
// without any non-empty building value the table is empty.
func (g *Generator) periodic(ctx context.Context, target Target, paths []field.Path, opts Options) (Table, error) {
	t := Table{Title: opts.Title, Source: target}
	window := opts.Utilities.Window
	if len(paths) == 0 || window.Start.IsZero() {
		return t, nil
	}
	spans, err := period.Frame(opts.Period, window)
	if err != nil {
		return t, fmt.Errorf("table: %s periods: %w", target, err)
	}

	values := period.NewTable()
	text := make(map[string]map[string]string)
	b := opts.Building
	res := opts.Utilities
	found := false
	for _, span := range spans {
		if err := values.Add(span); err != nil {
			return t, fmt.Errorf("table: %s periods: %w", target, err)
		}
		doc := utility.Summarize(b, res.Utilities, res.Monthly, span.Range()).Doc()
		var hdd, cdd float64
		weatherLoaded := false
		for _, p := range paths {
			key := p.String()
			var v any
			summarized := false
			switch {
			case p.Last() == "portfolioManagerScore":
				// stored annually; pro-rate by the months the bucket covers
				v = b.PortfolioManagerScore * span.Fraction()
			case p.First() == "rates" && len(p) == 2:
				v = utility.BucketRate(b, res.Monthly, utility.ParseFuel(p.Last()), span)
			case p.First() == "degree" && len(p) == 2:
				if !weatherLoaded && g.weather != nil {
					hdd, cdd = g.weather.DegreeDays(ctx, b, span)
					weatherLoaded = true
				}
				if p.Last() == "cdd" {
					v = cdd
				} else {
					v = hdd
				}
			default:
				resolved, ok := field.Resolve(doc, p)
				if !ok {
					resolved, _ = field.Resolve(b.Doc, p)
				}
				v, summarized = resolved, ok
			}
			if !field.IsEmpty(v) && !(summarized && res.Empty()) {
				found = true
			}
			if n, ok := field.ToFloat(v); ok {
				_ = values.Set(span.Label, key, n)
				continue
			}
			if s, ok := v.(string); ok && s != "" {
				if text[span.Label] == nil {
					text[span.Label] = make(map[string]string)
				}
				text[span.Label][key] = s
			}
		}
	}

	if res.Empty() && !found {
		return t, nil
	}

	cols := values.WithAverage()
	t.Header = make([]string, 0, len(cols)+1)
	t.Header = append(t.Header, "")
	for _, c := range cols {
		t.Header = append(t.Header, c.Label)
	}
	for _, p := range paths {
		key := p.String()
		format := field.FormatFor(key)
		line := make([]string, 0, len(cols)+1)
		line = append(line, label(p, opts))
		for _, c := range cols {
			if s, ok := text[c.Label][key]; ok {
				line = append(line, s)
				continue
			}
			line = append(line, field.FormatValue(c.Value(key), format))
		}
		t.Rows = append(t.Rows, line)
	}
	return t, nil
}
