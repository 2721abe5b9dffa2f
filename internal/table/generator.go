package table

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/enduse"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

// DegreeDayLookup sums heating and cooling degree days for a span.
type DegreeDayLookup interface {
	DegreeDays(ctx context.Context, b building.Building, span period.Span) (hdd, cdd float64)
}

// ImageTimestamps resolves when an equipment photo was taken.
type ImageTimestamps interface {
	Timestamp(ctx context.Context, imageURL string) (time.Time, error)
}

// EquipmentFilter narrows building equipment. Empty fields match everything.
type EquipmentFilter struct {
	Category       string `json:"category"`
	Application    string `json:"application"`
	Technology     string `json:"technology"`
	ShowImages     bool   `json:"images"`
	ShowTimestamps bool   `json:"imageTimestamps"`
}

// Options carries everything a variant may need beyond rows and fields.
type Options struct {
	Title        string
	Building     building.Building
	Utilities    utility.Result
	Period       period.Config
	CustomLabels map[string]string
	Display      field.DisplayMode
	Equipment    EquipmentFilter
	ShowImages   bool
	ShowTotals   bool
	EndUse       enduse.Breakdown
}

// Generator renders tables for every tabular data-source target.
type Generator struct {
	weather DegreeDayLookup
	images  ImageTimestamps
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator wires optional collaborators. weather and images may be nil.
func NewGenerator(weather DegreeDayLookup, images ImageTimestamps, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{weather: weather, images: images, logger: logger, now: time.Now}
}

// Generate renders the rows bound to target. Targets without data render an empty fragment.
func (g *Generator) Generate(ctx context.Context, target Target, rows []field.Doc, fields []string, opts Options) (Fragment, error) {
	paths, err := parseFields(target, fields)
	if err != nil {
		return Fragment{}, err
	}
	switch target {
	case TargetBenchmark:
		return fragmentOf(g.benchmark(rows, paths, opts))
	case TargetUtility, TargetOverview:
		t, err := g.periodic(ctx, target, paths, opts)
		if err != nil {
			return Fragment{}, err
		}
		return fragmentOf(t)
	case TargetOperation:
		return fragmentOf(g.operation(rows, paths, opts)...)
	case TargetConstruction:
		return g.construction(rows, paths, opts)
	case TargetEquipment:
		return g.equipment(ctx, rows, paths, opts)
	case TargetContact:
		return fragmentOf(g.rowsTable(TargetContact, rows, paths, opts))
	case TargetLocation:
		return fragmentOf(g.location(rows, paths, opts)...)
	case TargetEndUseBreakdown:
		return fragmentOf(g.endUse(paths, opts))
	case TargetBuilding:
		return fragmentOf(g.rowsTable(TargetBuilding, rows, paths, opts))
	default:
		return Fragment{}, fmt.Errorf("%w: %s is not tabular", ErrUnknownTarget, target)
	}
}

// parseFields validates field references and strips the target namespace.
func parseFields(target Target, fields []string) ([]field.Path, error) {
	out := make([]field.Path, 0, len(fields))
	for _, raw := range fields {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		p, err := field.ParsePath(raw)
		if err != nil {
			return nil, fmt.Errorf("table: field %q: %w", raw, err)
		}
		out = append(out, p.TrimTarget(string(target)))
	}
	return out, nil
}

func label(p field.Path, opts Options) string {
	return field.LabelFor(p.String(), opts.CustomLabels)
}

func headerOf(paths []field.Path, opts Options) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = label(p, opts)
	}
	return out
}

func cell(doc any, p field.Path) string {
	v, ok := field.Resolve(doc, p)
	if !ok {
		return field.Placeholder
	}
	return field.FormatValue(v, field.FormatFor(p.String()))
}

// benchmark renders a vertical label/value table for the first row.
func (g *Generator) benchmark(rows []field.Doc, paths []field.Path, opts Options) Table {
	t := Table{Title: opts.Title, Source: TargetBenchmark}
	if len(rows) == 0 {
		return t
	}
	doc := rows[0]
	for _, p := range paths {
		t.Rows = append(t.Rows, []string{label(p, opts), cell(doc, p)})
	}
	return t
}

// rowsTable renders one row per document and one column per field.
func (g *Generator) rowsTable(source Target, rows []field.Doc, paths []field.Path, opts Options) Table {
	t := Table{Title: opts.Title, Source: source}
	if len(rows) == 0 || len(paths) == 0 {
		return t
	}
	t.Header = headerOf(paths, opts)
	for _, doc := range rows {
		line := make([]string, len(paths))
		for i, p := range paths {
			line[i] = cell(doc, p)
		}
		t.Rows = append(t.Rows, line)
	}
	if opts.ShowTotals {
		t.Totals = totalsWithLabel(t.Rows, len(paths))
	}
	return t
}

// totalsWithLabel totals every column, labelling the first one when it does not sum.
func totalsWithLabel(rows [][]string, width int) []string {
	if len(rows) == 0 {
		return nil
	}
	out := make([]string, width)
	for col := 0; col < width; col++ {
		out[col] = totalColumn(rows, col)
	}
	if out[0] == field.Placeholder {
		out[0] = TotalLabel
	}
	return out
}
