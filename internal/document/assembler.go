package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/chart"
	"github.com/buildsight/buildsight/internal/enduse"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/markup"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/table"
)

const (
	defaultEmptyText = "No data available."
	chartFetchLimit  = 4
)

// ChartService resolves chart images. Implementations never fail; an
// unrenderable chart is empty.
type ChartService interface {
	Image(ctx context.Context, r chart.Request) chart.Image
}

// EndUseService resolves end-use breakdowns.
type EndUseService interface {
	Breakdown(ctx context.Context, req enduse.Request) enduse.Breakdown
}

// Document is the assembled body plus the tables it contains.
type Document struct {
	Body   string
	Tables []table.Table
}

// Assembler turns templates into document bodies.
type Assembler struct {
	tables   *table.Generator
	charts   ChartService
	endUse   EndUseService
	projects ProjectFormatter
	logger   *slog.Logger
	now      func() time.Time
}

// NewAssembler wires the collaborators. charts and endUse may be nil.
func NewAssembler(tables *table.Generator, charts ChartService, endUse EndUseService, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if tables == nil {
		tables = table.NewGenerator(nil, nil, logger)
	}
	return &Assembler{
		tables:   tables,
		charts:   charts,
		endUse:   endUse,
		projects: Projects{},
		logger:   logger,
		now:      time.Now,
	}
}

// WithProjects replaces the measure formatter.
func (a *Assembler) WithProjects(f ProjectFormatter) *Assembler {
	if f != nil {
		a.projects = f
	}
	return a
}

type slot struct {
	frag    table.Fragment
	pending bool
}

// Assemble renders every block in template order. End-use blocks are filled in
// a second pass so blocks sharing a breakdown compute it once.
func (a *Assembler) Assemble(ctx context.Context, tpl Template, bundle *Bundle) (Document, error) {
	blocks := slices.Clone(tpl.Body)
	for i := range blocks {
		if err := blocks[i].validate(); err != nil {
			return Document{}, fmt.Errorf("%w: block %d: %v", ErrInvalidTemplate, i, err)
		}
	}
	now := a.now()
	slots := make([]slot, len(blocks))
	for i, blk := range blocks {
		if isEndUse(blk) {
			slots[i].pending = true
			continue
		}
		frag, err := a.block(ctx, blk, bundle, now)
		if err != nil {
			return Document{}, fmt.Errorf("document: block %d (%s): %w", i, blk.Element, err)
		}
		if slots[i].frag, err = withPlaceholder(blk, frag); err != nil {
			return Document{}, err
		}
	}
	if err := a.fillEndUse(ctx, tpl.ID, blocks, slots, bundle); err != nil {
		return Document{}, err
	}

	var doc Document
	var b strings.Builder
	for _, s := range slots {
		b.WriteString(s.frag.Markup)
		doc.Tables = append(doc.Tables, s.frag.Tables...)
	}
	doc.Body = b.String()
	return doc, nil
}

func isEndUse(blk Block) bool {
	return blk.DataSource() == table.TargetEndUseBreakdown && (blk.Element == ElementTable || blk.Element == ElementList)
}

func withPlaceholder(blk Block, frag table.Fragment) (table.Fragment, error) {
	if !frag.Empty() || !blk.ShowEmptyPlaceholder {
		return frag, nil
	}
	text := blk.EmptyText
	if text == "" {
		text = defaultEmptyText
	}
	out, err := markup.Render("empty", text)
	return table.Fragment{Markup: out}, err
}

func (a *Assembler) block(ctx context.Context, blk Block, bundle *Bundle, now time.Time) (table.Fragment, error) {
	switch blk.Element {
	case ElementHeader, ElementFooter, ElementHeaderImage:
		return table.Fragment{Markup: markup.Comment(string(blk.Element))}, nil
	case ElementParagraph:
		if strings.TrimSpace(blk.Content) != "" {
			out, err := Substitute(blk.Content, bundle.Context(now))
			return table.Fragment{Markup: out}, err
		}
	}
	switch blk.DataSource() {
	case table.TargetAudit:
		return a.audit(blk, bundle)
	case table.TargetMeasure:
		return a.projects.Format(blk.ProjectConfig.Format, bundle.Projects, blockPaths(blk), ProjectOptions{
			Title:        blk.Title,
			CustomLabels: blk.CustomLabels,
			Display:      field.ParseDisplayMode(blk.Display),
			ShowTotals:   blk.ShowTotals,
		})
	}
	switch blk.Element {
	case ElementChart:
		return a.chart(ctx, blk, bundle)
	case ElementHeading:
		return heading(blk, bundle, now)
	case ElementDivider:
		style := blk.DividerConfig.Style
		if style == "" {
			style = "solid"
		}
		out, err := markup.Render("divider", struct{ Style string }{style})
		return table.Fragment{Markup: out}, err
	case ElementImage:
		url := markup.SafeURL(blk.Image.URL)
		if url == "" {
			return table.Fragment{}, nil
		}
		out, err := markup.Render("images", []markup.Image{{URL: url, Alt: blk.Image.Alt, Caption: blk.Image.Caption}})
		return table.Fragment{Markup: out}, err
	case ElementParagraph:
		return fields(blk, bundle)
	case ElementList:
		return list(blk, bundle)
	case ElementTable:
		return a.table(ctx, blk, bundle)
	default:
		return table.Fragment{}, fmt.Errorf("%w: %q", ErrUnknownElement, blk.Element)
	}
}

// blockPaths parses the block fields with the target namespace removed.
func blockPaths(blk Block) []field.Path {
	out := make([]field.Path, 0, len(blk.Fields))
	for _, raw := range blk.Fields {
		p, err := field.ParsePath(raw)
		if err != nil {
			continue
		}
		p = p.TrimTarget(string(blk.DataSource()))
		if blk.Target != "" {
			p = p.TrimTarget(blk.Target)
		}
		out = append(out, p)
	}
	return out
}

func pathStrings(paths []field.Path) []string {
	return lo.Map(paths, func(p field.Path, _ int) string { return p.String() })
}

type headingData struct {
	Level int
	Text  string
}

func heading(blk Block, bundle *Bundle, now time.Time) (table.Fragment, error) {
	text := blk.Title
	if strings.TrimSpace(blk.Content) != "" {
		out, err := Substitute(blk.Content, bundle.Context(now))
		if err != nil {
			return table.Fragment{}, err
		}
		text = out
	}
	if strings.TrimSpace(text) == "" {
		return table.Fragment{}, nil
	}
	level := blk.Level
	if level < 1 || level > 4 {
		level = 2
	}
	out, err := markup.Render("heading", headingData{Level: level, Text: text})
	return table.Fragment{Markup: out}, err
}

// valueRows returns the documents paragraph and list blocks read from.
func valueRows(blk Block, bundle *Bundle) []field.Doc {
	switch blk.DataSource() {
	case table.TargetUtility, table.TargetOverview:
		if bundle.Utilities.Window.Start.IsZero() || bundle.Utilities.Empty() {
			return nil
		}
		return []field.Doc{bundle.Utilities.Summary.Doc()}
	default:
		return bundle.Rows(blk.DataSource())
	}
}

// labeled renders the non-empty fields of doc as label/value pairs.
func labeled(blk Block, doc field.Doc) []markup.Field {
	mode := field.ParseDisplayMode(blk.Display)
	var out []markup.Field
	for _, p := range blockPaths(blk) {
		v, ok := field.Resolve(doc, p)
		if !ok || field.IsEmpty(v) {
			continue
		}
		out = append(out, markup.Field{
			Label: field.LabelIfShown(field.LabelFor(p.String(), blk.CustomLabels), mode),
			Value: field.FormatValue(v, field.FormatFor(p.String())),
		})
	}
	return out
}

func fields(blk Block, bundle *Bundle) (table.Fragment, error) {
	rows := valueRows(blk, bundle)
	if len(rows) == 0 {
		return table.Fragment{}, nil
	}
	values := labeled(blk, rows[0])
	if len(values) == 0 {
		return table.Fragment{}, nil
	}
	out, err := markup.Render("fields", values)
	return table.Fragment{Markup: out}, err
}

// list renders one item per field for a single document, or one item per
// document joining its values when the target yields several.
func list(blk Block, bundle *Bundle) (table.Fragment, error) {
	rows := valueRows(blk, bundle)
	var items []string
	switch len(rows) {
	case 0:
		return table.Fragment{}, nil
	case 1:
		for _, f := range labeled(blk, rows[0]) {
			items = append(items, f.Label+f.Value)
		}
	default:
		for _, doc := range rows {
			values := lo.Map(labeled(blk, doc), func(f markup.Field, _ int) string { return f.Value })
			if len(values) > 0 {
				items = append(items, strings.Join(values, ", "))
			}
		}
	}
	if len(items) == 0 {
		return table.Fragment{}, nil
	}
	out, err := markup.Render("list", items)
	return table.Fragment{Markup: out}, err
}

func (a *Assembler) tableOptions(blk Block, bundle *Bundle) table.Options {
	return table.Options{
		Title:        blk.Title,
		Building:     bundle.Building,
		Utilities:    bundle.Utilities,
		Period:       blk.period,
		CustomLabels: blk.CustomLabels,
		Display:      field.ParseDisplayMode(blk.Display),
		Equipment:    blk.EquipmentConfig,
		ShowImages:   blk.ShowImages,
		ShowTotals:   blk.ShowTotals,
	}
}

func (a *Assembler) table(ctx context.Context, blk Block, bundle *Bundle) (table.Fragment, error) {
	target := blk.DataSource()
	rows := bundle.Rows(target)
	if !target.Tabular() {
		target = table.TargetBuilding
	}
	if target == table.TargetBuilding && strings.EqualFold(blk.TableLayout, "vertical") {
		target = table.TargetBenchmark
	}
	return a.tables.Generate(ctx, target, rows, pathStrings(blockPaths(blk)), a.tableOptions(blk, bundle))
}

// chart fetches the block's charts concurrently and lays them out in one or two columns.
func (a *Assembler) chart(ctx context.Context, blk Block, bundle *Bundle) (table.Fragment, error) {
	names := blk.ChartConfig.Charts
	if len(names) == 0 {
		names = lo.Map(blockPaths(blk), func(p field.Path, _ int) string { return p.Last() })
	}
	if a.charts == nil || len(names) == 0 {
		return table.Fragment{}, nil
	}
	theme := blk.ChartConfig.ThemeID
	if theme == "" {
		theme = bundle.Report.ThemeID
	}
	fetched := make([]chart.Image, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chartFetchLimit)
	for i, name := range names {
		g.Go(func() error {
			fetched[i] = a.charts.Image(gctx, chart.Request{
				Chart:      name,
				BuildingID: bundle.Building.ID,
				ThemeID:    theme,
				Window:     bundle.Utilities.Window,
				Monthly:    bundle.Utilities.Monthly,
			})
			return nil
		})
	}
	_ = g.Wait()

	var images []markup.Image
	for i, img := range fetched {
		if img.Empty() {
			a.logger.Debug("chart omitted", slog.String("chart", names[i]), slog.String("building_id", bundle.Building.ID))
			continue
		}
		alt := field.LabelFor(names[i], blk.CustomLabels)
		images = append(images, markup.Image{URL: markup.SafeURL(img.Src()), Alt: alt, Inline: img.Inline})
	}
	if len(images) == 0 {
		return table.Fragment{}, nil
	}
	columns := blk.ChartConfig.Columns
	if columns != 2 {
		columns = 1
	}
	out, err := markup.Render("chart", struct {
		Columns int
		Images  []markup.Image
		Rows    [][]markup.Image
	}{Columns: columns, Images: images, Rows: lo.Chunk(images, 2)})
	return table.Fragment{Markup: out}, err
}

// fillEndUse resolves pending end-use blocks, computing one breakdown per
// distinct period configuration.
func (a *Assembler) fillEndUse(ctx context.Context, templateID string, blocks []Block, slots []slot, bundle *Bundle) error {
	var pending []int
	for i, s := range slots {
		if s.pending {
			pending = append(pending, i)
		}
	}
	for _, members := range endUseGroups(blocks, pending) {
		var bd enduse.Breakdown
		if a.endUse != nil {
			bd = a.endUse.Breakdown(ctx, endUseRequest(templateID, blocks, members, bundle.Building, bundle.Utilities.Window))
		}
		for _, i := range members {
			blk := blocks[i]
			opts := a.tableOptions(blk, bundle)
			opts.EndUse = bd
			frag, err := a.tables.Generate(ctx, table.TargetEndUseBreakdown, nil, pathStrings(blockPaths(blk)), opts)
			if err != nil {
				return fmt.Errorf("document: block %d (%s): %w", i, blk.Element, err)
			}
			if slots[i].frag, err = withPlaceholder(blk, frag); err != nil {
				return err
			}
			slots[i].pending = false
		}
	}
	return nil
}

// EndUseRequests lists the breakdowns a template needs over window, one per
// distinct period configuration of its end-use blocks.
func EndUseRequests(tpl Template, b building.Building, window period.Range) ([]enduse.Request, error) {
	blocks := slices.Clone(tpl.Body)
	var idx []int
	for i := range blocks {
		if err := blocks[i].validate(); err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrInvalidTemplate, i, err)
		}
		if isEndUse(blocks[i]) {
			idx = append(idx, i)
		}
	}
	groups := endUseGroups(blocks, idx)
	out := make([]enduse.Request, 0, len(groups))
	for _, members := range groups {
		out = append(out, endUseRequest(tpl.ID, blocks, members, b, window))
	}
	return out, nil
}

// endUseGroups groups block indexes by period configuration, keeping first-seen order.
func endUseGroups(blocks []Block, idx []int) [][]int {
	if len(idx) == 0 {
		return nil
	}
	groups := lo.GroupBy(idx, func(i int) string { return periodKey(blocks[i]) })
	keys := lo.Uniq(lo.Map(idx, func(i int, _ int) string { return periodKey(blocks[i]) }))
	return lo.Map(keys, func(k string, _ int) []int { return groups[k] })
}

func endUseRequest(templateID string, blocks []Block, members []int, b building.Building, window period.Range) enduse.Request {
	return enduse.Request{
		Building:    b,
		TemplateID:  templateID,
		Window:      window,
		Period:      blocks[members[0]].period,
		Fingerprint: fingerprint(blocks, members),
	}
}

func periodKey(blk Block) string {
	return fmt.Sprintf("%s:%d:%d:%t", blk.period.Mode, blk.period.StartMonth, blk.period.EndMonth, blk.period.SkipEmpty)
}

func fingerprint(blocks []Block, members []int) string {
	parts := make([][]byte, 0, len(members))
	for _, i := range members {
		raw, err := json.Marshal(blocks[i])
		if err != nil {
			continue
		}
		parts = append(parts, raw)
	}
	return enduse.Fingerprint(parts...)
}
