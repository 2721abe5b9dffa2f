package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/markup"
	"github.com/buildsight/buildsight/internal/table"
)

// ProjectFormat selects the measure rendering routine.
type ProjectFormat string

const (
	FormatBulletedList ProjectFormat = "bulletedList"
	FormatSummaryTable ProjectFormat = "summaryTable"
	FormatFullDetails  ProjectFormat = "fullDetails"
	FormatEndUseTable  ProjectFormat = "endUseTable"
	FormatEnergyTable  ProjectFormat = "energyTable"
	FormatCard         ProjectFormat = "card"
)

// ParseProjectFormat validates a raw format. Empty selects the bulleted list.
func ParseProjectFormat(raw string) (ProjectFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "bulletedlist", "list":
		return FormatBulletedList, nil
	case "summarytable":
		return FormatSummaryTable, nil
	case "fulldetails":
		return FormatFullDetails, nil
	case "endusetable":
		return FormatEndUseTable, nil
	case "energytable":
		return FormatEnergyTable, nil
	case "card", "cards":
		return FormatCard, nil
	default:
		return "", fmt.Errorf("%w: project format %q", ErrInvalidTemplate, raw)
	}
}

// UnmarshalJSON normalizes the format alias.
func (f *ProjectFormat) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseProjectFormat(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ProjectFormatter renders measure blocks.
type ProjectFormatter interface {
	Format(format ProjectFormat, projects []field.Doc, fields []field.Path, opts ProjectOptions) (table.Fragment, error)
}

// ProjectOptions carries the block settings a formatter honours.
type ProjectOptions struct {
	Title        string
	CustomLabels map[string]string
	Display      field.DisplayMode
	ShowTotals   bool
}

var (
	summaryFields = []string{"name", "projectCost", "incentive", "annualSavings", "simplePayback"}
	energyFields  = []string{"name", "electricSavings", "gasSavings", "energySavings", "annualSavings"}
	detailFields  = []string{"description", "category", "projectCost", "incentive", "annualSavings", "simplePayback", "measureLife"}
)

// Projects is the built-in measure formatter.
type Projects struct{}

// Format renders projects in the requested layout.
func (Projects) Format(format ProjectFormat, projects []field.Doc, fields []field.Path, opts ProjectOptions) (table.Fragment, error) {
	if len(projects) == 0 {
		return table.Fragment{}, nil
	}
	switch format {
	case FormatBulletedList:
		names := make([]string, 0, len(projects))
		for _, p := range projects {
			if name := field.LookupString(p, "name"); name != "" {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return table.Fragment{}, nil
		}
		out, err := markup.Render("list", names)
		return table.Fragment{Markup: out}, err
	case FormatSummaryTable:
		return projectTable(projects, pathsOr(fields, summaryFields), opts)
	case FormatEndUseTable, FormatEnergyTable:
		opts.ShowTotals = true
		return projectTable(projects, pathsOr(fields, energyFields), opts)
	case FormatFullDetails:
		return projectDetails(projects, pathsOr(fields, detailFields), opts)
	case FormatCard:
		return projectCards(projects, pathsOr(fields, detailFields), opts)
	default:
		return table.Fragment{}, fmt.Errorf("%w: project format %q", ErrInvalidTemplate, format)
	}
}

func pathsOr(fields []field.Path, defaults []string) []field.Path {
	if len(fields) > 0 {
		return fields
	}
	out := make([]field.Path, 0, len(defaults))
	for _, raw := range defaults {
		out = append(out, field.Path{raw})
	}
	return out
}

func projectTable(projects []field.Doc, paths []field.Path, opts ProjectOptions) (table.Fragment, error) {
	t := table.Table{Title: opts.Title, Source: table.TargetMeasure}
	for _, p := range paths {
		t.Header = append(t.Header, field.LabelFor(p.String(), opts.CustomLabels))
	}
	for _, doc := range projects {
		row := make([]string, len(paths))
		for i, p := range paths {
			row[i] = formatted(doc, p)
		}
		t.Rows = append(t.Rows, row)
	}
	if opts.ShowTotals {
		t.Totals = table.Totals(t.Rows, len(paths))
		if t.Totals[0] == field.Placeholder {
			t.Totals[0] = table.TotalLabel
		}
	}
	out, err := t.Markup()
	if err != nil {
		return table.Fragment{}, err
	}
	return table.Fragment{Markup: out, Tables: []table.Table{t}}, nil
}

func projectDetails(projects []field.Doc, paths []field.Path, opts ProjectOptions) (table.Fragment, error) {
	var b strings.Builder
	for _, doc := range projects {
		heading, err := markup.Render("heading", headingData{Level: 3, Text: field.LookupString(doc, "name")})
		if err != nil {
			return table.Fragment{}, err
		}
		b.WriteString(heading)
		body, err := markup.Render("fields", projectFields(doc, paths, opts))
		if err != nil {
			return table.Fragment{}, err
		}
		b.WriteString(body)
	}
	return table.Fragment{Markup: b.String()}, nil
}

func projectCards(projects []field.Doc, paths []field.Path, opts ProjectOptions) (table.Fragment, error) {
	var b strings.Builder
	for _, doc := range projects {
		card, err := markup.Render("card", struct {
			Title  string
			Fields []markup.Field
		}{Title: field.LookupString(doc, "name"), Fields: projectFields(doc, paths, opts)})
		if err != nil {
			return table.Fragment{}, err
		}
		b.WriteString(card)
	}
	return table.Fragment{Markup: b.String()}, nil
}

// projectFields skips empty values so cards and details stay compact.
func projectFields(doc field.Doc, paths []field.Path, opts ProjectOptions) []markup.Field {
	out := make([]markup.Field, 0, len(paths))
	for _, p := range paths {
		v, ok := field.Resolve(doc, p)
		if !ok || field.IsEmpty(v) {
			continue
		}
		out = append(out, markup.Field{
			Label: field.LabelIfShown(field.LabelFor(p.String(), opts.CustomLabels), opts.Display),
			Value: field.FormatValue(v, field.FormatFor(p.String())),
		})
	}
	return out
}

func formatted(doc any, p field.Path) string {
	v, ok := field.Resolve(doc, p)
	if !ok {
		return field.Placeholder
	}
	return field.FormatValue(v, field.FormatFor(p.String()))
}
