package document

import (
	"sort"
	"strings"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/markup"
	"github.com/buildsight/buildsight/internal/table"
)

type auditItem struct {
	Name    string
	Count   string
	Comment string
}

type auditGroup struct {
	Title string
	Items []auditItem
}

// auditGroups reads the cleaned audit snapshot: component lists keyed by type,
// either at the top level or under "components". Requested fields select and
// order the types; without fields every type is listed alphabetically.
func auditGroups(audit field.Doc, paths []field.Path, labels map[string]string) []auditGroup {
	components := audit
	if nested, ok := audit["components"].(map[string]any); ok {
		components = nested
	}
	var types []string
	if len(paths) > 0 {
		for _, p := range paths {
			types = append(types, p.String())
		}
	} else {
		for k, v := range components {
			if _, ok := v.([]any); ok {
				types = append(types, k)
			}
		}
		sort.Strings(types)
	}

	var out []auditGroup
	for _, kind := range types {
		v, ok := field.Lookup(components, kind)
		if !ok {
			continue
		}
		var items []auditItem
		for _, doc := range building.Docs(v) {
			name := field.LookupString(doc, "name")
			if name == "" {
				name = field.LookupString(doc, "type")
			}
			item := auditItem{Name: name, Comment: strings.TrimSpace(field.LookupString(doc, "comment"))}
			if n, ok := field.ToFloat(mustLookup(doc, "componentCount")); ok && n > 0 {
				item.Count = field.FormatNumber(n, 0)
			}
			items = append(items, item)
		}
		if len(items) == 0 {
			continue
		}
		out = append(out, auditGroup{Title: field.LabelFor(kind, labels), Items: items})
	}
	return out
}

func (a *Assembler) audit(blk Block, bundle *Bundle) (table.Fragment, error) {
	rows := bundle.Rows(table.TargetAudit)
	if len(rows) == 0 {
		return table.Fragment{}, nil
	}
	groups := auditGroups(rows[0], blockPaths(blk), blk.CustomLabels)
	if len(groups) == 0 {
		return table.Fragment{}, nil
	}
	if blk.Element != ElementTable {
		out, err := markup.Render("audit", groups)
		return table.Fragment{Markup: out}, err
	}
	var b strings.Builder
	var tables []table.Table
	for _, g := range groups {
		t := table.Table{Title: g.Title, Source: table.TargetAudit, Header: []string{"Component", "Count", "Comment"}}
		for _, item := range g.Items {
			t.Rows = append(t.Rows, []string{item.Name, orPlaceholder(item.Count), orPlaceholder(item.Comment)})
		}
		out, err := t.Markup()
		if err != nil {
			return table.Fragment{}, err
		}
		b.WriteString(out)
		tables = append(tables, t)
	}
	return table.Fragment{Markup: b.String(), Tables: tables}, nil
}

func mustLookup(doc field.Doc, key string) any {
	v, _ := field.Lookup(doc, key)
	return v
}

func orPlaceholder(s string) string {
	if s == "" {
		return field.Placeholder
	}
	return s
}
