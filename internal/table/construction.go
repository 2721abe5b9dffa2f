package table

import (
	"strings"

	"github.com/samber/lo"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/markup"
)

var constructionApplications = []string{"wall", "roof", "window", "interior_floor", "exterior_floor", "foundation"}

// construction renders allow-listed envelope assemblies, optionally preceded by their images.
func (g *Generator) construction(rows []field.Doc, paths []field.Path, opts Options) (Fragment, error) {
	kept := lo.Filter(rows, func(doc field.Doc, _ int) bool {
		app := strings.ToLower(field.LookupString(doc, "application"))
		return lo.Contains(constructionApplications, app)
	})
	t := g.rowsTable(TargetConstruction, kept, paths, opts)
	if t.Empty() {
		return Fragment{}, nil
	}
	frag, err := fragmentOf(t)
	if err != nil || !opts.ShowImages {
		return frag, err
	}
	var images []markup.Image
	for _, doc := range kept {
		url := markup.SafeURL(field.LookupString(doc, "image"))
		if url == "" {
			continue
		}
		name := field.LookupString(doc, "name")
		images = append(images, markup.Image{URL: url, Alt: name, Caption: name})
	}
	if len(images) == 0 {
		return frag, nil
	}
	gallery, err := markup.Render("images", images)
	if err != nil {
		return Fragment{}, err
	}
	frag.Markup = gallery + frag.Markup
	return frag, nil
}
