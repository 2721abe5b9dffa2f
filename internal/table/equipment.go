package table

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/markup"
)

const timestampLayout = "01/02/2006 3:04 PM"

// equipment renders the building equipment matching the filter, optionally
// preceded by its photos.
func (g *Generator) equipment(ctx context.Context, rows []field.Doc, paths []field.Path, opts Options) (Fragment, error) {
	filter := opts.Equipment
	kept := lo.Filter(rows, func(doc field.Doc, _ int) bool {
		return matches(doc, "category", filter.Category) &&
			matches(doc, "application", filter.Application) &&
			matches(doc, "technology", filter.Technology)
	})
	kept = lo.Map(kept, func(doc field.Doc, _ int) field.Doc { return withInputPower(doc) })

	t := g.rowsTable(TargetEquipment, kept, paths, opts)
	if t.Empty() {
		return Fragment{}, nil
	}
	frag, err := fragmentOf(t)
	if err != nil {
		return Fragment{}, err
	}
	if !filter.ShowImages && !opts.ShowImages {
		return frag, nil
	}
	images := g.equipmentImages(ctx, kept, filter.ShowTimestamps)
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

func matches(doc field.Doc, key, want string) bool {
	if want == "" {
		return true
	}
	return strings.EqualFold(field.LookupString(doc, key), want)
}

// withInputPower back-fills totalInputPower from lampInputPower x numberOfLamps x ballastFactor.
func withInputPower(doc field.Doc) field.Doc {
	if v, ok := field.Lookup(doc, "totalInputPower"); ok && !field.IsEmpty(v) {
		return doc
	}
	lamp, okLamp := lookupFloat(doc, "lampInputPower")
	count, okCount := lookupFloat(doc, "numberOfLamps")
	if !okLamp || !okCount {
		return doc
	}
	ballast, ok := lookupFloat(doc, "ballastFactor")
	if !ok || ballast == 0 {
		ballast = 1
	}
	out := make(field.Doc, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["totalInputPower"] = lamp * count * ballast
	return out
}

func lookupFloat(doc field.Doc, key string) (float64, bool) {
	v, ok := field.Lookup(doc, key)
	if !ok {
		return 0, false
	}
	return field.ToFloat(v)
}

// equipmentImages collects photos in row order, fetching capture timestamps concurrently.
func (g *Generator) equipmentImages(ctx context.Context, rows []field.Doc, timestamps bool) []markup.Image {
	var images []markup.Image
	for _, doc := range rows {
		name := field.LookupString(doc, "name")
		raw, _ := field.Lookup(doc, "images")
		for _, item := range toStrings(raw) {
			url := markup.SafeURL(item)
			if url == "" {
				continue
			}
			images = append(images, markup.Image{URL: url, Alt: name, Caption: name})
		}
	}
	if !timestamps || g.images == nil || len(images) == 0 {
		return images
	}
	captions := make([]string, len(images))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for i := range images {
		i := i
		eg.Go(func() error {
			at, err := g.images.Timestamp(egctx, string(images[i].URL))
			if err != nil {
				g.logger.Warn("equipment image timestamp", slog.String("url", string(images[i].URL)), slog.Any("error", err))
				return nil
			}
			if !at.IsZero() {
				captions[i] = at.Format(timestampLayout)
			}
			return nil
		})
	}
	_ = eg.Wait()
	for i := range images {
		if captions[i] == "" {
			continue
		}
		if images[i].Caption != "" {
			images[i].Caption += " - "
		}
		images[i].Caption += captions[i]
	}
	return images
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch val := item.(type) {
			case string:
				out = append(out, val)
			case map[string]any:
				if s, ok := val["url"].(string); ok {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		return []string{list}
	default:
		return nil
	}
}
