package svg

import (
	"fmt"
	"html/template"
	"math"
)

// Series is one named bar series.
type Series struct {
	Label  string
	Color  string
	Values []float64
}

var palette = []string{"#0ea5e9", "#f97316", "#22c55e", "#a855f7"}

// Bars draws grouped bars, one group per label and one bar per series.
func Bars(series []Series, labels []string, opts Opts) (template.HTML, error) {
	if len(series) == 0 || len(labels) == 0 {
		return "", ErrNoSeries
	}
	values := make([][]float64, len(series))
	for i, s := range series {
		if len(s.Values) != len(labels) {
			return "", ErrLabelMismatch
		}
		values[i] = s.Values
	}
	minVal, maxVal := bounds(values...)
	c, err := newCanvas(opts, minVal, maxVal)
	if err != nil {
		return "", err
	}

	c.open("bar", opts)
	c.grid()
	groupWidth := c.innerWidth / float64(len(labels))
	barWidth := groupWidth * 0.8 / float64(len(series))
	for i, l := range labels {
		left := c.padding + float64(i)*groupWidth + groupWidth*0.1
		for j, s := range series {
			top, bottom := c.y(s.Values[i]), c.y(0)
			if top > bottom {
				top, bottom = bottom, top
			}
			fmt.Fprintf(&c.b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s %s"></rect>`,
				left+float64(j)*barWidth, top, barWidth, math.Max(bottom-top, 0), color(s, j),
				template.HTMLEscapeString(s.Label), template.HTMLEscapeString(l))
		}
		c.label(c.padding+float64(i)*groupWidth+groupWidth/2, l)
	}

	legendX := c.padding
	for j, s := range series {
		fmt.Fprintf(&c.b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, legendX, c.padding-22, color(s, j))
		fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10">%s</text>`, legendX+14, c.padding-13, c.axisColor, template.HTMLEscapeString(s.Label))
		legendX += 100
	}
	return c.close(), nil
}

func color(s Series, i int) string {
	return fallback(s.Color, palette[i%len(palette)])
}
