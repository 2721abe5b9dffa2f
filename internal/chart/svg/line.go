package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Line draws one series as a filled line, e.g. monthly usage.
func Line(series []float64, labels []string, color string, opts Opts) (template.HTML, error) {
	if len(series) == 0 {
		return "", ErrNoSeries
	}
	if len(series) != len(labels) {
		return "", ErrLabelMismatch
	}
	minVal, maxVal := bounds(series)
	c, err := newCanvas(opts, minVal, maxVal)
	if err != nil {
		return "", err
	}
	color = fallback(color, "#0f766e")

	xs := make([]float64, len(series))
	for i := range series {
		if len(series) == 1 {
			xs[i] = c.padding + c.innerWidth/2
			continue
		}
		xs[i] = c.padding + float64(i)*c.innerWidth/float64(len(series)-1)
	}
	var path strings.Builder
	for i, v := range series {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xs[i], c.y(v))
	}
	line := strings.TrimSpace(path.String())

	c.open("line", opts)
	c.grid()
	fmt.Fprintf(&c.b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" fill-opacity="0.12" stroke="none" aria-hidden="true"></path>`, line, xs[len(xs)-1], c.y(0), xs[0], c.y(0), color)
	fmt.Fprintf(&c.b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round"></path>`, line, color)
	for i, v := range series {
		fmt.Fprintf(&c.b, `<circle cx="%.2f" cy="%.2f" r="2.5" fill="%s"></circle>`, xs[i], c.y(v), color)
	}
	for i, l := range labels {
		c.label(xs[i], l)
	}
	return c.close(), nil
}
