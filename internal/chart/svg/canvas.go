// Package svg draws the inline fallback charts embedded in reports when no
// chart-image service is configured.
package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Defaults for report charts.
const (
	DefaultWidth   = 640
	DefaultHeight  = 260
	DefaultPadding = 32.0
	DefaultTicks   = 5
)

var (
	// ErrNoSeries indicates a chart without data.
	ErrNoSeries = errors.New("svg: series required")
	// ErrLabelMismatch indicates labels that do not line up with the series.
	ErrLabelMismatch = errors.New("svg: labels length must match series")
	// ErrViewport indicates padding larger than the drawing area.
	ErrViewport = errors.New("svg: viewport too small")
)

// Opts customises a chart.
type Opts struct {
	Title       string
	Description string
	// Unit is appended to tick labels, e.g. "kWh".
	Unit      string
	Width     int
	Height    int
	Padding   float64
	TickCount int
	AxisColor string
	GridColor string
}

// canvas holds the scaled drawing area shared by line and bar charts.
type canvas struct {
	b                       strings.Builder
	width, height           int
	padding                 float64
	innerWidth, innerHeight float64
	minVal, maxVal          float64
	ticks                   int
	axisColor, gridColor    string
	unit                    string
}

func newCanvas(opts Opts, minVal, maxVal float64) (*canvas, error) {
	c := &canvas{
		width:     opts.Width,
		height:    opts.Height,
		padding:   opts.Padding,
		ticks:     opts.TickCount,
		axisColor: fallback(opts.AxisColor, "#334155"),
		gridColor: fallback(opts.GridColor, "#cbd5e1"),
		unit:      opts.Unit,
	}
	if c.width <= 0 {
		c.width = DefaultWidth
	}
	if c.height <= 0 {
		c.height = DefaultHeight
	}
	if c.padding <= 0 {
		c.padding = DefaultPadding
	}
	if c.ticks <= 0 {
		c.ticks = DefaultTicks
	}
	c.innerWidth = float64(c.width) - 2*c.padding
	c.innerHeight = float64(c.height) - 2*c.padding
	if c.innerWidth <= 0 || c.innerHeight <= 0 {
		return nil, ErrViewport
	}
	c.minVal = math.Min(minVal, 0)
	c.maxVal = math.Max(maxVal, 0)
	if math.Abs(c.maxVal-c.minVal) < 1e-9 {
		c.maxVal = c.minVal + 1
	}
	return c, nil
}

// y maps a value to its vertical pixel position.
func (c *canvas) y(v float64) float64 {
	return c.padding + c.innerHeight - (v-c.minVal)*c.innerHeight/(c.maxVal-c.minVal)
}

func (c *canvas) bottom() float64 { return c.padding + c.innerHeight }

func (c *canvas) open(kind string, opts Opts) {
	titleID := makeID(opts.Title, kind+"-title")
	descID := makeID(opts.Title, kind+"-desc")
	fmt.Fprintf(&c.b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, c.width, c.height, titleID, descID)
	fmt.Fprintf(&c.b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(opts.Title, "Utility chart")))
	fmt.Fprintf(&c.b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(fallback(opts.Description, "Monthly utility data")))
}

func (c *canvas) grid() {
	for i := 0; i <= c.ticks; i++ {
		ratio := float64(i) / float64(c.ticks)
		value := c.minVal + (c.maxVal-c.minVal)*ratio
		y := c.y(value)
		fmt.Fprintf(&c.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, c.padding, y, c.padding+c.innerWidth, y, c.gridColor)
		fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, c.padding-6, y+4, c.axisColor, template.HTMLEscapeString(c.tick(value)))
	}
	fmt.Fprintf(&c.b, `<g stroke="%s" aria-label="Axes">`, c.axisColor)
	fmt.Fprintf(&c.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, c.padding, c.padding, c.padding, c.bottom())
	fmt.Fprintf(&c.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, c.padding, c.y(0), c.padding+c.innerWidth, c.y(0))
	c.b.WriteString("</g>")
}

func (c *canvas) label(x float64, text string) {
	fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x, c.bottom()+14, c.axisColor, template.HTMLEscapeString(text))
}

func (c *canvas) close() template.HTML {
	c.b.WriteString("</svg>")
	return template.HTML(c.b.String())
}

func (c *canvas) tick(v float64) string {
	s := formatTick(v)
	if c.unit == "" {
		return s
	}
	return s + " " + c.unit
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func bounds(series ...[]float64) (float64, float64) {
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if math.IsInf(minVal, 1) {
		return 0, 0
	}
	return minVal, maxVal
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case math.Abs(v-math.Round(v)) < 1e-9:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
