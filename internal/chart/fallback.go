package chart

import (
	"errors"
	"strings"
	"time"

	"github.com/buildsight/buildsight/internal/chart/svg"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

// ErrNoData indicates no monthly rows fall inside the chart window.
var ErrNoData = errors.New("chart: no monthly data")

// Fallback draws the chart locally. Chart names containing "cost" draw cost and
// usage bars; others draw a usage line. The fuel is taken from the chart name
// and defaults to electric.
func Fallback(r Request) (Image, error) {
	fuel := fuelFromChart(r.Chart)
	months := r.Window.YearMonths()
	if len(months) == 0 {
		return Image{}, ErrNoData
	}
	usage := make([]float64, len(months))
	cost := make([]float64, len(months))
	index := make(map[period.YearMonth]int, len(months))
	labels := make([]string, len(months))
	for i, ym := range months {
		index[ym] = i
		labels[i] = time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 06")
	}
	found := false
	for _, m := range r.Monthly {
		if m.Fuel() != fuel {
			continue
		}
		i, ok := index[period.YearMonth{Year: m.Year, Month: time.Month(m.Month)}]
		if !ok {
			continue
		}
		usage[i] += m.Usage
		cost[i] += m.Cost
		found = true
	}
	if !found {
		return Image{}, ErrNoData
	}

	opts := svg.Opts{Title: fuel.Label() + " " + chartKind(r.Chart), Unit: fuel.Unit()}
	if strings.Contains(strings.ToLower(r.Chart), "cost") {
		opts.Unit = ""
		html, err := svg.Bars([]svg.Series{
			{Label: "Cost ($)", Values: cost},
			{Label: "Usage (" + fuel.Unit() + ")", Values: usage},
		}, labels, opts)
		if err != nil {
			return Image{}, err
		}
		return Image{Inline: html, ContentType: "image/svg+xml"}, nil
	}
	html, err := svg.Line(usage, labels, "", opts)
	if err != nil {
		return Image{}, err
	}
	return Image{Inline: html, ContentType: "image/svg+xml"}, nil
}

func fuelFromChart(name string) utility.FuelType {
	lower := strings.ToLower(name)
	for _, f := range utility.Fuels {
		if strings.Contains(lower, strings.ToLower(string(f))) {
			return f
		}
	}
	if strings.Contains(lower, "gas") {
		return utility.NaturalGas
	}
	return utility.Electric
}

func chartKind(name string) string {
	if strings.Contains(strings.ToLower(name), "cost") {
		return "Cost"
	}
	return "Usage"
}
