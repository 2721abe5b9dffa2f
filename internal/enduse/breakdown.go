// Package enduse estimates how a building's energy is split across end uses
// and caches the result per building, template and date range.
package enduse

import (
	"strings"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

// Category is an end use.
type Category string

const (
	Heating       Category = "Heating"
	Cooling       Category = "Cooling"
	Ventilation   Category = "Ventilation"
	Lighting      Category = "Lighting"
	PlugLoads     Category = "Plug Loads"
	WaterHeating  Category = "Water Heating"
	Refrigeration Category = "Refrigeration"
	OtherUse      Category = "Other"
)

// Categories lists every end use in display order.
var Categories = []Category{Heating, Cooling, Ventilation, Lighting, PlugLoads, WaterHeating, Refrigeration, OtherUse}

// profile splits electric and thermal energy across categories. Each side sums to one.
type profile struct {
	electric map[Category]float64
	thermal  map[Category]float64
}

var profiles = map[string]profile{
	"office": {
		electric: map[Category]float64{Heating: 0.05, Cooling: 0.22, Ventilation: 0.12, Lighting: 0.26, PlugLoads: 0.26, WaterHeating: 0.02, Refrigeration: 0.03, OtherUse: 0.04},
		thermal:  map[Category]float64{Heating: 0.82, WaterHeating: 0.13, OtherUse: 0.05},
	},
	"retail": {
		electric: map[Category]float64{Heating: 0.04, Cooling: 0.20, Ventilation: 0.10, Lighting: 0.38, PlugLoads: 0.14, WaterHeating: 0.02, Refrigeration: 0.08, OtherUse: 0.04},
		thermal:  map[Category]float64{Heating: 0.85, WaterHeating: 0.10, OtherUse: 0.05},
	},
	"school": {
		electric: map[Category]float64{Heating: 0.04, Cooling: 0.18, Ventilation: 0.16, Lighting: 0.30, PlugLoads: 0.20, WaterHeating: 0.03, Refrigeration: 0.05, OtherUse: 0.04},
		thermal:  map[Category]float64{Heating: 0.80, WaterHeating: 0.15, OtherUse: 0.05},
	},
	"multifamily": {
		electric: map[Category]float64{Heating: 0.06, Cooling: 0.18, Ventilation: 0.06, Lighting: 0.16, PlugLoads: 0.30, WaterHeating: 0.04, Refrigeration: 0.14, OtherUse: 0.06},
		thermal:  map[Category]float64{Heating: 0.62, WaterHeating: 0.30, OtherUse: 0.08},
	},
	"warehouse": {
		electric: map[Category]float64{Heating: 0.06, Cooling: 0.08, Ventilation: 0.08, Lighting: 0.48, PlugLoads: 0.18, WaterHeating: 0.02, Refrigeration: 0.04, OtherUse: 0.06},
		thermal:  map[Category]float64{Heating: 0.90, WaterHeating: 0.06, OtherUse: 0.04},
	},
	"default": {
		electric: map[Category]float64{Heating: 0.05, Cooling: 0.20, Ventilation: 0.10, Lighting: 0.25, PlugLoads: 0.25, WaterHeating: 0.03, Refrigeration: 0.06, OtherUse: 0.06},
		thermal:  map[Category]float64{Heating: 0.80, WaterHeating: 0.15, OtherUse: 0.05},
	},
}

func profileFor(useType string) profile {
	key := strings.ToLower(strings.TrimSpace(useType))
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	if p, ok := profiles[key]; ok {
		return p
	}
	return profiles["default"]
}

// Share is one category's slice of the energy and cost.
type Share struct {
	Category Category `json:"category"`
	KBtu     float64  `json:"kbtu"`
	Cost     float64  `json:"cost"`
	Percent  float64  `json:"percent"`
}

// PeriodShares is the category split of one period.
type PeriodShares struct {
	Label  string  `json:"label"`
	Shares []Share `json:"shares"`
}

// Breakdown is the end-use split of a window, overall and per period.
type Breakdown struct {
	UseType   string         `json:"useType"`
	TotalKBtu float64        `json:"totalKbtu"`
	TotalCost float64        `json:"totalCost"`
	Shares    []Share        `json:"shares"`
	Periods   []PeriodShares `json:"periods"`
}

// Empty reports whether the breakdown carries no energy.
func (b Breakdown) Empty() bool {
	return b.TotalKBtu == 0 && len(b.Shares) == 0
}

// Share returns the overall share of c.
func (b Breakdown) Share(c Category) Share {
	for _, s := range b.Shares {
		if s.Category == c {
			return s
		}
	}
	return Share{Category: c}
}

// Doc exposes the breakdown for dot-path resolution keyed by category name.
func (b Breakdown) Doc() field.Doc {
	doc := field.Doc{"totalKbtu": b.TotalKBtu, "totalCost": b.TotalCost}
	for _, s := range b.Shares {
		doc[string(s.Category)] = map[string]any{"kbtu": s.KBtu, "cost": s.Cost, "percent": s.Percent}
	}
	return doc
}

// Split distributes one summary across categories.
func Split(useType string, s utility.Summary) []Share {
	p := profileFor(useType)
	kbtu := make(map[Category]float64, len(Categories))
	cost := make(map[Category]float64, len(Categories))
	total := 0.0
	for _, fs := range s.Fuels {
		if !fs.Fuel.IsEnergy() {
			continue
		}
		weights := p.thermal
		if fs.Fuel == utility.Electric {
			weights = p.electric
		}
		for c, w := range weights {
			kbtu[c] += fs.KBtu * w
			cost[c] += fs.Cost * w
		}
		total += fs.KBtu
	}
	if total == 0 {
		return nil
	}
	out := make([]Share, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, Share{Category: c, KBtu: kbtu[c], Cost: cost[c], Percent: kbtu[c] / total * 100})
	}
	return out
}

// Compute builds the breakdown of res over its window, split per period according to cfg.
func Compute(useType string, res utility.Result, cfg period.Config, buildingSummary func(period.Range) utility.Summary) Breakdown {
	out := Breakdown{UseType: useType, Shares: Split(useType, res.Summary)}
	out.TotalKBtu = res.Summary.TotalKBtu
	for _, fs := range res.Summary.Fuels {
		if fs.Fuel.IsEnergy() {
			out.TotalCost += fs.Cost
		}
	}
	spans, err := period.Frame(cfg, res.Window)
	if err != nil || buildingSummary == nil {
		return out
	}
	for _, span := range spans {
		out.Periods = append(out.Periods, PeriodShares{
			Label:  span.Label,
			Shares: Split(useType, buildingSummary(span.Range())),
		})
	}
	return out
}
