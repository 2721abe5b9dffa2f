package utility

import (
	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
)

// Fixed conversion constants for the GHG equivalences, per metric ton of CO2e.
const (
	tonsPerVehicleYear = 4.6
	tonsPerBarrel      = 0.43
	tonsPerRailcar     = 181.29
)

// FuelSummary aggregates one fuel over a window.
type FuelSummary struct {
	Fuel              FuelType
	Usage             float64
	Cost              float64
	Demand            float64
	DemandCost        float64
	KBtu              float64
	PercentOfUsage    float64
	PercentOfCost     float64
	GHGEmissions      float64
	EUI               float64
	AverageDailyUsage float64
	Rate              float64
	Formatted         string
}

// GHGSummary rolls emissions up across fuels.
type GHGSummary struct {
	TotalEmissions float64
	Intensity      float64
	Vehicles       float64
	Barrels        float64
	Railcars       float64
	Formatted      string
}

// Summary is the aggregate of every fuel over one window.
type Summary struct {
	Window    period.Range
	Days      int
	Fuels     []FuelSummary
	TotalKBtu float64
	TotalCost float64
	EUI       float64
	GHG       GHGSummary
}

// Fuel returns the summary of f, zeroed when the building has no such fuel.
func (s Summary) Fuel(f FuelType) FuelSummary {
	for _, fs := range s.Fuels {
		if fs.Fuel == f {
			return fs
		}
	}
	return FuelSummary{Fuel: f}
}

// Summarize aggregates entries inside window. Monthly rows stand in for fuels that have
// no reads or deliveries in the window.
func Summarize(b building.Building, utilities []Utility, monthly []MonthlyUtility, window period.Range) Summary {
	var entries []Entry
	covered := make(map[FuelType]bool)
	for _, u := range utilities {
		for _, e := range FilterEntries(u.Entries(), window) {
			entries = append(entries, e)
			covered[e.Fuel] = true
		}
	}
	for _, m := range FilterMonthly(monthly, window) {
		if covered[m.Fuel()] {
			continue
		}
		entries = append(entries, m.Entry())
	}
	return summarizeEntries(b, entries, monthly, window)
}

func summarizeEntries(b building.Building, entries []Entry, monthly []MonthlyUtility, window period.Range) Summary {
	s := Summary{Window: window, Days: window.Days()}
	byFuel := make(map[FuelType]*FuelSummary)
	for _, e := range entries {
		fs, ok := byFuel[e.Fuel]
		if !ok {
			fs = &FuelSummary{Fuel: e.Fuel}
			byFuel[e.Fuel] = fs
		}
		fs.Usage += e.Usage
		fs.Cost += e.Cost
		if e.Fuel == Electric {
			fs.Demand += e.Demand
			fs.DemandCost += e.DemandCost
		}
	}

	// rates are averaged over the calendar years the window touches
	spans, _ := period.Frame(period.Config{Mode: period.ModeCalendarYear}, window)
	for _, fuel := range Fuels {
		fs, ok := byFuel[fuel]
		if !ok {
			continue
		}
		fs.KBtu = fs.Usage * fuel.KBtuFactor()
		fs.GHGEmissions = fs.Usage * GHGFactor(b, fuel)
		if b.SquareFootage > 0 {
			fs.EUI = fs.KBtu / b.SquareFootage
		}
		if s.Days > 0 {
			fs.AverageDailyUsage = fs.Usage / float64(s.Days)
		}
		fs.Rate = CalculateAverageRate(b, monthly, fuel, spans)
		fs.Formatted = field.FormatNumber(fs.Usage, 2) + " " + fuel.Unit()
		s.TotalKBtu += fs.KBtu
		s.TotalCost += fs.Cost
		s.GHG.TotalEmissions += fs.GHGEmissions
		s.Fuels = append(s.Fuels, *fs)
	}
	for i := range s.Fuels {
		fs := &s.Fuels[i]
		if s.TotalKBtu > 0 && fs.Fuel.IsEnergy() {
			fs.PercentOfUsage = fs.KBtu / s.TotalKBtu * 100
		}
		if s.TotalCost > 0 {
			fs.PercentOfCost = fs.Cost / s.TotalCost * 100
		}
	}
	if b.SquareFootage > 0 {
		s.EUI = s.TotalKBtu / b.SquareFootage
		s.GHG.Intensity = s.GHG.TotalEmissions / b.SquareFootage
	}
	s.GHG.Vehicles = s.GHG.TotalEmissions / tonsPerVehicleYear
	s.GHG.Barrels = s.GHG.TotalEmissions / tonsPerBarrel
	s.GHG.Railcars = s.GHG.TotalEmissions / tonsPerRailcar
	s.GHG.Formatted = field.FormatMeasure(s.GHG.TotalEmissions, field.Format{Unit: field.UnitGHG})
	return s
}

// GHGFactor returns the building's emission factor override for fuel or the default.
func GHGFactor(b building.Building, fuel FuelType) float64 {
	if v, ok := b.GHGFactors[fuel.GHGFactorKey()]; ok && v >= 0 {
		return v
	}
	if v, ok := b.GHGFactors[string(fuel)]; ok && v >= 0 {
		return v
	}
	return fuel.DefaultGHGFactor()
}

// Doc exposes the summary for dot-path resolution, e.g. "electric.cost" or "ghg.totalEmissions".
func (s Summary) Doc() field.Doc {
	doc := field.Doc{}
	rates := map[string]any{}
	for _, fuel := range Fuels {
		fs := s.Fuel(fuel)
		entry := map[string]any{
			"usage":             fs.Usage,
			"cost":              fs.Cost,
			"totalCost":         fs.Cost,
			"demand":            fs.Demand,
			"demandCost":        fs.DemandCost,
			"kbtu":              fs.KBtu,
			"percentOfUsage":    fs.PercentOfUsage,
			"percentOfCost":     fs.PercentOfCost,
			"ghgEmissions":      fs.GHGEmissions,
			"eui":               fs.EUI,
			"averageDailyUsage": fs.AverageDailyUsage,
			"rate":              fs.Rate,
			"formatted":         fs.Formatted,
			"unit":              fuel.Unit(),
		}
		doc[string(fuel)] = entry
		rates[string(fuel)] = fs.Rate
	}
	doc["electricity"] = doc[string(Electric)]
	doc["rates"] = rates
	doc["total"] = map[string]any{
		"kbtu":      s.TotalKBtu,
		"cost":      s.TotalCost,
		"totalCost": s.TotalCost,
		"eui":       s.EUI,
	}
	doc["ghg"] = map[string]any{
		"totalEmissions": s.GHG.TotalEmissions,
		"ghgEmissions":   s.GHG.TotalEmissions,
		"ghgIntensity":   s.GHG.Intensity,
		"vehicles":       s.GHG.Vehicles,
		"barrels":        s.GHG.Barrels,
		"railcars":       s.GHG.Railcars,
		"formatted":      s.GHG.Formatted,
	}
	doc["days"] = s.Days
	return doc
}
