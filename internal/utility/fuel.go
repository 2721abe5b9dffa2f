// Package utility aggregates meter reads, deliveries and monthly utility rows
// into per-fuel usage, cost, demand, rate and emission figures.
package utility

import "strings"

// FuelType identifies a utility commodity.
type FuelType string

const (
	Electric   FuelType = "electric"
	NaturalGas FuelType = "naturalGas"
	Water      FuelType = "water"
	Steam      FuelType = "steam"
	FuelOil2   FuelType = "fuelOil2"
	FuelOil4   FuelType = "fuelOil4"
	FuelOil56  FuelType = "fuelOil56"
	Diesel     FuelType = "diesel"
	Other      FuelType = "other"
)

// Fuels lists every fuel in display order.
var Fuels = []FuelType{Electric, NaturalGas, Water, Steam, FuelOil2, FuelOil4, FuelOil56, Diesel, Other}

type fuelSpec struct {
	label string
	unit  string
	// kbtu per usage unit; zero excludes the fuel from energy totals.
	kbtu float64
	// metric tons CO2e per usage unit.
	ghg      float64
	delivery bool
}

var fuelSpecs = map[FuelType]fuelSpec{
	Electric:   {label: "Electricity", unit: "kWh", kbtu: 3.412, ghg: 0.000744},
	NaturalGas: {label: "Natural Gas", unit: "therms", kbtu: 100, ghg: 0.0053},
	Water:      {label: "Water", unit: "kGal"},
	Steam:      {label: "Steam", unit: "Mlb", kbtu: 1194, ghg: 0.0793},
	FuelOil2:   {label: "Fuel Oil #2", unit: "gallons", kbtu: 138.6, ghg: 0.01021, delivery: true},
	FuelOil4:   {label: "Fuel Oil #4", unit: "gallons", kbtu: 146, ghg: 0.01096, delivery: true},
	FuelOil56:  {label: "Fuel Oil #5 & 6", unit: "gallons", kbtu: 150, ghg: 0.01127, delivery: true},
	Diesel:     {label: "Diesel", unit: "gallons", kbtu: 138.6, ghg: 0.01021, delivery: true},
	Other:      {label: "Other", unit: "kBtu", kbtu: 1},
}

var fuelAliases = map[string]FuelType{
	"electric":     Electric,
	"electricity":  Electric,
	"naturalgas":   NaturalGas,
	"natural-gas":  NaturalGas,
	"natural_gas":  NaturalGas,
	"gas":          NaturalGas,
	"water":        Water,
	"steam":        Steam,
	"fueloil2":     FuelOil2,
	"fuel-oil-2":   FuelOil2,
	"fueloil4":     FuelOil4,
	"fuel-oil-4":   FuelOil4,
	"fueloil56":    FuelOil56,
	"fuel-oil-5-6": FuelOil56,
	"fuel-oil-56":  FuelOil56,
	"diesel":       Diesel,
	"other":        Other,
}

// ParseFuel normalises the fuel keys found in utility documents. Unknown keys map to Other.
func ParseFuel(raw string) FuelType {
	if f, ok := fuelAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return f
	}
	return Other
}

// Label returns the display name.
func (f FuelType) Label() string { return fuelSpecs[f].label }

// Unit returns the usage unit.
func (f FuelType) Unit() string { return fuelSpecs[f].unit }

// KBtuFactor converts one usage unit to kBtu.
func (f FuelType) KBtuFactor() float64 { return fuelSpecs[f].kbtu }

// DefaultGHGFactor is the metric tons of CO2e per usage unit used when the building carries no override.
func (f FuelType) DefaultGHGFactor() float64 { return fuelSpecs[f].ghg }

// IsDelivery reports whether the fuel is recorded as dated deliveries rather than meter reads.
func (f FuelType) IsDelivery() bool { return fuelSpecs[f].delivery }

// IsEnergy reports whether the fuel counts towards energy totals and percentages.
func (f FuelType) IsEnergy() bool { return fuelSpecs[f].kbtu > 0 }

// RateKey is the fieldsEdited key marking a manually entered rate.
func (f FuelType) RateKey() string { return string(f) + "Rate" }

// GHGFactorKey is the key of a building's emission factor override.
func (f FuelType) GHGFactorKey() string { return string(f) + "GHGFactor" }
