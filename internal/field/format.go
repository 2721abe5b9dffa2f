package field

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is rendered for empty, zero or non-numeric values.
const Placeholder = "-"

// Units used by the formatter registry.
const (
	UnitSquareFeet = "ft²"
	UnitEUI        = "kBtu/ft²"
	UnitGHG        = "Metric tons of CO2e"
	UnitGHGPerSqFt = "Metric tons of CO2e/ft²"
	UnitPercent    = "%"
)

// Format describes how a value is rendered.
type Format struct {
	Unit     string
	Currency bool
	// Decimals is the maximum number of fraction digits; zero means two.
	Decimals int
	// Integer rounds to whole numbers.
	Integer bool
	// Total marks total/sum cells, where empty values render as "0" instead of the placeholder.
	Total bool
}

// formats keyed by the last path segment of a field reference.
var formats = map[string]Format{
	"area":                  {Unit: UnitSquareFeet},
	"floorArea":             {Unit: UnitSquareFeet},
	"squareFeet":            {Unit: UnitSquareFeet},
	"squareFootage":         {Unit: UnitSquareFeet},
	"grossFloorArea":        {Unit: UnitSquareFeet},
	"eui":                   {Unit: UnitEUI},
	"siteEui":               {Unit: UnitEUI},
	"sourceEui":             {Unit: UnitEUI},
	"ghgEmissions":          {Unit: UnitGHG},
	"totalEmissions":        {Unit: UnitGHG},
	"ghgIntensity":          {Unit: UnitGHGPerSqFt, Decimals: 4},
	"cost":                  {Currency: true},
	"totalCost":             {Currency: true},
	"demandCost":            {Currency: true},
	"annualCost":            {Currency: true},
	"annualSavings":         {Currency: true},
	"projectCost":           {Currency: true},
	"incentive":             {Currency: true},
	"rate":                  {Currency: true, Decimals: 4},
	"percentOfUsage":        {Unit: UnitPercent},
	"percentOfCost":         {Unit: UnitPercent},
	"percentOfTotalArea":    {Unit: UnitPercent},
	"percentOfBuilding":     {Unit: UnitPercent},
	"electricSavings":       {Unit: "kWh"},
	"gasSavings":            {Unit: "therms"},
	"energySavings":         {Unit: "kBtu"},
	"simplePayback":         {Unit: "years", Decimals: 1},
	"portfolioManagerScore": {Integer: true},
	"energyStarScore":       {Integer: true},
}

// FormatFor returns the registered format for a field reference, keyed by its last
// segment. Members of a "rates" map use the rate format.
func FormatFor(ref string) Format {
	seg := ref
	if i := strings.LastIndex(ref, "."); i >= 0 {
		seg = ref[i+1:]
		if parent := ref[:i]; parent == "rates" || strings.HasSuffix(parent, ".rates") {
			seg = "rate"
		}
	}
	if f, ok := formats[seg]; ok {
		return f
	}
	return Format{}
}

// IsEmpty reports whether v should render as the placeholder: nil, "", 0 or NaN.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	if n, ok := numeric(v); ok {
		return n == 0 || math.IsNaN(n) || math.IsInf(n, 0)
	}
	return false
}

// FormatValue renders v according to f.
func FormatValue(v any, f Format) string {
	if IsEmpty(v) {
		if f.Total {
			return "0"
		}
		return Placeholder
	}
	if n, ok := numeric(v); ok {
		return FormatMeasure(n, f)
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case time.Time:
		return val.Format("01/02/2006")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if IsEmpty(item) {
				continue
			}
			parts = append(parts, FormatValue(item, Format{}))
		}
		if len(parts) == 0 {
			return Placeholder
		}
		return strings.Join(parts, ", ")
	case []string:
		if len(val) == 0 {
			return Placeholder
		}
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// FormatMeasure renders a number with separators, currency sign and unit.
func FormatMeasure(n float64, f Format) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		n = 0
	}
	if f.Currency {
		return FormatCurrency(n, f.Decimals)
	}
	decimals := f.Decimals
	if decimals == 0 {
		decimals = 2
	}
	if f.Integer {
		decimals = 0
	}
	s := FormatNumber(n, decimals)
	if f.Unit == "" {
		return s
	}
	if f.Unit == UnitPercent {
		return s + UnitPercent
	}
	return s + " " + f.Unit
}

// FormatNumber renders n with English thousands separators and at most decimals fraction digits.
func FormatNumber(n float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	p := message.NewPrinter(language.English)
	return p.Sprint(number.Decimal(n, number.MaxFractionDigits(decimals)))
}

// FormatCurrency renders n as dollars rounded half-up to cents, or to decimals when larger.
func FormatCurrency(n float64, decimals int) string {
	if decimals < 2 {
		decimals = 2
	}
	d := decimal.NewFromFloat(n).Round(int32(decimals))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	p := message.NewPrinter(language.English)
	body := p.Sprint(number.Decimal(d.InexactFloat64(), number.MinFractionDigits(2), number.MaxFractionDigits(decimals)))
	return sign + "$" + body
}

// ToFloat converts JSON-ish numeric values, including strings carrying separators
// or a leading "$", to a float64.
func ToFloat(v any) (float64, bool) {
	if n, ok := numeric(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		return ParseNumber(s)
	}
	return 0, false
}

// ParseNumber parses s after stripping "$", thousands separators and surrounding space.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "-$") {
		s = "-" + strings.TrimPrefix(s, "-$")
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		n, err := val.Float64()
		return n, err == nil
	case decimal.Decimal:
		return val.InexactFloat64(), true
	default:
		return 0, false
	}
}
