package utility

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/period"
)

// BucketRate returns cost/usage for fuel over span from monthly rows. A manually
// edited building rate takes precedence. The result is never negative and is zero
// when there is no usage.
func BucketRate(b building.Building, monthly []MonthlyUtility, fuel FuelType, span period.Span) float64 {
	if manual, ok := manualRate(b, fuel); ok {
		return manual
	}
	window := span.Range()
	cost := decimal.Zero
	usage := decimal.Zero
	for _, m := range monthly {
		if m.Fuel() != fuel || !window.Contains(m.RepresentativeDate()) || !finite(m.Cost, m.Usage) {
			continue
		}
		cost = cost.Add(decimal.NewFromFloat(m.Cost))
		usage = usage.Add(decimal.NewFromFloat(m.Usage))
	}
	if !usage.IsPositive() {
		return 0
	}
	rate := cost.DivRound(usage, 6)
	if rate.IsNegative() {
		return 0
	}
	return rate.InexactFloat64()
}

// CalculateAverageRate averages the per-span rates of fuel over the spans that carry
// usage or a manual rate.
func CalculateAverageRate(b building.Building, monthly []MonthlyUtility, fuel FuelType, spans []period.Span) float64 {
	if manual, ok := manualRate(b, fuel); ok {
		return manual
	}
	sum := decimal.Zero
	n := 0
	for _, span := range spans {
		rate := BucketRate(b, monthly, fuel, span)
		if rate == 0 {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(rate))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum.DivRound(decimal.NewFromInt(int64(n)), 6).InexactFloat64()
}

func manualRate(b building.Building, fuel FuelType) (float64, bool) {
	if !b.Edited(fuel.RateKey()) {
		return 0, false
	}
	v, ok := b.Rates[string(fuel)]
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
