package utility

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func year(t *testing.T, y int) period.Range {
	t.Helper()
	r, err := period.NewRange(day(y, time.January, 1), day(y, time.December, 31))
	require.NoError(t, err)
	return r
}

func office() building.Building {
	return building.FromDoc("b1", field.Doc{
		"buildingName": "HQ",
		"squareFeet":   float64(10000),
		"location":     map[string]any{"zipCode": "10007"},
		"utilityIds":   []any{"u1", "u2"},
	})
}

type stubSource struct {
	utilities []Utility
	monthly   []MonthlyUtility
	utilErr   error
	monthErr  error
}

func (s stubSource) UtilitiesByIDs(context.Context, []string) ([]Utility, error) {
	return s.utilities, s.utilErr
}

func (s stubSource) MonthlyUtilities(context.Context, string) ([]MonthlyUtility, error) {
	return s.monthly, s.monthErr
}

type stubWeather struct {
	rows []period.DegreeDays
	err  error
}

func (s stubWeather) DegreeDays(context.Context, string, []int) ([]period.DegreeDays, error) {
	return s.rows, s.err
}

func monthlyReads(fuel FuelType, y int, usage, cost float64) Utility {
	u := Utility{ID: string(fuel), UtilType: string(fuel)}
	for m := time.January; m <= time.December; m++ {
		start := day(y, m, 1)
		u.MeterData = append(u.MeterData, MeterRead{
			StartDate:  start,
			EndDate:    start.AddDate(0, 1, -1),
			TotalUsage: usage,
			TotalCost:  cost,
			Demand:     10,
			DemandCost: 5,
		})
	}
	return u
}

func TestSummarizeGHGRollUp(t *testing.T) {
	b := office()
	elec := monthlyReads(Electric, 2023, 50000.0/12, 500)
	s := Summarize(b, []Utility{elec}, nil, year(t, 2023))

	fs := s.Fuel(Electric)
	assert.InDelta(t, 50000, fs.Usage, 1e-6)
	assert.InDelta(t, 37.2, fs.GHGEmissions, 1e-6)
	assert.InDelta(t, 120, fs.Demand, 1e-9)
	assert.Equal(t, "37.2 Metric tons of CO2e", s.GHG.Formatted)
	assert.InDelta(t, 37.2/10000, s.GHG.Intensity, 1e-12)
	assert.InDelta(t, 37.2/4.6, s.GHG.Vehicles, 1e-9)
	assert.InDelta(t, 50000*3.412/10000, s.EUI, 1e-9)
	assert.InDelta(t, 100, fs.PercentOfUsage, 1e-9)

	v, ok := field.Lookup(s.Doc(), "electricity.ghgEmissions")
	require.True(t, ok)
	assert.InDelta(t, 37.2, v.(float64), 1e-6)
}

func TestSummarizeExcludesWaterFromEnergyPercent(t *testing.T) {
	b := office()
	s := Summarize(b, []Utility{
		monthlyReads(Electric, 2023, 1000, 100),
		monthlyReads(Water, 2023, 50, 100),
	}, nil, year(t, 2023))

	assert.InDelta(t, 100, s.Fuel(Electric).PercentOfUsage, 1e-9)
	assert.Zero(t, s.Fuel(Water).PercentOfUsage)
	assert.InDelta(t, 50, s.Fuel(Water).PercentOfCost, 1e-9)
	assert.Zero(t, s.Fuel(Steam).Usage)
}

func TestSummarizeUsesDeliveryDates(t *testing.T) {
	oil := Utility{UtilType: "fuel-oil-2", Deliveries: []Delivery{
		{DeliveryDate: day(2022, time.December, 30), Quantity: 500, TotalCost: 1000},
		{DeliveryDate: day(2023, time.February, 2), Quantity: 100, TotalCost: 300},
	}}
	s := Summarize(office(), []Utility{oil}, nil, year(t, 2023))
	assert.InDelta(t, 100, s.Fuel(FuelOil2).Usage, 1e-9)
}

func TestSummarizeFallsBackToMonthlyRows(t *testing.T) {
	monthly := []MonthlyUtility{
		{Year: 2023, Month: 1, UtilType: "naturalGas", Usage: 40, Cost: 60},
		{Year: 2023, Month: 2, UtilType: "naturalGas", Usage: 60, Cost: 90},
		{Year: 2022, Month: 2, UtilType: "naturalGas", Usage: 999, Cost: 999},
	}
	s := Summarize(office(), nil, monthly, year(t, 2023))
	gas := s.Fuel(NaturalGas)
	assert.InDelta(t, 100, gas.Usage, 1e-9)
	assert.InDelta(t, 1.5, gas.Rate, 1e-9)
}

func TestSummarizeAveragesRateAcrossYears(t *testing.T) {
	window, err := period.NewRange(day(2022, time.January, 1), day(2023, time.December, 31))
	require.NoError(t, err)
	monthly := []MonthlyUtility{
		{Year: 2022, Month: 6, UtilType: "electric", Usage: 100, Cost: 100},
		{Year: 2023, Month: 6, UtilType: "electric", Usage: 300, Cost: 900},
	}
	s := Summarize(office(), nil, monthly, window)

	elec := s.Fuel(Electric)
	assert.InDelta(t, 400, elec.Usage, 1e-9)
	assert.InDelta(t, 2.0, elec.Rate, 1e-9)
	v, ok := field.Lookup(s.Doc(), "rates.electric")
	require.True(t, ok)
	assert.InDelta(t, 2.0, v.(float64), 1e-9)
}

func TestCalculateAverageRateIsZeroSafe(t *testing.T) {
	b := office()
	spans := []period.Span{{Label: "2023", Start: day(2023, 1, 1), End: day(2023, 12, 31), Months: 12}}
	monthly := []MonthlyUtility{{Year: 2023, Month: 3, UtilType: "electric", Usage: 0, Cost: 50}}

	rate := CalculateAverageRate(b, monthly, Electric, spans)
	assert.Zero(t, rate)
	assert.False(t, math.IsNaN(rate))

	monthly = append(monthly, MonthlyUtility{Year: 2023, Month: 4, UtilType: "electric", Usage: 100, Cost: -500})
	assert.Zero(t, CalculateAverageRate(b, monthly, Electric, spans))
}

func TestCalculateAverageRateAveragesYears(t *testing.T) {
	b := office()
	spans := []period.Span{
		{Label: "2022", Start: day(2022, 1, 1), End: day(2022, 12, 31), Months: 12},
		{Label: "2023", Start: day(2023, 1, 1), End: day(2023, 12, 31), Months: 12},
	}
	monthly := []MonthlyUtility{
		{Year: 2022, Month: 5, UtilType: "electric", Usage: 100, Cost: 10},
		{Year: 2023, Month: 5, UtilType: "electric", Usage: 100, Cost: 30},
	}
	assert.InDelta(t, 0.2, CalculateAverageRate(b, monthly, Electric, spans), 1e-9)
}

func TestManualRateOverridesEveryBucket(t *testing.T) {
	b := building.FromDoc("b1", field.Doc{
		"fieldsEdited": []any{"electricRate"},
		"rates":        map[string]any{"electric": 0.18},
	})
	span := period.Span{Label: "2023", Start: day(2023, 1, 1), End: day(2023, 12, 31), Months: 12}
	monthly := []MonthlyUtility{{Year: 2023, Month: 5, UtilType: "electric", Usage: 100, Cost: 30}}
	assert.InDelta(t, 0.18, BucketRate(b, monthly, Electric, span), 1e-9)
	assert.InDelta(t, 0.18, CalculateAverageRate(b, monthly, Electric, []period.Span{span, span}), 1e-9)
}

func TestGHGFactorOverride(t *testing.T) {
	b := building.FromDoc("b1", field.Doc{"ghgFactors": map[string]any{"electricGHGFactor": 0.0005}})
	assert.InDelta(t, 0.0005, GHGFactor(b, Electric), 1e-12)
	assert.InDelta(t, 0.0053, GHGFactor(b, NaturalGas), 1e-12)
}

func TestGetUtilitiesSwallowsFetchErrors(t *testing.T) {
	agg := NewAggregator(stubSource{utilErr: errors.New("boom"), monthErr: errors.New("down")}, nil, nil)
	res := agg.GetUtilities(context.Background(), office(), year(t, 2023), nil)
	assert.Empty(t, res.Utilities)
	assert.Empty(t, res.Summary.Fuels)
	assert.Equal(t, "0 Metric tons of CO2e", res.Summary.GHG.Formatted)
}

func TestGetUtilitiesPrefersCustomWindow(t *testing.T) {
	src := stubSource{utilities: []Utility{monthlyReads(Electric, 2023, 100, 10)}}
	agg := NewAggregator(src, nil, nil)
	custom, err := period.NewRange(day(2023, 1, 1), day(2023, 3, 31))
	require.NoError(t, err)

	res := agg.GetUtilities(context.Background(), office(), year(t, 2023), &custom)
	assert.Equal(t, custom, res.Window)
	assert.InDelta(t, 300, res.Summary.Fuel(Electric).Usage, 1e-9)
}

func TestDegreeDaysSwallowsLookupErrors(t *testing.T) {
	span := period.Span{Label: "2023", Start: day(2023, 1, 1), End: day(2023, 12, 31), Months: 12}
	agg := NewAggregator(stubSource{}, stubWeather{err: errors.New("no data")}, nil)
	hdd, cdd := agg.DegreeDays(context.Background(), office(), span)
	assert.Zero(t, hdd)
	assert.Zero(t, cdd)

	agg = NewAggregator(stubSource{}, stubWeather{rows: []period.DegreeDays{{Year: 2023, Month: 1, HDD: 900, CDD: 0}, {Year: 2023, Month: 7, HDD: 0, CDD: 300}}}, nil)
	hdd, cdd = agg.DegreeDays(context.Background(), office(), span)
	assert.InDelta(t, 900, hdd, 1e-9)
	assert.InDelta(t, 300, cdd, 1e-9)
}
