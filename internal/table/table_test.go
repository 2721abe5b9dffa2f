package table

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildsight/buildsight/internal/building"
	"github.com/buildsight/buildsight/internal/enduse"
	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/internal/utility"
)

type stubWeather struct{ calls int32 }

func (s *stubWeather) DegreeDays(_ context.Context, _ building.Building, span period.Span) (float64, float64) {
	atomic.AddInt32(&s.calls, 1)
	return float64(span.Months) * 100, float64(span.Months) * 10
}

type stubImages struct{}

func (stubImages) Timestamp(_ context.Context, url string) (time.Time, error) {
	if strings.Contains(url, "broken") {
		return time.Time{}, errors.New("no exif")
	}
	return time.Date(2023, 4, 5, 14, 30, 0, 0, time.UTC), nil
}

func generate(t *testing.T, g *Generator, target Target, rows []field.Doc, fields []string, opts Options) Fragment {
	t.Helper()
	frag, err := g.Generate(context.Background(), target, rows, fields, opts)
	require.NoError(t, err)
	return frag
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("equipmentBlock")
	require.NoError(t, err)
	assert.Equal(t, TargetEquipment, target)

	target, err = ParseTarget("")
	require.NoError(t, err)
	assert.Equal(t, TargetBuilding, target)

	_, err = ParseTarget("spaceship")
	require.ErrorIs(t, err, ErrUnknownTarget)
	assert.False(t, TargetChart.Tabular())
}

func TestLocationDetailsTotalsRow(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	rows := []field.Doc{
		{"usetype": "office", "area": float64(1000)},
		{"usetype": "retail", "area": float64(500)},
	}
	frag := generate(t, g, TargetLocation, rows, []string{"location.details.area"}, Options{})
	require.Len(t, frag.Tables, 1)
	tbl := frag.Tables[0]

	assert.Equal(t, []string{"Use Type", "Area"}, tbl.Header)
	assert.Equal(t, []string{"Office", "1000 ft²"}, tbl.Rows[0])
	assert.Equal(t, []string{"Total", "1500 ft²"}, tbl.Totals)
	assert.Contains(t, frag.Markup, "<td><strong>1500 ft²</strong></td>")
}

func TestLocationSummaryGroupsAndSorts(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	rows := []field.Doc{
		{"usetype": "retail", "area": float64(500), "floor": float64(2)},
		{"usetype": "office", "area": float64(1000), "floor": float64(10)},
		{"usetype": "office", "area": float64(500), "floor": float64(2)},
	}
	frag := generate(t, g, TargetLocation, rows, []string{"location.summary.usetype", "location.summary.floor"}, Options{})
	require.Len(t, frag.Tables, 2)

	byUse := frag.Tables[0]
	assert.Equal(t, []string{"Office", "1,500 ft²", "75%"}, byUse.Rows[0])
	assert.Equal(t, []string{"Retail", "500 ft²", "25%"}, byUse.Rows[1])
	assert.Equal(t, []string{"Total", "2,000 ft²", "100%"}, byUse.Totals)

	byFloor := frag.Tables[1]
	assert.Equal(t, "Floor", byFloor.Header[0])
	assert.Equal(t, "2", byFloor.Rows[0][0])
	assert.Equal(t, "10", byFloor.Rows[1][0])
}

func TestTotalsRequireEveryCellNumeric(t *testing.T) {
	rows := [][]string{
		{"a", "$1,000.50", "12 kWh", "1.5", "x"},
		{"b", "$2.25", "3 kWh", "-", "y"},
	}
	assert.Equal(t, []string{"Total", "$1,002.75", "15 kWh", "-", "-"}, Totals(rows, 5))
	assert.Equal(t, "-", totalColumn([][]string{{"", "1 kWh"}, {"", "2 therms"}}, 1))
	assert.Equal(t, "3.5%", totalColumn([][]string{{"", "1.5%"}, {"", "2%"}, {"", "0"}}, 1))
	assert.Nil(t, Totals(nil, 3))
}

func TestBenchmarkIsVertical(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	doc := field.Doc{"siteEui": 85.25, "energyStarScore": float64(71), "yearBuilt": nil}
	frag := generate(t, g, TargetBenchmark, []field.Doc{doc}, []string{"benchmark.siteEui", "benchmark.energyStarScore", "benchmark.yearBuilt"}, Options{
		CustomLabels: map[string]string{"energyStarScore": "ENERGY STAR Score"},
	})
	require.Len(t, frag.Tables, 1)
	assert.Nil(t, frag.Tables[0].Header)
	assert.Equal(t, [][]string{
		{"Site Eui", "85.25 kBtu/ft²"},
		{"ENERGY STAR Score", "71"},
		{"Year Built", "-"},
	}, frag.Tables[0].Rows)

	empty := generate(t, g, TargetBenchmark, nil, []string{"benchmark.siteEui"}, Options{})
	assert.True(t, empty.Empty())
}

func fiscalFixture(t *testing.T) (building.Building, utility.Result) {
	t.Helper()
	b := building.FromDoc("b1", field.Doc{
		"squareFeet": float64(1000),
		"location":   map[string]any{"zipCode": "10007"},
		"benchmark":  map[string]any{"portfolioManagerScore": float64(80)},
	})
	window, err := period.NewRange(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var monthly []utility.MonthlyUtility
	for _, y := range []int{2022, 2023} {
		for m := 1; m <= 12; m++ {
			monthly = append(monthly, utility.MonthlyUtility{Year: y, Month: m, UtilType: "electric", Usage: 100, Cost: 15})
		}
	}
	return b, utility.Result{Window: window, Monthly: monthly}
}

func TestUtilityTablePostProcessing(t *testing.T) {
	weather := &stubWeather{}
	g := NewGenerator(weather, nil, nil)
	b, res := fiscalFixture(t)
	frag := generate(t, g, TargetUtility, nil, []string{
		"utility.portfolioManagerScore",
		"utility.rates.electric",
		"utility.degree.hdd",
		"utility.degree.cdd",
		"utility.electric.usage",
	}, Options{
		Building:  b,
		Utilities: res,
		Period:    period.Config{Mode: period.ModeFiscalYear, StartMonth: time.July, EndMonth: time.June},
	})
	require.Len(t, frag.Tables, 1)
	tbl := frag.Tables[0]

	assert.Equal(t, []string{"", "FY22", "FY23", "FY24", "Average"}, tbl.Header)
	assert.Equal(t, []string{"Portfolio Manager Score", "40", "80", "40", "53"}, tbl.Rows[0])
	assert.Equal(t, []string{"Electric Rate", "$0.15", "$0.15", "$0.15", "$0.15"}, tbl.Rows[1])
	assert.Equal(t, []string{"Hdd", "600", "1,200", "600", "800"}, tbl.Rows[2])
	assert.Equal(t, []string{"Cdd", "60", "120", "60", "80"}, tbl.Rows[3])
	assert.Equal(t, []string{"Electric Usage", "600", "1,200", "600", "800"}, tbl.Rows[4])
	assert.Equal(t, int32(3), weather.calls)
}

func TestUtilityTableSinglePeriodHasNoAverage(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	b, res := fiscalFixture(t)
	frag := generate(t, g, TargetOverview, nil, []string{"overview.electric.cost"}, Options{
		Building:  b,
		Utilities: res,
		Period:    period.Config{Mode: period.ModeCustom},
	})
	require.Len(t, frag.Tables, 1)
	assert.Equal(t, []string{"", "Jan 2022 - Dec 2023"}, frag.Tables[0].Header)
	assert.Equal(t, []string{"Electric Cost", "$360.00"}, frag.Tables[0].Rows[0])
}

func TestUtilityTableWithoutDataIsEmpty(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	_, res := fiscalFixture(t)
	res.Monthly = nil
	fields := []string{"utility.electric.usage", "utility.naturalGas.usage", "utility.electric.unit"}

	frag := generate(t, g, TargetUtility, nil, fields, Options{Utilities: res})
	assert.Equal(t, "", frag.Markup)
	assert.Empty(t, frag.Tables)

	scored := building.FromDoc("b1", field.Doc{"benchmark": map[string]any{"portfolioManagerScore": float64(80)}})
	frag = generate(t, g, TargetOverview, nil, []string{"overview.portfolioManagerScore"}, Options{Building: scored, Utilities: res})
	require.Len(t, frag.Tables, 1)
	assert.Equal(t, []string{"Portfolio Manager Score", "80", "80", "80"}, frag.Tables[0].Rows[0])
}

func TestOperationCarriesValuesForward(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	schedule := field.Doc{
		"name": "Office Occupancy",
		"type": "occupancy",
		"schedule": map[string]any{
			"monday": []any{float64(0), nil, float64(50), nil, nil, float64(90)},
		},
	}
	hvac := field.Doc{"name": "HVAC", "type": "hvac"}
	frag := generate(t, g, TargetOperation, []field.Doc{schedule, hvac}, []string{"operation.occupancy"}, Options{})
	require.Len(t, frag.Tables, 1)
	tbl := frag.Tables[0]

	assert.Equal(t, "Office Occupancy", tbl.Title)
	assert.Equal(t, []string{"Hour", "Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}, tbl.Header)
	require.Len(t, tbl.Rows, 24)
	mon := func(h int) string { return tbl.Rows[h][2] }
	assert.Equal(t, "0", mon(0))
	assert.Equal(t, "0", mon(1))
	assert.Equal(t, "50%", mon(2))
	assert.Equal(t, "50%", mon(4))
	assert.Equal(t, "90%", mon(23))
	assert.Equal(t, "-", tbl.Rows[5][1])
}

func TestConstructionAllowList(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	rows := []field.Doc{
		{"name": "Brick Wall", "application": "wall", "rValue": 11.5, "image": "https://img.example.com/wall.jpg"},
		{"name": "Door", "application": "door", "rValue": float64(2)},
		{"name": "Slab", "application": "foundation", "rValue": float64(5)},
	}
	frag := generate(t, g, TargetConstruction, rows, []string{"construction.name", "construction.rValue"}, Options{ShowImages: true})
	require.Len(t, frag.Tables, 1)
	assert.Len(t, frag.Tables[0].Rows, 2)
	assert.True(t, strings.HasPrefix(frag.Markup, `<div class="report-images">`))
	assert.Contains(t, frag.Markup, `src="https://img.example.com/wall.jpg"`)
	assert.NotContains(t, frag.Markup, "Door")
}

func TestEquipmentFilterAndInputPower(t *testing.T) {
	g := NewGenerator(nil, stubImages{}, nil)
	rows := []field.Doc{
		{"name": "T8 Troffer", "category": "lighting", "application": "interior", "technology": "fluorescent",
			"lampInputPower": float64(32), "numberOfLamps": float64(3), "ballastFactor": 0.88,
			"images": []any{"https://img.example.com/t8.jpg", "https://img.example.com/broken.jpg"}},
		{"name": "LED Panel", "category": "lighting", "application": "interior", "technology": "led",
			"lampInputPower": float64(40), "numberOfLamps": float64(1)},
		{"name": "Chiller", "category": "cooling"},
	}
	opts := Options{Equipment: EquipmentFilter{Category: "Lighting", ShowImages: true, ShowTimestamps: true}}
	frag := generate(t, g, TargetEquipment, rows, []string{"equipmentBlock.name", "equipmentBlock.totalInputPower"}, opts)
	require.Len(t, frag.Tables, 1)
	assert.Equal(t, [][]string{{"T8 Troffer", "84.48"}, {"LED Panel", "40"}}, frag.Tables[0].Rows)
	assert.Contains(t, frag.Markup, "T8 Troffer - 04/05/2023 2:30 PM")
	assert.Contains(t, frag.Markup, "<figcaption>T8 Troffer</figcaption>")
	_, touched := rows[0]["totalInputPower"]
	assert.False(t, touched)

	opts.Equipment.Technology = "led"
	frag = generate(t, g, TargetEquipment, rows, []string{"equipmentBlock.name"}, opts)
	assert.Len(t, frag.Tables[0].Rows, 1)
}

func TestContactTable(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	rows := []field.Doc{
		{"firstName": "Ada", "email": "ada@example.com"},
		{"firstName": "Lin"},
	}
	frag := generate(t, g, TargetContact, rows, []string{"contact.firstName", "contact.email"}, Options{})
	require.Len(t, frag.Tables, 1)
	assert.Equal(t, []string{"First Name", "Email"}, frag.Tables[0].Header)
	assert.Equal(t, []string{"Lin", "-"}, frag.Tables[0].Rows[1])

	empty := generate(t, g, TargetContact, nil, []string{"contact.email"}, Options{})
	assert.Equal(t, "", empty.Markup)
}

func TestEndUseTable(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	summary := utility.Summary{Fuels: []utility.FuelSummary{{Fuel: utility.Electric, KBtu: 1000, Cost: 100}}}
	bd := enduse.Breakdown{TotalKBtu: 1000, Shares: enduse.Split("office", summary)}
	frag := generate(t, g, TargetEndUseBreakdown, nil, []string{"endusebreakdown.kbtu", "endusebreakdown.percent"}, Options{EndUse: bd})
	require.Len(t, frag.Tables, 1)
	tbl := frag.Tables[0]
	assert.Equal(t, []string{"End Use", "Energy (kBtu)", "% of Energy"}, tbl.Header)
	assert.Equal(t, []string{"Heating", "50", "5%"}, tbl.Rows[0])
	assert.Equal(t, []string{"Total", "1000", "100%"}, tbl.Totals)

	empty := generate(t, g, TargetEndUseBreakdown, nil, nil, Options{})
	assert.True(t, empty.Empty())
}

func TestGenerateRejectsNonTabularTargets(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	_, err := g.Generate(context.Background(), TargetChart, nil, nil, Options{})
	require.ErrorIs(t, err, ErrUnknownTarget)

	_, err = g.Generate(context.Background(), TargetContact, nil, []string{"contact..email"}, Options{})
	require.ErrorIs(t, err, field.ErrEmptySegment)
}
