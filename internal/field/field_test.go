package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleBuilding() Doc {
	return Doc{
		"buildingName": "Hall of Records",
		"info": map[string]any{
			"yearBuilt": float64(1931),
			"open247":   true,
			"floors":    []any{map[string]any{"name": "Basement"}, map[string]any{"name": "Lobby"}},
		},
		"benchmark": map[string]any{"pmScore": nil},
	}
}

func TestParsePathRejectsEmptySegments(t *testing.T) {
	_, err := ParsePath("")
	require.ErrorIs(t, err, ErrEmptyPath)
	_, err = ParsePath("info..yearBuilt")
	require.ErrorIs(t, err, ErrEmptySegment)

	p, err := ParsePath(" info.yearBuilt ")
	require.NoError(t, err)
	require.Equal(t, Path{"info", "yearBuilt"}, p)
	require.Equal(t, "info.yearBuilt", p.String())
	require.Equal(t, "yearBuilt", p.Last())
}

func TestResolveWalksNestedContainers(t *testing.T) {
	doc := sampleBuilding()

	val, ok := Lookup(doc, "info.yearBuilt")
	require.True(t, ok)
	require.Equal(t, float64(1931), val)

	val, ok = Lookup(doc, "info.floors.1.name")
	require.True(t, ok)
	require.Equal(t, "Lobby", val)

	for _, missing := range []string{"info.unknown", "info.floors.7.name", "buildingName.length", "benchmark.pmScore", "info.floors.x"} {
		_, ok := Lookup(doc, missing)
		require.False(t, ok, missing)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	doc := sampleBuilding()
	p := Path{"info", "floors", "0", "name"}
	first, ok1 := Resolve(doc, p)
	second, ok2 := Resolve(doc, p)
	require.Equal(t, ok1, ok2)
	require.Equal(t, first, second)
	require.Equal(t, "Basement", first)
}

func TestTrimTarget(t *testing.T) {
	require.Equal(t, Path{"electric", "cost"}, Path{"utility", "electric", "cost"}.TrimTarget("utility"))
	require.Equal(t, Path{"utility"}, Path{"utility"}.TrimTarget("utility"))
	require.Equal(t, Path{"info", "yearBuilt"}, Path{"info", "yearBuilt"}.TrimTarget("utility"))
}

func TestLabelFor(t *testing.T) {
	cases := map[string]string{
		"totalUsage":                      "Total Usage",
		"info.yearBuilt":                  "Year Built",
		"info.open247":                    "Open24/7",
		"usetype":                         "Use Type",
		"electric.electricPercentofTotal": "Electric % of Total",
		"EUI":                             "EUI",
		"electric.usage":                  "Electric Usage",
		"naturalGas.usage":                "Natural Gas Usage",
		"rates.electric":                  "Electric Rate",
		"ghg.totalEmissions":              "Ghg Total Emissions",
		"degree.hdd":                      "Hdd",
	}
	for in, want := range cases {
		require.Equal(t, want, LabelFor(in, nil), in)
	}
	custom := map[string]string{"info.yearBuilt": "Constructed", "floors": "Stories"}
	require.Equal(t, "Constructed", LabelFor("info.yearBuilt", custom))
	require.Equal(t, "Stories", LabelFor("info.floors", custom))
}

func TestLabelIfShown(t *testing.T) {
	require.Equal(t, "Year Built: ", LabelIfShown("Year Built", DisplayLabeled))
	require.Equal(t, "", LabelIfShown("Year Built", DisplayValueOnly))
	require.Equal(t, DisplayValueOnly, ParseDisplayMode("valueOnly"))
	require.Equal(t, DisplayLabeled, ParseDisplayMode(""))
}

func TestFormatValuePlaceholders(t *testing.T) {
	for _, v := range []any{nil, 0, float64(0), "", math.NaN()} {
		require.Equal(t, Placeholder, FormatValue(v, Format{}))
		require.Equal(t, "0", FormatValue(v, Format{Total: true}))
	}
}

func TestFormatMeasure(t *testing.T) {
	require.Equal(t, "1,500", FormatNumber(1500, 2))
	require.Equal(t, "37.2 Metric tons of CO2e", FormatMeasure(50000*0.000744, Format{Unit: UnitGHG}))
	require.Equal(t, "$1,234.50", FormatValue(1234.5, FormatFor("utility.electric.cost")))
	require.Equal(t, "12.5%", FormatValue(12.5, FormatFor("percentOfCost")))
	require.Equal(t, "2,000 ft²", FormatValue(2000, FormatFor("area")))
	require.Equal(t, "88", FormatValue(87.6, FormatFor("benchmark.portfolioManagerScore")))
	require.Equal(t, "Yes", FormatValue(true, Format{}))
	require.Equal(t, "a, b", FormatValue([]any{"a", "", "b"}, Format{}))
}

func TestParseNumber(t *testing.T) {
	n, ok := ParseNumber("$1,234.50")
	require.True(t, ok)
	require.InDelta(t, 1234.5, n, 1e-9)

	n, ok = ToFloat("2,000")
	require.True(t, ok)
	require.Equal(t, float64(2000), n)

	_, ok = ParseNumber("office")
	require.False(t, ok)
}
