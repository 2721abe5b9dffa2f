package building

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
	"buildingName": "Hall of Records",
	"buildingUse": "office",
	"squareFeet": 10000,
	"location": {"zipCode": "10007"},
	"utilityIds": ["64b7f0c2a1b2c3d4e5f60718", ""],
	"fieldsEdited": ["electricRate"],
	"rates": {"electric": 0.21, "naturalGas": "1.05"},
	"benchmark": {"portfolioManagerScore": 72},
	"locations": [{"usetype": "office", "area": 1000}, "junk"]
}`

func TestDecodeLiftsTypedFields(t *testing.T) {
	b, err := Decode("b1", []byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "Hall of Records", b.Name)
	assert.Equal(t, "office", b.UseType)
	assert.Equal(t, "10007", b.ZipCode)
	assert.Equal(t, float64(10000), b.SquareFootage)
	assert.Equal(t, float64(72), b.PortfolioManagerScore)
	assert.Equal(t, []string{"64b7f0c2a1b2c3d4e5f60718"}, b.UtilityIDs)
	assert.InDelta(t, 1.05, b.Rates["naturalGas"], 1e-9)
	assert.True(t, b.Edited("ElectricRate"))
	assert.Len(t, b.Rows("locations"), 1)
	require.NoError(t, b.RequireBenchmarkData())
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode("b1", []byte("{"))
	require.Error(t, err)
}

func TestRequireBenchmarkData(t *testing.T) {
	b := FromDoc("b2", nil)
	require.ErrorIs(t, b.RequireBenchmarkData(), ErrMissingBenchmarkData)
	assert.Nil(t, b.Rows("locations"))
}
