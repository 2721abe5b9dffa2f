package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineProducesSVG(t *testing.T) {
	out, err := Line([]float64{1200, 900, 1500}, []string{"Jan", "Feb", "Mar"}, "", Opts{Title: "Electric Usage", Unit: "kWh"})
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, "<svg"))
	assert.Contains(t, s, `aria-labelledby="electric-usage-line-title electric-usage-line-desc"`)
	assert.Contains(t, s, "1.5k kWh")
	assert.Equal(t, 3, strings.Count(s, "<circle"))
}

func TestLineValidatesInput(t *testing.T) {
	_, err := Line(nil, nil, "", Opts{})
	require.ErrorIs(t, err, ErrNoSeries)
	_, err = Line([]float64{1}, []string{"a", "b"}, "", Opts{})
	require.ErrorIs(t, err, ErrLabelMismatch)
	_, err = Line([]float64{1}, []string{"a"}, "", Opts{Width: 20, Height: 20, Padding: 30})
	require.ErrorIs(t, err, ErrViewport)
}

func TestBarsDrawsOneRectPerValue(t *testing.T) {
	out, err := Bars([]Series{
		{Label: "Cost", Values: []float64{10, -5}},
		{Label: "Usage <kWh>", Values: []float64{20, 30}},
	}, []string{"Jan", "Feb"}, Opts{})
	require.NoError(t, err)
	s := string(out)
	// four bars plus two legend swatches
	assert.Equal(t, 6, strings.Count(s, "<rect"))
	assert.Contains(t, s, "Usage &lt;kWh&gt;")
	assert.NotContains(t, s, `height="-`)
}

func TestBarsValidatesInput(t *testing.T) {
	_, err := Bars(nil, []string{"a"}, Opts{})
	require.ErrorIs(t, err, ErrNoSeries)
	_, err = Bars([]Series{{Values: []float64{1}}}, []string{"a", "b"}, Opts{})
	require.ErrorIs(t, err, ErrLabelMismatch)
}
