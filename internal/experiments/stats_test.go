package experiments

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignificanceDetectsClearEffect(t *testing.T) {
	control := []MetricResult{{VariantID: "control", SampleSize: 1000, ConversionRate: 0.10}}
	variant := []MetricResult{{VariantID: "treatment", SampleSize: 1000, ConversionRate: 0.15}}

	p := Significance(control, variant)
	assert.Less(t, p, 0.05, "a 5-point lift at n=1000 per arm should be detectable")
	assert.Greater(t, p, 0.0)
}

func TestSignificanceNoEffect(t *testing.T) {
	control := []MetricResult{{SampleSize: 1000, ConversionRate: 0.10}}
	variant := []MetricResult{{SampleSize: 1000, ConversionRate: 0.10}}

	p := Significance(control, variant)
	assert.InDelta(t, 1.0, p, 1e-6, "identical rates should be maximally unsurprising")
}

func TestSignificanceDegenerateInputs(t *testing.T) {
	healthy := []MetricResult{{SampleSize: 1000, ConversionRate: 0.10}}

	assert.Equal(t, 0.0, Significance(nil, healthy))
	assert.Equal(t, 0.0, Significance(healthy, nil))
	assert.Equal(t, 0.0, Significance(
		[]MetricResult{{SampleSize: 0, ConversionRate: 0.5}},
		healthy,
	))
	// Pooled rate of 0 gives zero standard error.
	assert.Equal(t, 0.0, Significance(
		[]MetricResult{{SampleSize: 100, ConversionRate: 0}},
		[]MetricResult{{SampleSize: 100, ConversionRate: 0}},
	))

	for _, p := range []float64{
		Significance(healthy, healthy),
		Significance(nil, nil),
	} {
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestSignificanceMultipleBatches(t *testing.T) {
	control := []MetricResult{
		{SampleSize: 500, ConversionRate: 0.09},
		{SampleSize: 500, ConversionRate: 0.11},
	}
	variant := []MetricResult{
		{SampleSize: 500, ConversionRate: 0.14},
		{SampleSize: 500, ConversionRate: 0.16},
	}
	p := Significance(control, variant)
	assert.Less(t, p, 0.05)
}

func TestErfApproximation(t *testing.T) {
	// The rational approximation is documented to stay within ~1.5e-7 of
	// the true error function.
	for _, x := range []float64{-3, -1.5, -0.5, 0, 0.25, 1, 2, 3.5} {
		assert.InDelta(t, math.Erf(x), erfApprox(x), 2e-7, "erf(%v)", x)
	}
}

func TestNormalCDFAnchors(t *testing.T) {
	assert.InDelta(t, 0.5, normalCDF(0), 1e-9)
	assert.InDelta(t, 0.97725, normalCDF(2), 1e-4)
	assert.InDelta(t, 0.02275, normalCDF(-2), 1e-4)
}
