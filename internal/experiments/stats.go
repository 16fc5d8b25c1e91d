package experiments

import "math"

// MetricResult is one already-aggregated batch of observations for a
// variant: how many users were in it and what fraction converted.
type MetricResult struct {
	VariantID      string  `json:"variant_id"`
	MetricID       string  `json:"metric_id,omitempty"`
	SampleSize     int     `json:"sample_size"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Significance approximates the two-sided p-value of the difference in
// conversion rate between a control group and a variant group using a
// pooled two-proportion z-test. It averages the conversion rates of the
// supplied batches unweighted before pooling, which mis-weights
// unequal-sized batches; that matches how the dashboards have always read
// and is good enough for a directional readout, not for a regulated
// experimentation platform.
//
// Degenerate input (an empty group, zero samples, zero standard error)
// returns 0 rather than NaN or a panic: no data means no evidence.
func Significance(control, variant []MetricResult) float64 {
	controlRate, controlN := summarize(control)
	variantRate, variantN := summarize(variant)
	if controlN == 0 || variantN == 0 {
		return 0
	}

	n1, n2 := float64(controlN), float64(variantN)
	pooled := (controlRate*n1 + variantRate*n2) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return 0
	}

	z := math.Abs(variantRate-controlRate) / se
	return 2 * (1 - normalCDF(z))
}

// summarize reduces batches to (mean rate, total samples).
func summarize(results []MetricResult) (rate float64, samples int) {
	if len(results) == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range results {
		sum += r.ConversionRate
		samples += r.SampleSize
	}
	return sum / float64(len(results)), samples
}

// normalCDF is the standard normal CDF via the Abramowitz–Stegun 7.1.26
// rational approximation of erf (max error ~1.5e-7), which is what the
// original web client shipped and plenty for dashboard-grade p-values.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + erfApprox(z/math.Sqrt2))
}

func erfApprox(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}

	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	t := 1 / (1 + p*x)
	y := 1 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)
	return sign * y
}
