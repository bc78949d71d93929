package stats

import "math"

// NormalQuantile returns the standard normal quantile for probability p in (0,1)
// using the Abramowitz-Stegun rational approximation (absolute error < 4.5e-4).
func NormalQuantile(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}
	if p == 0.5 {
		return 0
	}

	const (
		c0 = 2.515517
		c1 = 0.802853
		c2 = 0.010328
		d1 = 1.432788
		d2 = 0.189269
		d3 = 0.001308
	)

	q := p
	if p > 0.5 {
		q = 1 - p
	}
	t := math.Sqrt(-2 * math.Log(q))
	z := t - (c0+c1*t+c2*t*t)/(1+d1*t+d2*t*t+d3*t*t*t)
	if p < 0.5 {
		return -z
	}
	return z
}

// TwoSidedZ returns the critical value for a two-sided interval with the given coverage
func TwoSidedZ(confidence float64) float64 {
	return NormalQuantile(1 - (1-confidence)/2)
}
