package forecast

import (
	"math"

	"btcforecast/pkg/contracts/domain"
)

// levels rebuilds the pre-differencing path of values, which must end at
// anchor. The result is still on the log scale for log transforms.
func levels(values []float64, transform domain.Transform, anchor float64) []float64 {
	if !transform.IsDifferenced() {
		return append([]float64(nil), values...)
	}
	out := make([]float64, len(values))
	level := anchor
	for i := len(values) - 1; i >= 0; i-- {
		out[i] = level
		level -= values[i]
	}
	return out
}

// toPriceScale maps model-scale forecasts back to prices. base is the last
// level before the forecasts start and is only used for differenced series.
func toPriceScale(values []float64, transform domain.Transform, base float64) []float64 {
	out := make([]float64, len(values))
	acc := base
	for i, v := range values {
		if transform.IsDifferenced() {
			acc += v
			v = acc
		}
		if transform.IsLog() {
			v = math.Exp(v)
		}
		out[i] = v
	}
	return out
}

// boundsToPriceScale applies the inverse transform to an interval built
// around the integrated mean path.
func boundsToPriceScale(mean, variance []float64, z float64, transform domain.Transform, base float64) (lower, upper []float64) {
	path := mean
	if transform.IsDifferenced() {
		path = make([]float64, len(mean))
		acc := base
		for i, v := range mean {
			acc += v
			path[i] = acc
		}
	}

	lower = make([]float64, len(mean))
	upper = make([]float64, len(mean))
	for i := range path {
		half := z * math.Sqrt(variance[i])
		lo, hi := path[i]-half, path[i]+half
		if transform.IsLog() {
			lo, hi = math.Exp(lo), math.Exp(hi)
		}
		lower[i], upper[i] = lo, hi
	}
	return lower, upper
}
