package arima

import (
	"errors"
	"fmt"
	"math"

	"btcforecast/internal/stats"
)

// Predict returns point forecasts for the next steps periods on the scale of
// the fitted series.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	p, q := m.Order.P, m.Order.Q
	n := len(m.z)

	extZ := make([]float64, n+steps)
	copy(extZ, m.z)
	extE := make([]float64, n+steps)
	copy(extE, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := 0.0
		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * extZ[t-i-1]
		}
		// future innovations have zero expectation
		for i := 0; i < q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * extE[t-i-1]
		}
		extZ[t] = pred
	}

	forecasts := make([]float64, steps)
	for h := range forecasts {
		forecasts[h] = m.Intercept + m.scale*extZ[n+h]
	}

	return m.integrate(forecasts), nil
}

// integrate undoes d levels of differencing, innermost level first
func (m *Model) integrate(forecasts []float64) []float64 {
	out := append([]float64(nil), forecasts...)
	for level := m.Order.D - 1; level >= 0; level-- {
		base := stats.DiffN(m.data, level)
		acc := base[len(base)-1]
		for j := range out {
			acc += out[j]
			out[j] = acc
		}
	}
	return out
}

// ForecastVariance returns the h-step forecast error variance for h = 1..steps.
// extraD adds integration orders applied outside the model, such as a
// differencing transform inverted by the caller.
func (m *Model) ForecastVariance(steps, extraD int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	psi := PsiWeights(m.ARCoeffs, m.MACoeffs, m.Order.D+max(extraD, 0), steps)
	out := make([]float64, steps)
	acc := 0.0
	for h := 0; h < steps; h++ {
		acc += psi[h] * psi[h]
		out[h] = m.Variance * acc
	}
	return out, nil
}

// PredictWithInterval returns point forecasts with a two-sided normal
// prediction interval of the given coverage.
func (m *Model) PredictWithInterval(steps int, confidence float64) (mean, lower, upper []float64, err error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, nil, nil, fmt.Errorf("confidence must be in (0,1): %v", confidence)
	}

	mean, err = m.Predict(steps)
	if err != nil {
		return nil, nil, nil, err
	}
	variance, err := m.ForecastVariance(steps, 0)
	if err != nil {
		return nil, nil, nil, err
	}

	z := stats.TwoSidedZ(confidence)
	lower = make([]float64, steps)
	upper = make([]float64, steps)
	for h := range mean {
		half := z * math.Sqrt(variance[h])
		lower[h] = mean[h] - half
		upper[h] = mean[h] + half
	}
	return mean, lower, upper, nil
}

// PsiWeights returns the first n coefficients of the MA(infinity)
// representation of phi(B)(1-B)^d y = theta(B) e, starting with psi_0 = 1.
func PsiWeights(ar, ma []float64, d, n int) []float64 {
	if n < 1 {
		return nil
	}

	// phi(B)(1-B)^d = 1 - sum(a_i B^i)
	poly := make([]float64, len(ar)+1)
	poly[0] = 1
	for i, phi := range ar {
		poly[i+1] = -phi
	}
	for k := 0; k < d; k++ {
		next := make([]float64, len(poly)+1)
		for i, c := range poly {
			next[i] += c
			next[i+1] -= c
		}
		poly = next
	}
	a := make([]float64, len(poly)-1)
	for i := range a {
		a[i] = -poly[i+1]
	}

	psi := make([]float64, n)
	psi[0] = 1
	for j := 1; j < n; j++ {
		v := 0.0
		if j <= len(ma) {
			v = ma[j-1]
		}
		for i := 1; i <= len(a) && i <= j; i++ {
			v += a[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}
