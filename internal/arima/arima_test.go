package arima

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcforecast/pkg/contracts/domain"
)

func ar1Series(n int, mean, phi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	dev := 0.0
	for i := range out {
		dev = phi*dev + rng.NormFloat64()
		out[i] = mean + dev
	}
	return out
}

func randomWalk(n int, start, drift float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	level := start
	for i := range out {
		level += drift + rng.NormFloat64()
		out[i] = level
	}
	return out
}

func TestFit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		order  domain.Order
		values []float64
		target error
	}{
		{"too few observations", domain.Order{P: 2, D: 1, Q: 2}, make([]float64, 14), ErrTooFewObservations},
		{"negative order", domain.Order{P: -1}, make([]float64, 50), ErrInvalidOrder},
		{"non-finite input", domain.Order{P: 1}, append(make([]float64, 20), math.NaN()), ErrNonFiniteInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.order)
			err := m.Fit(tt.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.False(t, m.Fitted())
		})
	}
}

func TestPredict_NotFitted(t *testing.T) {
	m := New(domain.Order{P: 1, D: 1})

	_, err := m.Predict(3)
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = m.ForecastVariance(3, 0)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Nil(t, m.Residuals())
	assert.Nil(t, m.Summary())
}

func TestFit_RecoversAR1(t *testing.T) {
	m := New(domain.Order{P: 1})
	require.NoError(t, m.Fit(ar1Series(1500, 10, 0.6, 11)))

	assert.InDelta(t, 0.6, m.ARCoeffs[0], 0.08)
	assert.InDelta(t, 10, m.Intercept, 0.3)
	assert.InDelta(t, 1.0, m.Variance, 0.15)
	assert.Equal(t, 1499, m.NObs)
	assert.Len(t, m.Residuals(), 1499)

	// Forecasts revert towards the mean
	forecasts, err := m.Predict(50)
	require.NoError(t, err)
	assert.InDelta(t, m.Intercept, forecasts[49], 0.01)
}

func TestFit_PriceScaleSeries(t *testing.T) {
	prices := randomWalk(400, 30000, 15, 3)

	m := New(domain.Order{P: 1, D: 1, Q: 1})
	require.NoError(t, m.Fit(prices))

	for _, c := range append(m.ARCoeffs, m.MACoeffs...) {
		assert.LessOrEqual(t, math.Abs(c), 0.99)
	}
	assert.True(t, !math.IsNaN(m.AIC) && !math.IsInf(m.AIC, 0))
	assert.Greater(t, m.BIC, m.AIC)
}

func TestPredict_RandomWalkWithDrift(t *testing.T) {
	values := randomWalk(200, 100, 0.5, 4)
	m := New(domain.Order{D: 1})
	require.NoError(t, m.Fit(values))

	forecasts, err := m.Predict(5)
	require.NoError(t, err)

	last := values[len(values)-1]
	for k, f := range forecasts {
		assert.InDelta(t, last+float64(k+1)*m.Intercept, f, 1e-9)
	}
}

func TestPredict_SecondOrderIntegration(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = float64(i * i)
	}

	m := New(domain.Order{D: 2})
	require.NoError(t, m.Fit(values))

	forecasts, err := m.Predict(3)
	require.NoError(t, err)
	assert.InDelta(t, 2500, forecasts[0], 1e-6)
	assert.InDelta(t, 2601, forecasts[1], 1e-6)
	assert.InDelta(t, 2704, forecasts[2], 1e-6)
}

func TestPsiWeights(t *testing.T) {
	t.Run("random walk", func(t *testing.T) {
		assert.Equal(t, []float64{1, 1, 1, 1}, PsiWeights(nil, nil, 1, 4))
	})

	t.Run("double integration", func(t *testing.T) {
		assert.Equal(t, []float64{1, 2, 3, 4}, PsiWeights(nil, nil, 2, 4))
	})

	t.Run("AR(1)", func(t *testing.T) {
		psi := PsiWeights([]float64{0.5}, nil, 0, 4)
		assert.InDeltaSlice(t, []float64{1, 0.5, 0.25, 0.125}, psi, 1e-12)
	})

	t.Run("MA(1)", func(t *testing.T) {
		psi := PsiWeights(nil, []float64{0.4}, 0, 4)
		assert.InDeltaSlice(t, []float64{1, 0.4, 0, 0}, psi, 1e-12)
	})

	t.Run("ARIMA(1,1,0)", func(t *testing.T) {
		// (1-0.5B)(1-B) = 1 - 1.5B + 0.5B^2
		psi := PsiWeights([]float64{0.5}, nil, 1, 4)
		assert.InDeltaSlice(t, []float64{1, 1.5, 1.75, 1.875}, psi, 1e-12)
	})

	assert.Nil(t, PsiWeights(nil, nil, 0, 0))
}

func TestPredictWithInterval(t *testing.T) {
	values := randomWalk(300, 1000, 1, 5)
	m := New(domain.Order{P: 1, D: 1})
	require.NoError(t, m.Fit(values))

	mean, lower, upper, err := m.PredictWithInterval(10, 0.95)
	require.NoError(t, err)
	require.Len(t, mean, 10)

	prevWidth := 0.0
	for h := range mean {
		assert.Less(t, lower[h], mean[h])
		assert.Greater(t, upper[h], mean[h])
		width := upper[h] - lower[h]
		assert.GreaterOrEqual(t, width, prevWidth)
		prevWidth = width
	}

	narrow, _, _, err := m.PredictWithInterval(10, 0.5)
	require.NoError(t, err)
	assert.Equal(t, mean, narrow)

	_, _, _, err = m.PredictWithInterval(10, 1)
	assert.Error(t, err)
}

func TestForecastVariance_ExtraIntegration(t *testing.T) {
	m := New(domain.Order{})
	require.NoError(t, m.Fit(ar1Series(100, 0, 0, 6)))

	flat, err := m.ForecastVariance(4, 0)
	require.NoError(t, err)
	integrated, err := m.ForecastVariance(4, 1)
	require.NoError(t, err)

	for h := range flat {
		assert.InDelta(t, m.Variance, flat[h], 1e-12)
		assert.InDelta(t, m.Variance*float64(h+1), integrated[h], 1e-9)
	}
}

func TestSummary(t *testing.T) {
	m := New(domain.Order{P: 1, Q: 1})
	require.NoError(t, m.Fit(ar1Series(300, 0, 0.5, 7)))

	s := m.Summary()
	require.NotNil(t, s)
	assert.Equal(t, domain.Order{P: 1, Q: 1}, s.Order)
	require.NotNil(t, s.LjungBox)
	assert.GreaterOrEqual(t, s.LjungBox.PValue, 0.0)
	assert.LessOrEqual(t, s.LjungBox.PValue, 1.0)
	assert.Equal(t, 8, s.LjungBox.DOF)

	// Summary hands out copies
	s.ARCoeffs[0] = 42
	assert.NotEqual(t, 42.0, m.ARCoeffs[0])
}
