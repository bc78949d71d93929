package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whiteNoise(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func ar1(n int, phi float64, seed int64) []float64 {
	e := whiteNoise(n, seed)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = phi*out[i-1] + e[i]
	}
	return out
}

// periodic is a zero-mean deterministic sequence with period 7
func periodic(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i%7-3) / 3
	}
	return out
}

func TestDescriptive(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-12)
	assert.InDelta(t, 32.0/7.0, Variance(values), 1e-12)
	assert.True(t, math.IsNaN(Mean(nil)))
	assert.Zero(t, Variance([]float64{1}))

	assert.Equal(t, []float64{2, 0, 0, 1, 0, 2, 2}, Diff(values))
	assert.Equal(t, []float64{-2, 0, 1, -1, 2, 0}, DiffN(values, 2))
	assert.Empty(t, Diff([]float64{1}))
	assert.Equal(t, values, DiffN(values, 0))

	assert.True(t, AllFinite(1, 2, 3))
	assert.False(t, AllFinite(1, math.NaN()))
	assert.False(t, AllFinite(math.Inf(1)))
}

func TestACF(t *testing.T) {
	assert.Nil(t, ACF([]float64{3, 3, 3, 3}, 2))

	acf := ACF(ar1(2000, 0.7, 1), 3)
	require.Len(t, acf, 4)
	assert.InDelta(t, 1.0, acf[0], 1e-12)
	assert.InDelta(t, 0.7, acf[1], 0.08)
	assert.InDelta(t, 0.49, acf[2], 0.1)
}

func TestPACFAndYuleWalker(t *testing.T) {
	values := ar1(2000, 0.7, 2)

	pacf := PACF(values, 3)
	require.Len(t, pacf, 4)
	assert.Equal(t, 1.0, pacf[0])
	assert.InDelta(t, 0.7, pacf[1], 0.08)
	assert.InDelta(t, 0.0, pacf[2], 0.08)

	phi := YuleWalker(ACF(values, 2), 2)
	require.Len(t, phi, 2)
	assert.InDelta(t, 0.7, phi[0], 0.08)
	assert.InDelta(t, 0.0, phi[1], 0.08)

	assert.Nil(t, YuleWalker([]float64{1, 0.5}, 2))
}

func TestADF(t *testing.T) {
	assert.Nil(t, ADF([]float64{1, 2, 3}, 0))

	noise := ADF(whiteNoise(500, 3), 0)
	require.NotNil(t, noise)
	assert.True(t, noise.IsStationary)
	assert.Less(t, noise.Statistic, -2.86)

	// random walk with drift
	steps := whiteNoise(300, 4)
	walk := make([]float64, 300)
	level := 0.0
	for i := range walk {
		level += 1 + steps[i]
		walk[i] = level
	}
	res := ADF(walk, 0)
	require.NotNil(t, res)
	assert.False(t, res.IsStationary)
}

func TestDickeyFullerPValue(t *testing.T) {
	assert.Equal(t, 0.001, dickeyFullerPValue(-10))
	assert.InDelta(t, 0.05, dickeyFullerPValue(-2.86), 1e-12)
	assert.InDelta(t, 0.03, dickeyFullerPValue(-3.145), 1e-12)
	assert.Equal(t, 0.99, dickeyFullerPValue(3))
}

func TestLeastSquares(t *testing.T) {
	noise := whiteNoise(200, 11)
	x := make([][]float64, len(noise))
	y := make([]float64, len(noise))
	for i := range y {
		x[i] = []float64{1, float64(i)}
		y[i] = 2 + 0.5*float64(i) + noise[i]
	}

	fit := leastSquares(x, y)
	require.NotNil(t, fit)
	assert.InDelta(t, 2, fit.beta[0], 0.5)
	assert.InDelta(t, 0.5, fit.beta[1], 0.01)

	// Simple regression slope error is sqrt(sigma^2 / Sxx)
	n := float64(len(y))
	tBar := (n - 1) / 2
	var rss, sxx float64
	for i := range y {
		e := y[i] - fit.beta[0] - fit.beta[1]*float64(i)
		rss += e * e
		sxx += (float64(i) - tBar) * (float64(i) - tBar)
	}
	assert.InDelta(t, math.Sqrt(rss/(n-2)/sxx), fit.stdErr[1], 1e-9)

	collinear := [][]float64{{1, 2}, {1, 2}, {1, 2}, {1, 2}}
	assert.Nil(t, leastSquares(collinear, []float64{1, 2, 3, 4}))
	assert.Nil(t, leastSquares([][]float64{{1, 0}, {1, 1}}, []float64{1, 2}))
}

func TestDetrend(t *testing.T) {
	line := make([]float64, 50)
	for i := range line {
		line[i] = 10 - 0.25*float64(i)
	}
	for _, e := range detrend(line, true) {
		assert.InDelta(t, 0, e, 1e-9)
	}

	centred := detrend([]float64{1, 2, 3, 6}, false)
	assert.Equal(t, []float64{-2, -1, 0, 3}, centred)
}

func TestKPSS(t *testing.T) {
	assert.Nil(t, KPSS([]float64{1, 2}, "c", 0))

	level := KPSS(periodic(300), "c", 0)
	require.NotNil(t, level)
	assert.True(t, level.IsStationary)
	assert.Equal(t, 0.463, level.CriticalVal5)

	trend := make([]float64, 300)
	for i := range trend {
		trend[i] = float64(i) + periodic(300)[i]
	}
	assert.False(t, KPSS(trend, "c", 0).IsStationary)

	// Around a linear trend the same series is trend-stationary
	ct := KPSS(trend, "ct", 0)
	assert.True(t, ct.IsStationary)
	assert.Equal(t, 0.146, ct.CriticalVal5)
}

func TestNDiffs(t *testing.T) {
	p := periodic(400)
	walk := make([]float64, 400)
	level := 0.0
	for i := range walk {
		level += 0.5 + p[i]
		walk[i] = level
	}
	assert.Equal(t, 1, NDiffs(walk, 2, "kpss"))
	assert.Equal(t, 0, NDiffs(p, 2, "kpss"))
	assert.Equal(t, 0, NDiffs(walk, 0, "kpss"))

	noise := whiteNoise(400, 5)
	quad := make([]float64, 400)
	for i := range quad {
		quad[i] = 0.01*float64(i*i) + noise[i]
	}
	assert.Equal(t, 2, NDiffs(quad, 2, "kpss"))
}

func TestIsStationary(t *testing.T) {
	assert.True(t, IsStationary(periodic(200)))

	trend := make([]float64, 200)
	for i := range trend {
		trend[i] = 0.05 * float64(i*i)
	}
	assert.False(t, IsStationary(trend))
	assert.False(t, IsStationary([]float64{1, 2, 3}))
}

func TestLjungBox(t *testing.T) {
	assert.Nil(t, LjungBox([]float64{1, 2, 3}, 5, 0))

	correlated := LjungBox(ar1(500, 0.8, 6), 10, 0)
	require.NotNil(t, correlated)
	assert.Less(t, correlated.PValue, 0.01)
	assert.Equal(t, 10, correlated.DOF)

	white := LjungBox(whiteNoise(500, 7), 10, 2)
	require.NotNil(t, white)
	assert.Greater(t, white.PValue, 0.001)
	assert.Equal(t, 8, white.DOF)
}

func TestChiSquaredCDF(t *testing.T) {
	assert.InDelta(t, 0.95, chiSquaredCDF(3.841, 1), 1e-3)
	assert.InDelta(t, 0.95, chiSquaredCDF(18.307, 10), 1e-3)
	assert.InDelta(t, 0.5, chiSquaredCDF(1.386, 2), 1e-3)
	assert.Zero(t, chiSquaredCDF(0, 3))
}

func TestNormalQuantile(t *testing.T) {
	assert.InDelta(t, 1.96, NormalQuantile(0.975), 1e-3)
	assert.InDelta(t, -1.96, NormalQuantile(0.025), 1e-3)
	assert.InDelta(t, 1.645, NormalQuantile(0.95), 1e-3)
	assert.Zero(t, NormalQuantile(0.5))
	assert.True(t, math.IsInf(NormalQuantile(0), -1))
	assert.True(t, math.IsInf(NormalQuantile(1), 1))
	assert.InDelta(t, 1.96, TwoSidedZ(0.95), 1e-3)
}

func TestScoreForecast(t *testing.T) {
	acc, err := ScoreForecast([]float64{100, 200, 0}, []float64{110, 190, 5})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt((100.0+100+25)/3), acc.RMSE, 1e-12)
	assert.InDelta(t, 25.0/3, acc.MAE, 1e-12)
	// zero actual is skipped: (10% + 5%) / 2
	assert.InDelta(t, 7.5, acc.MAPE, 1e-12)

	_, err = ScoreForecast([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
	_, err = ScoreForecast(nil, nil)
	assert.Error(t, err)
}
