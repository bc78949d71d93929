package stats

import "math"

// minTestLen is the shortest series either unit-root test will score
const minTestLen = 10

// ADFResult is the outcome of an Augmented Dickey-Fuller unit-root test
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	NObs         int
	IsStationary bool
}

// ADF runs the Augmented Dickey-Fuller test with a constant term.
// The null hypothesis is a unit root; a p-value under 0.05 rejects it.
// maxLag <= 0 selects floor((n-1)^(1/3)). Returns nil when the series is too short.
func ADF(values []float64, maxLag int) *ADFResult {
	n := len(values)
	if n < minTestLen {
		return nil
	}

	lags := maxLag
	if lags <= 0 {
		lags = int(math.Cbrt(float64(n - 1)))
	}
	lags = min(lags, n-2)

	rows := n - lags - 1
	if rows < minTestLen {
		return nil
	}

	// Regress the change on an intercept, the previous level and the
	// last lags changes; the level coefficient is the one under test.
	steps := Diff(values)
	target := steps[lags : lags+rows]
	design := make([][]float64, rows)
	for r := range design {
		at := r + lags
		design[r] = append([]float64{1, values[at]}, reversedWindow(steps, at, lags)...)
	}

	fit := leastSquares(design, target)
	if fit == nil || fit.stdErr[1] == 0 {
		return nil
	}

	stat := fit.beta[1] / fit.stdErr[1]
	p := dickeyFullerPValue(stat)
	return &ADFResult{
		Statistic:    stat,
		PValue:       p,
		Lags:         lags,
		NObs:         rows,
		IsStationary: p < 0.05,
	}
}

// reversedWindow returns steps[at-1], steps[at-2], ... steps[at-k]
func reversedWindow(steps []float64, at, k int) []float64 {
	out := make([]float64, k)
	for j := range out {
		out[j] = steps[at-1-j]
	}
	return out
}

// KPSSResult is the outcome of a KPSS level-stationarity test
type KPSSResult struct {
	Statistic    float64
	Lags         int
	CriticalVal5 float64
	IsStationary bool
}

// kpssCritical5 holds the 5% critical values per deterministic component
var kpssCritical5 = map[string]float64{"c": 0.463, "ct": 0.146}

// KPSS runs the Kwiatkowski-Phillips-Schmidt-Shin test around a constant
// (regression "c") or a linear trend ("ct"). The null hypothesis is
// stationarity; it is rejected when the statistic exceeds the 5% critical value.
func KPSS(values []float64, regression string, nlags int) *KPSSResult {
	n := len(values)
	if n < minTestLen {
		return nil
	}
	if regression != "ct" {
		regression = "c"
	}

	lags := nlags
	if lags <= 0 {
		lags = int(math.Ceil(12 * math.Sqrt(math.Sqrt(float64(n)/100))))
	}
	lags = min(lags, n-1)

	resid := detrend(values, regression == "ct")

	var partial, sumSq float64
	for _, e := range resid {
		partial += e
		sumSq += partial * partial
	}
	stat := sumSq / (float64(n*n) * bartlettVariance(resid, lags))

	crit := kpssCritical5[regression]
	return &KPSSResult{
		Statistic:    stat,
		Lags:         lags,
		CriticalVal5: crit,
		IsStationary: stat < crit,
	}
}

// detrend removes the mean, or the least-squares line through (i, values[i])
func detrend(values []float64, linear bool) []float64 {
	out := make([]float64, len(values))
	if !linear {
		m := Mean(values)
		for i, v := range values {
			out[i] = v - m
		}
		return out
	}

	// Centre the time index so slope and intercept decouple.
	n := float64(len(values))
	tBar := (n - 1) / 2
	yBar := Mean(values)
	var sxy, sxx float64
	for i, v := range values {
		dt := float64(i) - tBar
		sxy += dt * (v - yBar)
		sxx += dt * dt
	}
	slope := sxy / sxx
	for i, v := range values {
		out[i] = v - yBar - slope*(float64(i)-tBar)
	}
	return out
}

// bartlettVariance is the Newey-West long-run variance of resid with
// Bartlett kernel weights, floored at a small positive value
func bartlettVariance(resid []float64, lags int) float64 {
	n := float64(len(resid))
	autocov := func(k int) float64 {
		s := 0.0
		for i := k; i < len(resid); i++ {
			s += resid[i] * resid[i-k]
		}
		return s / n
	}

	v := autocov(0)
	for k := 1; k <= lags; k++ {
		w := 1 - float64(k)/float64(lags+1)
		v += 2 * w * autocov(k)
	}
	return math.Max(v, 1e-10)
}

// IsStationary combines ADF and KPSS. A series is treated as stationary when
// either test supports it; a series too short for both tests is not.
func IsStationary(values []float64) bool {
	if adf := ADF(values, 0); adf != nil && adf.IsStationary {
		return true
	}
	kpss := KPSS(values, "c", 0)
	return kpss != nil && kpss.IsStationary
}

// NDiffs estimates the number of first differences needed for stationarity,
// capped at maxD. test selects "kpss" (default) or "adf".
func NDiffs(values []float64, maxD int, test string) int {
	passes := func(x []float64) bool {
		if test == "adf" {
			r := ADF(x, 0)
			return r != nil && r.IsStationary
		}
		r := KPSS(x, "c", 0)
		return r != nil && r.IsStationary
	}

	series := values
	d := 0
	for ; d < maxD; d++ {
		if passes(series) {
			break
		}
		next := Diff(series)
		if len(next) < minTestLen {
			break
		}
		series = next
	}
	return d
}

// olsFit holds least-squares coefficients and their standard errors
type olsFit struct {
	beta   []float64
	stdErr []float64
}

// leastSquares fits y on the columns of x through the Cholesky factor of
// X'X. It returns nil when X'X is not positive definite or there are no
// residual degrees of freedom.
func leastSquares(x [][]float64, y []float64) *olsFit {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil
	}
	k := len(x[0])
	if n <= k {
		return nil
	}

	gram := make([][]float64, k)
	rhs := make([]float64, k)
	for a := range gram {
		gram[a] = make([]float64, k)
	}
	for r, row := range x {
		for a := 0; a < k; a++ {
			rhs[a] += row[a] * y[r]
			for b := 0; b <= a; b++ {
				gram[a][b] += row[a] * row[b]
			}
		}
	}

	chol := cholesky(gram)
	if chol == nil {
		return nil
	}
	beta := chol.solve(rhs)

	var rss float64
	for r, row := range x {
		e := y[r]
		for a, v := range row {
			e -= beta[a] * v
		}
		rss += e * e
	}
	sigma2 := rss / float64(n-k)

	// Diagonal of (X'X)^-1, one unit vector at a time.
	stdErr := make([]float64, k)
	unit := make([]float64, k)
	for a := range stdErr {
		unit[a] = 1
		stdErr[a] = math.Sqrt(sigma2 * chol.solve(unit)[a])
		unit[a] = 0
	}
	return &olsFit{beta: beta, stdErr: stdErr}
}

// lowerFactor is L with A = L L'
type lowerFactor [][]float64

// cholesky factors the symmetric matrix whose lower triangle is a.
// Returns nil when a is not numerically positive definite.
func cholesky(a [][]float64) lowerFactor {
	k := len(a)
	l := make(lowerFactor, k)
	for i := range l {
		l[i] = make([]float64, k)
		for j := 0; j <= i; j++ {
			s := a[i][j]
			for m := 0; m < j; m++ {
				s -= l[i][m] * l[j][m]
			}
			if i == j {
				if s <= 1e-12*math.Max(1, math.Abs(a[i][i])) {
					return nil
				}
				l[i][i] = math.Sqrt(s)
			} else {
				l[i][j] = s / l[j][j]
			}
		}
	}
	return l
}

// solve returns z with L L' z = b by forward then back substitution
func (l lowerFactor) solve(b []float64) []float64 {
	k := len(l)
	w := make([]float64, k)
	for i := 0; i < k; i++ {
		s := b[i]
		for m := 0; m < i; m++ {
			s -= l[i][m] * w[m]
		}
		w[i] = s / l[i][i]
	}
	z := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		s := w[i]
		for m := i + 1; m < k; m++ {
			s -= l[m][i] * z[m]
		}
		z[i] = s / l[i][i]
	}
	return z
}

// dfKnots are quantiles of the Dickey-Fuller distribution with a constant
var dfKnots = []struct{ stat, p float64 }{
	{-3.96, 0.001},
	{-3.43, 0.01},
	{-2.86, 0.05},
	{-2.57, 0.10},
	{-1.94, 0.30},
	{-1.57, 0.50},
	{-0.44, 0.90},
	{-0.07, 0.95},
	{0.60, 0.99},
}

// dickeyFullerPValue interpolates linearly between the dfKnots quantiles,
// clamping outside them.
func dickeyFullerPValue(stat float64) float64 {
	first, last := dfKnots[0], dfKnots[len(dfKnots)-1]
	switch {
	case stat <= first.stat:
		return first.p
	case stat >= last.stat:
		return last.p
	}
	i := 1
	for stat > dfKnots[i].stat {
		i++
	}
	lo, hi := dfKnots[i-1], dfKnots[i]
	return lo.p + (stat-lo.stat)/(hi.stat-lo.stat)*(hi.p-lo.p)
}
