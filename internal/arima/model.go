package arima

import (
	"errors"
	"fmt"
	"math"

	"btcforecast/internal/stats"
	"btcforecast/pkg/contracts/domain"
)

var (
	ErrNotFitted          = errors.New("model must be fitted before prediction")
	ErrTooFewObservations = errors.New("insufficient data points for the specified order")
	ErrNonFiniteInput     = errors.New("series contains non-finite values")
	ErrNonFiniteEstimate  = errors.New("estimation produced non-finite parameters")
	ErrInvalidOrder       = errors.New("order components must be non-negative")
)

const (
	coeffBound  = 0.99
	minVariance = 1e-12
	maxIter     = 200
	gradStep    = 1e-6
	gradTol     = 1e-8
	improveTol  = 1e-12
	minLineStep = 1e-10
	minExtraObs = 10
)

// Model is an ARIMA(p,d,q) model
type Model struct {
	Order     domain.Order
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64 // mean of the differenced series
	Variance  float64 // innovation variance on the differenced scale
	LogLik    float64
	AIC       float64
	BIC       float64
	NObs      int // observations entering the conditional sum of squares

	fitted    bool
	data      []float64
	scale     float64
	z         []float64 // centred, scaled differenced series
	residuals []float64 // on the z scale
}

// New creates an unfitted model of the given order
func New(order domain.Order) *Model {
	return &Model{
		Order:    order,
		ARCoeffs: make([]float64, max(order.P, 0)),
		MACoeffs: make([]float64, max(order.Q, 0)),
	}
}

// MinObservations is the shortest series Fit accepts for order
func MinObservations(order domain.Order) int {
	return order.P + order.D + order.Q + minExtraObs
}

// Fit estimates the model on values. values is copied.
func (m *Model) Fit(values []float64) error {
	o := m.Order
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return ErrInvalidOrder
	}
	if len(values) < MinObservations(o) {
		return fmt.Errorf("%w: %d points for order %s", ErrTooFewObservations, len(values), o)
	}
	if !stats.AllFinite(values...) {
		return ErrNonFiniteInput
	}

	m.fitted = false
	m.data = append([]float64(nil), values...)

	diff := stats.DiffN(m.data, o.D)
	m.Intercept = stats.Mean(diff)
	m.scale = stats.Std(diff)
	if m.scale == 0 || !stats.AllFinite(m.scale) {
		m.scale = 1
	}

	m.z = make([]float64, len(diff))
	for i, v := range diff {
		m.z[i] = (v - m.Intercept) / m.scale
	}

	params := m.initialParams()
	params = m.optimize(params)
	if !stats.AllFinite(params...) {
		return ErrNonFiniteEstimate
	}
	copy(m.ARCoeffs, params[:o.P])
	copy(m.MACoeffs, params[o.P:])

	sse, count := css(m.z, o.P, o.Q, params, nil)
	m.residuals = make([]float64, len(m.z))
	css(m.z, o.P, o.Q, params, m.residuals)

	sse *= m.scale * m.scale
	m.NObs = count
	dof := count - o.P - o.Q
	if dof <= 0 {
		dof = count
	}
	m.Variance = math.Max(sse/float64(dof), minVariance)

	m.calculateIC(sse)
	if !stats.AllFinite(m.Variance, m.LogLik, m.Intercept) {
		return ErrNonFiniteEstimate
	}

	m.fitted = true
	return nil
}

// initialParams seeds AR terms from Yule-Walker and MA terms at zero
func (m *Model) initialParams() []float64 {
	params := make([]float64, m.Order.P+m.Order.Q)
	if m.Order.P > 0 {
		if acf := stats.ACF(m.z, m.Order.P); acf != nil {
			for i, phi := range stats.YuleWalker(acf, m.Order.P) {
				params[i] = clamp(phi)
			}
		}
	}
	return params
}

// optimize minimises the mean conditional sum of squares by gradient descent
// with a backtracking step. Parameters stay inside (-0.99, 0.99).
func (m *Model) optimize(params []float64) []float64 {
	p, q := m.Order.P, m.Order.Q
	if len(params) == 0 {
		return params
	}

	objective := func(x []float64) float64 {
		sse, count := css(m.z, p, q, x, nil)
		if count == 0 {
			return math.Inf(1)
		}
		return sse / float64(count)
	}

	current := objective(params)
	step := 1.0
	grad := make([]float64, len(params))
	probe := make([]float64, len(params))
	candidate := make([]float64, len(params))

	for iter := 0; iter < maxIter; iter++ {
		norm := 0.0
		for i := range params {
			copy(probe, params)
			probe[i] = params[i] + gradStep
			up := objective(probe)
			probe[i] = params[i] - gradStep
			down := objective(probe)
			grad[i] = (up - down) / (2 * gradStep)
			norm = math.Max(norm, math.Abs(grad[i]))
		}
		if norm < gradTol || !stats.AllFinite(grad...) {
			break
		}

		improved := false
		for step >= minLineStep {
			for i := range params {
				candidate[i] = clamp(params[i] - step*grad[i])
			}
			if next := objective(candidate); next < current {
				gain := current - next
				copy(params, candidate)
				current = next
				improved = gain > improveTol
				break
			}
			step /= 2
		}
		if !improved {
			break
		}
		step = math.Min(step*2, 1)
	}
	return params
}

// css computes the conditional sum of squares of the ARMA recursion on z.
// The first p residuals are conditioned to zero. When out is non-nil it
// receives the residuals.
func css(z []float64, p, q int, params, out []float64) (sse float64, count int) {
	n := len(z)
	e := out
	if e == nil {
		e = make([]float64, n)
	}
	for t := 0; t < n; t++ {
		if t < p {
			e[t] = 0
			continue
		}
		pred := 0.0
		for i := 0; i < p; i++ {
			pred += params[i] * z[t-i-1]
		}
		for i := 0; i < q && t-i-1 >= 0; i++ {
			pred += params[p+i] * e[t-i-1]
		}
		e[t] = z[t] - pred
		sse += e[t] * e[t]
		count++
	}
	return sse, count
}

// calculateIC fills the concentrated Gaussian log-likelihood, AIC and BIC
func (m *Model) calculateIC(sse float64) {
	n := float64(m.NObs)
	k := float64(m.Order.P + m.Order.Q + 1)

	sigma2 := math.Max(sse/n, minVariance)
	m.LogLik = -n / 2 * (math.Log(2*math.Pi) + math.Log(sigma2) + 1)
	m.AIC = -2*m.LogLik + 2*k
	m.BIC = -2*m.LogLik + k*math.Log(n)
}

// Residuals returns the in-sample one-step residuals on the differenced scale
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	out := make([]float64, len(m.residuals)-m.Order.P)
	for i := range out {
		out[i] = m.residuals[i+m.Order.P] * m.scale
	}
	return out
}

// Fitted reports whether Fit succeeded
func (m *Model) Fitted() bool { return m.fitted }

// Summary describes a fitted model
type Summary struct {
	Order     domain.Order
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64
	Variance  float64
	AIC       float64
	BIC       float64
	LogLik    float64
	NObs      int
	LjungBox  *stats.LjungBoxResult
}

// Summary returns the fitted parameters and a Ljung-Box test on the residuals
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	residuals := m.Residuals()
	lags := min(10, len(residuals)/5)
	return &Summary{
		Order:     m.Order,
		ARCoeffs:  append([]float64(nil), m.ARCoeffs...),
		MACoeffs:  append([]float64(nil), m.MACoeffs...),
		Intercept: m.Intercept,
		Variance:  m.Variance,
		AIC:       m.AIC,
		BIC:       m.BIC,
		LogLik:    m.LogLik,
		NObs:      m.NObs,
		LjungBox:  stats.LjungBox(residuals, lags, m.Order.P+m.Order.Q),
	}
}

func clamp(v float64) float64 {
	return math.Max(-coeffBound, math.Min(coeffBound, v))
}
