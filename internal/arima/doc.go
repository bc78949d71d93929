// Package arima estimates non-seasonal ARIMA(p,d,q) models by conditional sum
// of squares and produces point forecasts with normal prediction intervals.
//
// The series is differenced d times, centred and scaled by its standard
// deviation before estimation, so the optimizer behaves the same on price
// levels in the tens of thousands as on returns. Coefficients, residuals and
// variances reported by the model are on the original differenced scale.
//
//	m := arima.New(domain.Order{P: 1, D: 1, Q: 1})
//	if err := m.Fit(values); err != nil {
//		return err
//	}
//	mean, lower, upper, err := m.PredictWithInterval(30, 0.95)
//
// Forecast variance uses the psi weights of the integrated model, so intervals
// widen with the horizon whenever d > 0.
package arima
