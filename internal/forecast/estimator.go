package forecast

import (
	"btcforecast/internal/arima"
	"btcforecast/pkg/contracts/domain"
)

// Model is a fitted forecasting model
type Model interface {
	Predict(steps int) ([]float64, error)
	// ForecastVariance returns h-step error variances; extraD adds
	// integration orders inverted outside the model.
	ForecastVariance(steps, extraD int) ([]float64, error)
	Summary() *arima.Summary
}

// Estimator fits a model of the given order to values
type Estimator interface {
	Fit(values []float64, order domain.Order) (Model, error)
}

// ARIMAEstimator fits conditional-sum-of-squares ARIMA models
type ARIMAEstimator struct{}

// Fit implements Estimator
func (ARIMAEstimator) Fit(values []float64, order domain.Order) (Model, error) {
	m := arima.New(order)
	if err := m.Fit(values); err != nil {
		return nil, err
	}
	return m, nil
}
