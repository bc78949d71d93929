// Package forecast turns a prepared price series into a ForecastResult.
//
// The Runner validates the model configuration, optionally searches for the
// ARIMA order by information criterion, scores a holdout when TestSize is set,
// and produces horizon points on the grid following the last observation.
// Values transformed during preprocessing (log, diff, logdiff) are mapped
// back to the price scale before they are returned.
package forecast
