// Package stats provides the time-series statistics used by model fitting and
// order selection: autocorrelation, unit-root and stationarity tests, residual
// diagnostics, normal quantiles and forecast accuracy scores.
//
// All functions take plain []float64 slices ordered oldest first and never
// modify their input.
package stats
