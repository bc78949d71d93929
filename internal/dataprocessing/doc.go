// Package dataprocessing turns raw price tables into model-ready series.
//
// # Architecture
//
// The package has two components:
//
// 1. Loader: reads an Excel workbook (.xlsx, .xlsm) or CSV file, finds the
// date and price columns by header name, and returns a series sorted by
// timestamp with duplicate timestamps collapsed to the last row.
// 2. Preprocessor: resamples the series onto a regular grid, resolves gaps
// by fill policy (ffill, interpolate, drop), and optionally applies a log
// and/or difference transform.
//
// # Usage
//
//	series, err := dataprocessing.NewLoader(logger).Load("data/btc_prices.xlsx")
//	if err != nil {
//	    return err
//	}
//
//	prepared, err := dataprocessing.NewPreprocessor(logger).Prepare(series, dataprocessing.DefaultPrepareConfig())
//
// # Error Handling
//
// Missing columns and unparsable cells are reported as DATA_FORMAT errors
// that name the column or row. A series shorter than MinPoints after
// preparation is an INSUFFICIENT_DATA error.
//
// Prepare is pure: it never mutates its input, and preparing an already
// prepared series with the same configuration returns an equal series.
package dataprocessing
