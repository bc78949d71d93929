// Package exporter writes forecast results to tabular artifacts and reads
// them back.
//
// The format follows the file extension:
//
//	forecast.csv      plain CSV
//	forecast.csv.zst  CSV compressed with zstd
//	forecast.xlsx     workbook with a single "Forecast" sheet
//
// Every artifact has the columns timestamp,predicted_price and, when the
// result carries an interval, lower_bound,upper_bound. Timestamps are RFC3339
// in UTC and floats use the shortest exact representation, so reading an
// artifact back yields the written points unchanged. Writing replaces any
// existing file.
package exporter
