// Package shared holds helpers used across the btcforecast packages that
// do not belong to any single pipeline stage.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - A capturing slog handler with assertions on messages and attributes
//   - Random-walk price series fixtures and writers for CSV price tables
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    series := testutil.RandomWalk(365, testutil.Day0, 24*time.Hour, 7)
//	    path := testutil.WritePriceCSV(t, t.TempDir(), "prices.csv", "Date,Close", series)
//	    ...
//	    testutil.AssertLogContains(t, logs, slog.LevelInfo, "Loaded price series")
//	}
package shared
