package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"btcforecast/internal/config"
	apperrors "btcforecast/internal/errors"
	"btcforecast/pkg/contracts/domain"
)

// Format is the encoding of a forecast artifact
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCSVZstd Format = "csv.zst"
	FormatXLSX    Format = "xlsx"
)

// Column names of the forecast artifact
const (
	ColumnTimestamp = "timestamp"
	ColumnPredicted = "predicted_price"
	ColumnLower     = "lower_bound"
	ColumnUpper     = "upper_bound"
)

// DetectFormat picks the artifact format from the file name
func DetectFormat(path string) (Format, error) {
	name := strings.ToLower(path)
	switch {
	case strings.HasSuffix(name, ".csv.zst"):
		return FormatCSVZstd, nil
	case strings.HasSuffix(name, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(name, ".xlsx"):
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported artifact extension in %q (want .csv, .csv.zst or .xlsx)", filepath.Base(path))
	}
}

// ForecastWriter persists forecast results as tabular artifacts
type ForecastWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewForecastWriter creates a writer. Bare file names resolve into
// paths.ReportsDir when paths is non-nil.
func NewForecastWriter(paths *config.Paths, logger *slog.Logger) *ForecastWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastWriter{paths: paths, logger: logger.With(slog.String("component", "forecast_writer"))}
}

// Write serializes result to path, replacing any existing file, and returns
// the path actually written. Failures are reported as WriteError; a partially
// written file may remain.
func (w *ForecastWriter) Write(result *domain.ForecastResult, path string) (string, error) {
	fullPath := w.resolvePath(path)

	format, err := DetectFormat(fullPath)
	if err != nil {
		return "", apperrors.NewWriteError(fullPath, err)
	}
	if result == nil {
		return "", apperrors.NewWriteError(fullPath, fmt.Errorf("no forecast result"))
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", apperrors.NewWriteError(fullPath, fmt.Errorf("failed to create directory: %w", err))
	}

	headers, records := forecastTable(result)

	switch format {
	case FormatCSV:
		err = writeCSVFile(fullPath, headers, records)
	case FormatCSVZstd:
		err = writeZstdFile(fullPath, headers, records)
	case FormatXLSX:
		err = writeXLSXFile(fullPath, headers, result)
	}
	if err != nil {
		return "", apperrors.NewWriteError(fullPath, err)
	}

	w.logger.Info("Forecast written",
		slog.String("path", fullPath),
		slog.String("format", string(format)),
		slog.Int("points", len(result.Points)),
		slog.Bool("interval", result.HasInterval))
	return fullPath, nil
}

// Read loads an artifact written by Write
func (w *ForecastWriter) Read(path string) (*domain.ForecastResult, error) {
	return ReadForecast(w.resolvePath(path))
}

// ReadForecast loads the points of a forecast artifact. Run metadata is not
// stored in the artifact and is left empty.
func ReadForecast(path string) (*domain.ForecastResult, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, apperrors.NewDataFormatError("cannot read artifact", err)
	}

	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = readCSVFile(path)
	case FormatCSVZstd:
		rows, err = readZstdFile(path)
	case FormatXLSX:
		rows, err = readXLSXFile(path)
	}
	if err != nil {
		return nil, apperrors.NewDataFormatError("cannot read artifact", err).WithContext("path", path)
	}

	result, err := parseForecastTable(rows)
	if err != nil {
		return nil, apperrors.NewDataFormatError("malformed forecast artifact", err).WithContext("path", path)
	}
	return result, nil
}

// resolvePath places bare file names in the reports directory
func (w *ForecastWriter) resolvePath(path string) string {
	if w.paths == nil || filepath.IsAbs(path) || filepath.Base(path) != path {
		return path
	}
	return w.paths.GetReportPath(path)
}

// forecastTable lays out a result as header plus string rows
func forecastTable(result *domain.ForecastResult) ([]string, [][]string) {
	headers := []string{ColumnTimestamp, ColumnPredicted}
	if result.HasInterval {
		headers = append(headers, ColumnLower, ColumnUpper)
	}

	records := make([][]string, 0, len(result.Points))
	for _, p := range result.Points {
		row := []string{formatTime(p.Timestamp), formatFloat(p.Predicted)}
		if result.HasInterval {
			row = append(row, formatFloat(p.Lower), formatFloat(p.Upper))
		}
		records = append(records, row)
	}
	return headers, records
}

// parseForecastTable is the inverse of forecastTable
func parseForecastTable(rows [][]string) (*domain.ForecastResult, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("artifact is empty")
	}

	header := rows[0]
	if len(header) < 2 || header[0] != ColumnTimestamp || header[1] != ColumnPredicted {
		return nil, fmt.Errorf("unexpected header %v", header)
	}
	hasInterval := len(header) >= 4 && header[2] == ColumnLower && header[3] == ColumnUpper
	width := 2
	if hasInterval {
		width = 4
	}

	result := &domain.ForecastResult{
		HasInterval: hasInterval,
		Points:      make([]domain.ForecastPoint, 0, len(rows)-1),
	}
	for i, row := range rows[1:] {
		if len(row) < width {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i+2, len(row), width)
		}

		ts, err := parseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		p := domain.ForecastPoint{Timestamp: ts}
		if p.Predicted, err = parseFloat(row[1]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if hasInterval {
			if p.Lower, err = parseFloat(row[2]); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			if p.Upper, err = parseFloat(row[3]); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
		}
		result.Points = append(result.Points, p)
	}
	return result, nil
}

func writeCSVFile(path string, headers []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, WriteOptions{Headers: headers, Records: records}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readCSVFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}
