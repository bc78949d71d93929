package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "btcforecast/internal/errors"
	"btcforecast/pkg/contracts/domain"
)

// Header aliases, compared lowercased and trimmed
var (
	dateHeaders  = []string{"date", "timestamp", "time", "datetime"}
	priceHeaders = []string{"price", "close", "closing price", "adj close"}
)

// dateLayouts are tried in order for textual date cells
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Excel serial dates between 1900-01-01 and 9999-12-31
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// Loader reads raw price tables into a PriceSeries
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With(slog.String("component", "loader"))}
}

// LoadPriceSeries reads path with the default logger
func LoadPriceSeries(path string) (*domain.PriceSeries, error) {
	return NewLoader(nil).Load(path)
}

// columnMap locates the date and price columns of a header row
type columnMap struct {
	date  int
	price int
}

// rawRow is one data row with its 1-based line number in the source
type rawRow struct {
	line  int
	cells []string
}

// Load reads a .xlsx/.xlsm workbook or a .csv file. The result is sorted by
// timestamp with duplicates resolved in favour of the last row in file order.
func (l *Loader) Load(path string) (*domain.PriceSeries, error) {
	var (
		cols columnMap
		rows []rawRow
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		cols, rows, err = l.readWorkbook(path)
	case ".csv":
		cols, rows, err = l.readCSV(path)
	default:
		return nil, apperrors.NewDataFormatError(fmt.Sprintf("unsupported input format %q", ext), nil).
			WithContext("path", path)
	}
	if err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(rows))
	var skipped []int
	for _, row := range rows {
		point, ok := parseRow(row.cells, cols)
		if !ok {
			skipped = append(skipped, row.line)
			continue
		}
		points = append(points, point)
	}

	if len(skipped) > 0 {
		l.logger.Warn("Skipped unusable rows",
			slog.String("path", path),
			slog.Int("count", len(skipped)),
			slog.Any("lines", firstN(skipped, 10)))
	}

	if len(points) == 0 {
		return nil, apperrors.NewDataFormatError("no usable rows in input", nil).
			WithContext("path", path).
			WithContext("skipped", len(skipped))
	}

	points = sortAndDedupe(points)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	l.logger.Info("Loaded price series",
		slog.String("path", path),
		slog.Int("points", len(points)),
		slog.Time("first", points[0].Timestamp),
		slog.Time("last", points[len(points)-1].Timestamp))

	return domain.NewPriceSeries(name, points), nil
}

// readWorkbook uses the first sheet whose first non-empty row carries both headers
func (l *Loader) readWorkbook(path string) (columnMap, []rawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return columnMap{}, nil, apperrors.NewDataFormatError("failed to open workbook", err).
			WithContext("path", path)
	}
	defer f.Close()

	var firstErr error
	for _, sheet := range f.GetSheetList() {
		// raw values keep date cells as Excel serials instead of display strings
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return columnMap{}, nil, apperrors.NewDataFormatError("failed to read sheet "+sheet, err)
		}

		header := firstNonEmpty(rows)
		if header < 0 {
			continue
		}

		cols, err := mapColumns(rows[header])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		l.logger.Debug("Found price table", slog.String("sheet", sheet), slog.Int("header_row", header+1))

		data := make([]rawRow, 0, len(rows)-header-1)
		for i := header + 1; i < len(rows); i++ {
			if isBlank(rows[i]) {
				continue
			}
			data = append(data, rawRow{line: i + 1, cells: rows[i]})
		}
		return cols, data, nil
	}

	if firstErr == nil {
		firstErr = apperrors.NewDataFormatError("workbook contains no data", nil)
	}
	return columnMap{}, nil, firstErr
}

// readCSV reads a comma-separated table with a header row
func (l *Loader) readCSV(path string) (columnMap, []rawRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return columnMap{}, nil, apperrors.NewDataFormatError("failed to open csv", err).
			WithContext("path", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		cols     columnMap
		haveHead bool
		data     []rawRow
	)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return columnMap{}, nil, apperrors.NewDataFormatError(fmt.Sprintf("malformed csv at line %d", line), err)
		}
		if isBlank(record) {
			continue
		}
		if !haveHead {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
			cols, err = mapColumns(record)
			if err != nil {
				return columnMap{}, nil, err
			}
			haveHead = true
			continue
		}
		data = append(data, rawRow{line: line, cells: record})
	}

	if !haveHead {
		return columnMap{}, nil, apperrors.NewDataFormatError("csv file is empty", nil).WithContext("path", path)
	}
	return cols, data, nil
}

// mapColumns finds the date and price columns by header alias
func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{date: -1, price: -1}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case cols.date < 0 && slices.Contains(dateHeaders, name):
			cols.date = i
		case cols.price < 0 && slices.Contains(priceHeaders, name):
			cols.price = i
		}
	}

	var missing []string
	if cols.date < 0 {
		missing = append(missing, "date")
	}
	if cols.price < 0 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return cols, apperrors.NewDataFormatError(
			fmt.Sprintf("could not find required column: %s", strings.Join(missing, ", ")), nil).
			WithContext("missing", missing).
			WithContext("header", header)
	}
	return cols, nil
}

// parseRow converts one data row; ok is false when the row must be skipped
func parseRow(cells []string, cols columnMap) (domain.PricePoint, bool) {
	if cols.date >= len(cells) || cols.price >= len(cells) {
		return domain.PricePoint{}, false
	}

	ts, err := parseTimestamp(cells[cols.date])
	if err != nil {
		return domain.PricePoint{}, false
	}
	price, ok := parsePrice(cells[cols.price])
	if !ok {
		return domain.PricePoint{}, false
	}
	return domain.PricePoint{Timestamp: ts, Price: price}, true
}

// parseTimestamp accepts the layouts in dateLayouts or an Excel serial number
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		// serials carry no zone; round away float noise in the fraction of a day
		return t.UTC().Round(time.Second), nil
	}

	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parsePrice strips currency formatting and rejects missing markers
func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null", "-":
		return 0, false
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// sortAndDedupe orders points by time; for equal timestamps the later point
// in input order wins.
func sortAndDedupe(points []domain.PricePoint) []domain.PricePoint {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(p.Timestamp) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func firstNonEmpty(rows [][]string) int {
	for i, row := range rows {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func firstN(xs []int, n int) []int {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
