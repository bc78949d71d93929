package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"btcforecast/pkg/contracts/domain"
)

// SheetName is the worksheet holding the forecast in .xlsx artifacts
const SheetName = "Forecast"

// writeXLSXFile stores timestamps as text and prices as numbers
func writeXLSXFile(path string, headers []string, result *domain.ForecastResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, p := range result.Points {
		row := []interface{}{formatTime(p.Timestamp), p.Predicted}
		if result.HasInterval {
			row = append(row, p.Lower, p.Upper)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	return f.SaveAs(path)
}

func readXLSXFile(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetRows(SheetName, excelize.Options{RawCellValue: true})
}
