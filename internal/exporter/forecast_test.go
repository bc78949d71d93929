package exporter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcforecast/internal/config"
	apperrors "btcforecast/internal/errors"
	"btcforecast/pkg/contracts/domain"
)

func sampleResult(withInterval bool, n int) *domain.ForecastResult {
	start := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	r := &domain.ForecastResult{
		RunID:       "run-1",
		SeriesName:  "BTC-USD",
		Order:       domain.Order{P: 1, D: 1, Q: 1},
		HasInterval: withInterval,
	}
	for k := 1; k <= n; k++ {
		p := domain.ForecastPoint{
			Timestamp: start.AddDate(0, 0, k),
			Predicted: 94000.123456789 + float64(k)/3,
		}
		if withInterval {
			p.Lower = p.Predicted - 1234.5678/float64(k)
			p.Upper = p.Predicted + 0.1 + 2e-9
		}
		r.Points = append(r.Points, p)
	}
	return r
}

func assertSamePoints(t *testing.T, want, got *domain.ForecastResult) {
	t.Helper()
	assert.Equal(t, want.HasInterval, got.HasInterval)
	require.Len(t, got.Points, len(want.Points))
	for i := range want.Points {
		assert.True(t, want.Points[i].Timestamp.Equal(got.Points[i].Timestamp), "timestamp %d", i)
		assert.Equal(t, want.Points[i].Predicted, got.Points[i].Predicted, "predicted %d", i)
		assert.Equal(t, want.Points[i].Lower, got.Points[i].Lower, "lower %d", i)
		assert.Equal(t, want.Points[i].Upper, got.Points[i].Upper, "upper %d", i)
	}
}

func TestForecastWriter_RoundTrip(t *testing.T) {
	formats := []string{"forecast.csv", "forecast.csv.zst", "forecast.xlsx"}

	for _, name := range formats {
		for _, withInterval := range []bool{true, false} {
			t.Run(fmt.Sprintf("%s/interval=%t", name, withInterval), func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "nested", "out", name)
				want := sampleResult(withInterval, 30)

				w := NewForecastWriter(nil, nil)
				written, err := w.Write(want, path)
				require.NoError(t, err)
				assert.Equal(t, path, written)

				got, err := ReadForecast(written)
				require.NoError(t, err)
				assertSamePoints(t, want, got)
			})
		}
	}
}

func TestForecastWriter_CSVLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.csv")
	_, err := NewForecastWriter(nil, nil).Write(sampleResult(true, 1), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,predicted_price,lower_bound,upper_bound", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2025-01-01T00:00:00Z,94000.45679"), lines[1])
	assert.Len(t, strings.Split(lines[1], ","), 4)
}

func TestForecastWriter_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.csv")
	w := NewForecastWriter(nil, nil)

	_, err := w.Write(sampleResult(true, 30), path)
	require.NoError(t, err)
	_, err = w.Write(sampleResult(false, 2), path)
	require.NoError(t, err)

	got, err := ReadForecast(path)
	require.NoError(t, err)
	assert.False(t, got.HasInterval)
	assert.Len(t, got.Points, 2)
}

func TestForecastWriter_ResolvesBareNamesIntoReports(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	paths := &config.Paths{ReportsDir: filepath.Join(dir, "reports")}
	w := NewForecastWriter(paths, nil)

	written, err := w.Write(sampleResult(false, 3), "btc.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "btc.csv"), written)
	assert.FileExists(t, written)

	written, err = w.Write(sampleResult(false, 3), filepath.Join("nested", "btc.csv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("nested", "btc.csv"), written)

	got, err := w.Read("btc.csv")
	require.NoError(t, err)
	assert.Len(t, got.Points, 3)
}

func TestForecastWriter_Errors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	tests := []struct {
		name   string
		path   string
		result *domain.ForecastResult
	}{
		{"unsupported extension", filepath.Join(dir, "forecast.json"), sampleResult(false, 1)},
		{"parent is a file", filepath.Join(blocker, "forecast.csv"), sampleResult(false, 1)},
		{"target is a directory", filepath.Join(dir, "taken.csv"), sampleResult(false, 1)},
		{"nil result", filepath.Join(dir, "empty.csv"), nil},
	}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "taken.csv"), 0755))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			written, err := NewForecastWriter(nil, nil).Write(tt.result, tt.path)
			require.Error(t, err)
			assert.Empty(t, written)
			assert.True(t, apperrors.IsWrite(err), "got %v", err)
		})
	}
}

func TestReadForecast_Malformed(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty", write("empty.csv", "")},
		{"wrong header", write("header.csv", "date,price\n")},
		{"bad number", write("number.csv", "timestamp,predicted_price\n2025-01-01T00:00:00Z,abc\n")},
		{"bad timestamp", write("time.csv", "timestamp,predicted_price\n01/01/2025,1\n")},
		{"short row", write("short.csv", "timestamp,predicted_price,lower_bound,upper_bound\n2025-01-01T00:00:00Z,1\n")},
		{"not zstd", write("plain.csv.zst", "timestamp,predicted_price\n")},
		{"missing", filepath.Join(dir, "absent.xlsx")},
		{"unknown format", write("forecast.txt", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadForecast(tt.path)
			require.Error(t, err)
			assert.True(t, apperrors.IsDataFormat(err), "got %v", err)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.csv":         FormatCSV,
		"A.CSV":         FormatCSV,
		"dir/a.csv.zst": FormatCSVZstd,
		"report.xlsx":   FormatXLSX,
	}
	for path, want := range tests {
		got, err := DetectFormat(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}

	_, err := DetectFormat("a.zst")
	assert.Error(t, err)
}

func TestWriteCSV_BOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, WriteOptions{
		Headers:   []string{"timestamp", "predicted_price"},
		Records:   [][]string{{"2025-01-01T00:00:00Z", "1"}},
		BOMPrefix: true,
	}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}))

	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, "timestamp", rows[0][0])
}
