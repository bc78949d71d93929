package testutil

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("Loaded price series", slog.Int("points", 365))
	logger.With(slog.String("component", "launcher")).Warn("Container not running")
	logger.WithGroup("model").Error("Fit failed", slog.String("order", "(1,1,1)"))

	assert.Equal(t, 3, handler.Count())
	assert.True(t, handler.ContainsMessage("price series"))
	assert.False(t, handler.ContainsMessage("forecast written"))

	AssertLogContains(t, handler, slog.LevelInfo, "Loaded")
	AssertLogAttr(t, handler, "points", int64(365))
	AssertLogAttr(t, handler, "component", "launcher")
	AssertLogAttr(t, handler, "model.order", "(1,1,1)")

	assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
}

func TestBufferedSlogHandler_DerivedLoggersShareRecords(t *testing.T) {
	logger, handler := NewTestLogger(nil)
	child := logger.With(slog.String("run_id", "r1"))

	child.Info("stage completed")
	logger.Info("run completed")

	records := handler.GetRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].Attrs["run_id"])
	assert.NotContains(t, records[1].Attrs, "run_id")
	AssertNoErrors(t, handler)
}

func TestRandomWalk(t *testing.T) {
	a := RandomWalk(50, Day0, time.Hour, 1)
	b := RandomWalk(50, Day0, time.Hour, 1)

	assert.Equal(t, a.Points, b.Points)
	assert.True(t, a.IsStrictlyIncreasing())
	assert.Equal(t, time.Hour, a.Interval())
	assert.True(t, a.Last().Timestamp.Equal(Day0.Add(49*time.Hour)))
}

func TestWritePriceCSV(t *testing.T) {
	daily := WritePriceCSV(t, t.TempDir(), "daily.csv", "Date,Close", RandomWalk(3, Day0, 24*time.Hour, 1))
	data, err := os.ReadFile(daily)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Close", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01,"))

	hourly := WritePriceCSV(t, t.TempDir(), "hourly.csv", "timestamp,price", RandomWalk(2, Day0, time.Hour, 1))
	data, err = os.ReadFile(hourly)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-01-01T01:00:00Z,")
}
