package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"btcforecast/pkg/contracts/domain"
)

// Day0 is the first timestamp of the generated fixtures
var Day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// RandomWalk returns n prices starting at 42000 with a small upward drift,
// one observation every step from start. The same seed yields the same series.
func RandomWalk(n int, start time.Time, step time.Duration, seed int64) *domain.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	points := make([]domain.PricePoint, n)
	level := 42000.0
	for i := range points {
		level += 15 + 500*rng.NormFloat64()
		points[i] = domain.PricePoint{Timestamp: start.Add(time.Duration(i) * step), Price: level}
	}
	return domain.NewPriceSeries("BTC-USD", points)
}

// WritePriceCSV writes series as a two-column table under dir and returns
// its path. header names the columns, e.g. "Date,Close". Daily series are
// written as plain dates, anything finer as RFC3339.
func WritePriceCSV(t *testing.T, dir, name, header string, series *domain.PriceSeries) string {
	t.Helper()

	layout := time.RFC3339
	if series.Interval()%(24*time.Hour) == 0 {
		layout = time.DateOnly
	}

	var b strings.Builder
	b.WriteString(header + "\n")
	for _, p := range series.Points {
		fmt.Fprintf(&b, "%s,%.2f\n", p.Timestamp.Format(layout), p.Price)
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}
