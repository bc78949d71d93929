package exporter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout is RFC3339 with optional fractional seconds so timestamps round-trip exactly
const timeLayout = time.RFC3339Nano

// formatFloat uses the shortest representation that parses back to the same value
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatTime renders a timestamp in UTC
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
