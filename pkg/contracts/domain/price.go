package domain

import (
	"fmt"
	"sort"
	"time"
)

// Transform identifies the value transform applied to a price series
type Transform string

const (
	TransformNone    Transform = "none"
	TransformLog     Transform = "log"
	TransformDiff    Transform = "diff"
	TransformLogDiff Transform = "logdiff"
)

// IsDifferenced reports whether the transform removed one level of integration
func (t Transform) IsDifferenced() bool {
	return t == TransformDiff || t == TransformLogDiff
}

// IsLog reports whether values are on the natural log scale
func (t Transform) IsLog() bool {
	return t == TransformLog || t == TransformLogDiff
}

// ParseTransform converts a configuration string to a Transform
func ParseTransform(s string) (Transform, error) {
	switch Transform(s) {
	case "", TransformNone:
		return TransformNone, nil
	case TransformLog, TransformDiff, TransformLogDiff:
		return Transform(s), nil
	default:
		return "", fmt.Errorf("unknown transform %q", s)
	}
}

// PricePoint is a single observation of the asset price
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// PriceSeries is an ordered sequence of price observations.
// Operations on a series return new series and never mutate the receiver.
type PriceSeries struct {
	Name      string        `json:"name"`
	Points    []PricePoint  `json:"points"`
	Frequency time.Duration `json:"frequency,omitempty"`
	Transform Transform     `json:"transform,omitempty"`
	// Anchor is the last level removed by differencing, on the log scale for logdiff.
	Anchor float64 `json:"anchor,omitempty"`
}

// NewPriceSeries creates a series with no transform applied
func NewPriceSeries(name string, points []PricePoint) *PriceSeries {
	return &PriceSeries{
		Name:      name,
		Points:    points,
		Transform: TransformNone,
	}
}

// Len returns the number of observations
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Values returns a copy of the prices in timestamp order
func (s *PriceSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Price
	}
	return values
}

// Timestamps returns a copy of the observation times
func (s *PriceSeries) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		ts[i] = p.Timestamp
	}
	return ts
}

// First returns the earliest observation
func (s *PriceSeries) First() PricePoint {
	return s.Points[0]
}

// Last returns the latest observation
func (s *PriceSeries) Last() PricePoint {
	return s.Points[len(s.Points)-1]
}

// Copy returns a deep copy of the series
func (s *PriceSeries) Copy() *PriceSeries {
	points := make([]PricePoint, len(s.Points))
	copy(points, s.Points)
	cp := *s
	cp.Points = points
	return &cp
}

// Slice returns the observations in [start, end) as a new series
func (s *PriceSeries) Slice(start, end int) *PriceSeries {
	if start < 0 {
		start = 0
	}
	if end > len(s.Points) {
		end = len(s.Points)
	}
	if start > end {
		start = end
	}
	points := make([]PricePoint, end-start)
	copy(points, s.Points[start:end])
	cp := *s
	cp.Points = points
	return &cp
}

// IsStrictlyIncreasing reports whether timestamps are strictly increasing
func (s *PriceSeries) IsStrictlyIncreasing() bool {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Timestamp.After(s.Points[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// Interval returns the sampling interval. When Frequency is unset it falls back
// to the median spacing between observations.
func (s *PriceSeries) Interval() time.Duration {
	if s.Frequency > 0 {
		return s.Frequency
	}
	if len(s.Points) < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		gaps = append(gaps, s.Points[i].Timestamp.Sub(s.Points[i-1].Timestamp))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}
