package dataprocessing

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "btcforecast/internal/errors"
	"btcforecast/pkg/contracts/domain"
)

// FillPolicy decides how empty grid slots are resolved
type FillPolicy string

const (
	FillForward     FillPolicy = "ffill"
	FillInterpolate FillPolicy = "interpolate"
	FillDrop        FillPolicy = "drop"
)

// maxGridSlots bounds the resampled grid so a tiny frequency cannot exhaust memory
const maxGridSlots = 5_000_000

// PrepareConfig controls resampling, gap filling and value transforms
type PrepareConfig struct {
	Frequency  time.Duration    `validate:"gt=0"`
	FillPolicy FillPolicy       `validate:"oneof=ffill interpolate drop"`
	Transform  domain.Transform `validate:"oneof=none log diff logdiff"`
	MinPoints  int              `validate:"gte=1"`
}

// DefaultPrepareConfig returns daily forward-filled prices without a transform
func DefaultPrepareConfig() PrepareConfig {
	return PrepareConfig{
		Frequency:  24 * time.Hour,
		FillPolicy: FillForward,
		Transform:  domain.TransformNone,
		MinPoints:  30,
	}
}

// PrepareStats summarises one preprocessing pass
type PrepareStats struct {
	InputPoints  int
	Buckets      int
	Filled       int
	Omitted      int
	OutputPoints int
}

var validate = validator.New()

// Preprocessor wraps Preprocess with logging
type Preprocessor struct {
	logger *slog.Logger
}

// NewPreprocessor creates a preprocessor. A nil logger falls back to slog.Default().
func NewPreprocessor(logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{logger: logger.With(slog.String("component", "preprocessor"))}
}

// Prepare runs Preprocess and logs what it changed
func (p *Preprocessor) Prepare(series *domain.PriceSeries, cfg PrepareConfig) (*domain.PriceSeries, error) {
	out, stats, err := PreprocessWithStats(series, cfg)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Prepared price series",
		slog.String("series", out.Name),
		slog.Duration("frequency", cfg.Frequency),
		slog.String("fill_policy", string(cfg.FillPolicy)),
		slog.String("transform", string(out.Transform)),
		slog.Int("input_points", stats.InputPoints),
		slog.Int("filled", stats.Filled),
		slog.Int("omitted", stats.Omitted),
		slog.Int("output_points", stats.OutputPoints))

	return out, nil
}

// Preprocess resamples series onto a regular grid, fills gaps and applies the
// configured transform. The input is never modified and applying Preprocess
// twice with the same configuration gives the same result as applying it once.
func Preprocess(series *domain.PriceSeries, cfg PrepareConfig) (*domain.PriceSeries, error) {
	out, _, err := PreprocessWithStats(series, cfg)
	return out, err
}

// PreprocessWithStats is Preprocess that also reports fill statistics
func PreprocessWithStats(series *domain.PriceSeries, cfg PrepareConfig) (*domain.PriceSeries, PrepareStats, error) {
	var stats PrepareStats

	if err := validate.Struct(cfg); err != nil {
		return nil, stats, apperrors.NewAppValidationError(fmt.Sprintf("invalid prepare config: %v", err))
	}
	if series.Len() == 0 {
		return nil, stats, apperrors.NewInsufficientDataError(0, cfg.MinPoints)
	}

	switch {
	case series.Transform == "" || series.Transform == domain.TransformNone:
	case series.Transform == cfg.Transform:
	default:
		return nil, stats, apperrors.NewAppValidationError(
			fmt.Sprintf("series already carries transform %q, cannot apply %q", series.Transform, cfg.Transform))
	}

	stats.InputPoints = series.Len()

	points := append([]domain.PricePoint(nil), series.Points...)
	points = sortAndDedupe(points)

	buckets := bucketize(points, cfg.Frequency)
	stats.Buckets = len(buckets)

	grid, filled, omitted, err := fillGrid(buckets, cfg.Frequency, cfg.FillPolicy)
	if err != nil {
		return nil, stats, err
	}
	stats.Filled = filled
	stats.Omitted = omitted

	out := &domain.PriceSeries{
		Name:      series.Name,
		Points:    grid,
		Frequency: cfg.Frequency,
		Transform: series.Transform,
		Anchor:    series.Anchor,
	}
	if out.Transform == "" {
		out.Transform = domain.TransformNone
	}

	if out.Transform == domain.TransformNone && cfg.Transform != domain.TransformNone {
		out, err = applyTransform(out, cfg.Transform)
		if err != nil {
			return nil, stats, err
		}
	}

	if out.Len() < cfg.MinPoints {
		return nil, stats, apperrors.NewInsufficientDataError(out.Len(), cfg.MinPoints)
	}

	stats.OutputPoints = out.Len()
	return out, stats, nil
}

// bucketize truncates timestamps to the frequency in UTC; the last
// observation in each bucket wins. points must be sorted.
func bucketize(points []domain.PricePoint, freq time.Duration) []domain.PricePoint {
	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		key := p.Timestamp.UTC().Truncate(freq)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(key) {
			out[n-1].Price = p.Price
			continue
		}
		out = append(out, domain.PricePoint{Timestamp: key, Price: p.Price})
	}
	return out
}

// fillGrid lays buckets on the grid from the first to the last bucket and
// resolves empty slots by policy.
func fillGrid(buckets []domain.PricePoint, freq time.Duration, policy FillPolicy) (grid []domain.PricePoint, filled, omitted int, err error) {
	first := buckets[0].Timestamp
	last := buckets[len(buckets)-1].Timestamp
	slots := int(last.Sub(first)/freq) + 1
	if slots > maxGridSlots {
		return nil, 0, 0, apperrors.NewAppValidationError(
			fmt.Sprintf("frequency %s yields %d grid slots, limit is %d", freq, slots, maxGridSlots))
	}

	grid = make([]domain.PricePoint, 0, slots)
	next := 0 // index of the next unconsumed bucket
	for i := 0; i < slots; i++ {
		ts := first.Add(time.Duration(i) * freq)
		if next < len(buckets) && buckets[next].Timestamp.Equal(ts) {
			grid = append(grid, buckets[next])
			next++
			continue
		}

		prev := buckets[next-1]
		switch policy {
		case FillForward:
			grid = append(grid, domain.PricePoint{Timestamp: ts, Price: prev.Price})
			filled++
		case FillInterpolate:
			after := buckets[next]
			frac := float64(ts.Sub(prev.Timestamp)) / float64(after.Timestamp.Sub(prev.Timestamp))
			grid = append(grid, domain.PricePoint{Timestamp: ts, Price: prev.Price + frac*(after.Price-prev.Price)})
			filled++
		case FillDrop:
			omitted++
		}
	}
	return grid, filled, omitted, nil
}

// applyTransform converts level prices to log and/or differenced values
func applyTransform(series *domain.PriceSeries, transform domain.Transform) (*domain.PriceSeries, error) {
	out := series.Copy()

	if transform.IsLog() {
		for i, p := range out.Points {
			if p.Price <= 0 {
				return nil, apperrors.NewDataFormatError(
					fmt.Sprintf("log transform requires positive prices, got %v at %s",
						p.Price, p.Timestamp.Format(time.RFC3339)), nil)
			}
			out.Points[i].Price = math.Log(p.Price)
		}
	}

	if transform.IsDifferenced() {
		n := len(out.Points)
		if n < 2 {
			return nil, apperrors.NewInsufficientDataError(n, 2)
		}
		diffed := make([]domain.PricePoint, n-1)
		for i := 1; i < n; i++ {
			diffed[i-1] = domain.PricePoint{
				Timestamp: out.Points[i].Timestamp,
				Price:     out.Points[i].Price - out.Points[i-1].Price,
			}
		}
		out.Anchor = out.Points[n-1].Price
		out.Points = diffed
	}

	out.Transform = transform
	return out, nil
}
