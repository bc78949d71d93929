package forecast

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcforecast/internal/arima"
	apperrors "btcforecast/internal/errors"
	"btcforecast/internal/infrastructure"
	"btcforecast/pkg/contracts/domain"
)

var start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeModel struct {
	mean     []float64
	variance []float64
	summary  *arima.Summary
}

func (f *fakeModel) Predict(steps int) ([]float64, error) { return f.mean[:steps], nil }

func (f *fakeModel) ForecastVariance(steps, extraD int) ([]float64, error) {
	return f.variance[:steps], nil
}

func (f *fakeModel) Summary() *arima.Summary { return f.summary }

type fakeEstimator struct {
	mu    sync.Mutex
	calls []domain.Order
	fit   func(values []float64, order domain.Order) (Model, error)
}

func (f *fakeEstimator) Fit(values []float64, order domain.Order) (Model, error) {
	f.mu.Lock()
	f.calls = append(f.calls, order)
	f.mu.Unlock()
	return f.fit(values, order)
}

func constantModel(mean, variance float64) func([]float64, domain.Order) (Model, error) {
	return func(_ []float64, _ domain.Order) (Model, error) {
		m := &fakeModel{summary: &arima.Summary{AIC: 1, BIC: 2}}
		for i := 0; i < 64; i++ {
			m.mean = append(m.mean, mean)
			m.variance = append(m.variance, variance*float64(i+1))
		}
		return m, nil
	}
}

func dailySeries(values []float64) *domain.PriceSeries {
	points := make([]domain.PricePoint, len(values))
	for i, v := range values {
		points[i] = domain.PricePoint{Timestamp: start.AddDate(0, 0, i), Price: v}
	}
	s := domain.NewPriceSeries("BTC-USD", points)
	s.Frequency = 24 * time.Hour
	return s
}

func randomWalkPrices(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	level := 30000.0
	for i := range out {
		level += 20 + 400*rng.NormFloat64()
		out[i] = level
	}
	return out
}

func TestRun_DailyYearThirtyDayHorizon(t *testing.T) {
	series := dailySeries(randomWalkPrices(365, 1))
	runner := NewRunner(nil, nil)

	result, err := runner.Run(context.Background(), series, domain.DefaultModelConfig(), 30)
	require.NoError(t, err)

	require.Equal(t, 30, result.Horizon())
	last := series.Last().Timestamp
	for k, p := range result.Points {
		assert.True(t, p.Timestamp.After(last))
		assert.True(t, p.Timestamp.Equal(last.AddDate(0, 0, k+1)), "point %d at %s", k, p.Timestamp)
		assert.LessOrEqual(t, p.Lower, p.Predicted)
		assert.GreaterOrEqual(t, p.Upper, p.Predicted)
	}
	assert.True(t, result.HasInterval)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Equal(t, domain.Order{P: 1, D: 1, Q: 1}, result.Order)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "BTC-USD", result.SeriesName)
	assert.False(t, result.GeneratedAt.IsZero())
}

func TestRun_IntervalFromMedianSpacing(t *testing.T) {
	series := dailySeries(randomWalkPrices(60, 2))
	series.Frequency = 0

	result, err := NewRunner(&fakeEstimator{fit: constantModel(1, 1)}, nil).
		Run(context.Background(), series, domain.DefaultModelConfig(), 3)
	require.NoError(t, err)
	assert.True(t, result.Points[2].Timestamp.Equal(series.Last().Timestamp.AddDate(0, 0, 3)))
}

func TestRun_Errors(t *testing.T) {
	series := dailySeries(randomWalkPrices(40, 3))
	short := dailySeries(randomWalkPrices(20, 3))
	single := dailySeries([]float64{1})
	single.Frequency = 0

	tests := []struct {
		name    string
		series  *domain.PriceSeries
		cfg     func(*domain.ModelConfig)
		horizon int
		want    string
	}{
		{"zero horizon", series, nil, 0, "horizon must be positive"},
		{"negative horizon", series, nil, -5, "horizon must be positive"},
		{"unknown criterion", series, func(c *domain.ModelConfig) { c.Criterion = "mse" }, 5, "invalid model configuration"},
		{"confidence out of range", series, func(c *domain.ModelConfig) { c.Confidence = 1 }, 5, "invalid model configuration"},
		{"order too large", short, func(c *domain.ModelConfig) { c.Order = domain.Order{P: 10, D: 2, Q: 10} }, 5, "needs at least 32 observations, have 20"},
		{"test size covers series", series, func(c *domain.ModelConfig) { c.TestSize = 40 }, 5, "leaves no training data"},
		{"empty series", dailySeries(nil), nil, 5, "series is empty"},
		{"single point", single, nil, 5, "sampling interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultModelConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			_, err := NewRunner(nil, nil).Run(context.Background(), tt.series, cfg, tt.horizon)
			require.Error(t, err)
			assert.True(t, apperrors.IsModelFit(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil, nil).Run(ctx, dailySeries(randomWalkPrices(50, 4)), domain.DefaultModelConfig(), 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NoInterval(t *testing.T) {
	cfg := domain.DefaultModelConfig()
	cfg.Confidence = 0

	result, err := NewRunner(&fakeEstimator{fit: constantModel(5, 1)}, nil).
		Run(context.Background(), dailySeries(randomWalkPrices(50, 5)), cfg, 4)
	require.NoError(t, err)

	assert.False(t, result.HasInterval)
	for _, p := range result.Points {
		assert.Equal(t, 5.0, p.Predicted)
		assert.Zero(t, p.Lower)
		assert.Zero(t, p.Upper)
	}
}

func TestRun_InvertsDiffTransform(t *testing.T) {
	series := dailySeries([]float64{10, -5, 20})
	series.Transform = domain.TransformDiff
	series.Anchor = 1000

	cfg := domain.DefaultModelConfig()
	result, err := NewRunner(&fakeEstimator{fit: constantModel(2, 4)}, nil).
		Run(context.Background(), series, cfg, 3)
	require.NoError(t, err)

	z := 1.959964
	for k, p := range result.Points {
		want := 1000 + 2*float64(k+1)
		half := z * math.Sqrt(4*float64(k+1))
		assert.InDelta(t, want, p.Predicted, 1e-9)
		assert.InDelta(t, want-half, p.Lower, 1e-2)
		assert.InDelta(t, want+half, p.Upper, 1e-2)
	}
}

func TestRun_InvertsLogTransform(t *testing.T) {
	series := dailySeries([]float64{math.Log(100), math.Log(101), math.Log(102)})
	series.Transform = domain.TransformLog

	result, err := NewRunner(&fakeEstimator{fit: constantModel(math.Log(200), 0.01)}, nil).
		Run(context.Background(), series, domain.DefaultModelConfig(), 2)
	require.NoError(t, err)

	for _, p := range result.Points {
		assert.InDelta(t, 200, p.Predicted, 1e-9)
		assert.Less(t, p.Lower, p.Predicted)
		assert.Greater(t, p.Upper, p.Predicted)
	}
}

func TestRun_HoldoutEvaluation(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + 2*float64(i)
	}

	cfg := domain.DefaultModelConfig()
	cfg.Order = domain.Order{D: 1}
	cfg.TestSize = 10

	result, err := NewRunner(nil, nil).Run(context.Background(), dailySeries(values), cfg, 5)
	require.NoError(t, err)

	require.NotNil(t, result.Evaluation)
	assert.Equal(t, 50, result.Evaluation.TrainSize)
	assert.Equal(t, 10, result.Evaluation.TestSize)
	assert.InDelta(t, 0, result.Evaluation.RMSE, 1e-6)
	assert.InDelta(t, 0, result.Evaluation.MAPE, 1e-6)
	// the future forecast is refit on the full series
	assert.InDelta(t, 100+2*60.0, result.Points[0].Predicted, 1e-6)
}

func TestRun_HoldoutOnDifferencedLogSeries(t *testing.T) {
	// log prices growing 1% a day, differenced: every value is log(1.01)
	values := make([]float64, 40)
	for i := range values {
		values[i] = math.Log(1.01)
	}
	series := dailySeries(values)
	series.Transform = domain.TransformLogDiff
	series.Anchor = math.Log(500)

	cfg := domain.DefaultModelConfig()
	cfg.Order = domain.Order{}
	cfg.TestSize = 5

	result, err := NewRunner(nil, nil).Run(context.Background(), series, cfg, 1)
	require.NoError(t, err)

	assert.InDelta(t, 0, result.Evaluation.MAPE, 1e-6)
	assert.InDelta(t, 500*1.01, result.Points[0].Predicted, 1e-6)
}

func TestRun_EnforceStationarity(t *testing.T) {
	cfg := domain.DefaultModelConfig()
	cfg.Order = domain.Order{P: 1}
	cfg.EnforceStationarity = true

	_, err := NewRunner(nil, nil).Run(context.Background(), dailySeries(randomWalkPrices(300, 6)), cfg, 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsModelFit(err))
	assert.Contains(t, err.Error(), "increase d")
}

func TestRun_UsesRunIDFromContext(t *testing.T) {
	ctx := infrastructure.WithRunID(context.Background(), "run-42")

	result, err := NewRunner(&fakeEstimator{fit: constantModel(1, 1)}, nil).
		Run(ctx, dailySeries(randomWalkPrices(30, 7)), domain.DefaultModelConfig(), 1)
	require.NoError(t, err)
	assert.Equal(t, "run-42", result.RunID)
}

func TestRun_NonFiniteForecast(t *testing.T) {
	est := &fakeEstimator{fit: constantModel(math.Inf(1), 1)}

	_, err := NewRunner(est, nil).Run(context.Background(), dailySeries(randomWalkPrices(30, 8)), domain.DefaultModelConfig(), 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsModelFit(err))
}

func TestRun_EstimatorFailure(t *testing.T) {
	est := &fakeEstimator{fit: func([]float64, domain.Order) (Model, error) {
		return nil, arima.ErrNonFiniteEstimate
	}}

	_, err := NewRunner(est, nil).Run(context.Background(), dailySeries(randomWalkPrices(30, 9)), domain.DefaultModelConfig(), 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsModelFit(err))
	assert.True(t, errors.Is(err, arima.ErrNonFiniteEstimate))
}
