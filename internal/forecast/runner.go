package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"btcforecast/internal/arima"
	apperrors "btcforecast/internal/errors"
	"btcforecast/internal/infrastructure"
	"btcforecast/internal/stats"
	"btcforecast/pkg/contracts/domain"
)

// Runner configures and invokes the estimator for one series
type Runner struct {
	estimator Estimator
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// NewRunner creates a runner. A nil estimator uses ARIMAEstimator and a nil
// logger falls back to slog.Default().
func NewRunner(estimator Estimator, logger *slog.Logger) *Runner {
	if estimator == nil {
		estimator = ARIMAEstimator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		estimator: estimator,
		logger:    logger.With(slog.String("component", "forecast_runner")),
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Run fits the configured model to series and forecasts horizon periods past
// its last observation. Every failure is reported as a ModelFitError.
func (r *Runner) Run(ctx context.Context, series *domain.PriceSeries, cfg domain.ModelConfig, horizon int) (*domain.ForecastResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if horizon <= 0 {
		return nil, apperrors.NewModelFitError(fmt.Sprintf("horizon must be positive, got %d", horizon), nil)
	}
	if err := r.validate.Struct(cfg); err != nil {
		return nil, apperrors.NewModelFitError("invalid model configuration", err)
	}
	if series.Len() == 0 {
		return nil, apperrors.NewModelFitError("series is empty", nil)
	}

	interval := series.Interval()
	if interval <= 0 {
		return nil, apperrors.NewModelFitError("cannot determine the sampling interval of a single-point series", nil)
	}

	values := series.Values()
	n := len(values)
	if cfg.TestSize >= n {
		return nil, apperrors.NewModelFitError(
			fmt.Sprintf("test size %d leaves no training data in %d points", cfg.TestSize, n), nil)
	}
	train := values[:n-cfg.TestSize]

	logger := r.logger.With(slog.String("series", series.Name))
	started := time.Now()

	order := cfg.Order
	if cfg.Auto {
		selected, err := r.selectOrder(ctx, train, cfg)
		if err != nil {
			return nil, err
		}
		order = selected
	}

	if cfg.EnforceStationarity && !stats.IsStationary(stats.DiffN(train, order.D)) {
		return nil, apperrors.NewModelFitError(
			fmt.Sprintf("series differenced %d time(s) is not stationary, increase d", order.D), nil).
			WithContext("order", order.String())
	}

	result := &domain.ForecastResult{
		RunID:       infrastructure.GetRunID(ctx),
		SeriesName:  series.Name,
		Order:       order,
		GeneratedAt: r.now().UTC(),
	}
	if result.RunID == "" {
		result.RunID = uuid.NewString()
	}

	if cfg.TestSize > 0 {
		eval, err := r.evaluate(series, values, order, cfg.TestSize)
		if err != nil {
			return nil, err
		}
		result.Evaluation = eval
		logger.InfoContext(ctx, "Holdout evaluation",
			slog.Int("train_size", eval.TrainSize),
			slog.Int("test_size", eval.TestSize),
			slog.Float64("rmse", eval.RMSE),
			slog.Float64("mae", eval.MAE),
			slog.Float64("mape", eval.MAPE))
	}

	model, err := r.fit(values, order)
	if err != nil {
		return nil, err
	}

	mean, err := model.Predict(horizon)
	if err != nil {
		return nil, apperrors.NewModelFitError("prediction failed", err)
	}

	predicted := toPriceScale(mean, series.Transform, series.Anchor)
	var lower, upper []float64
	if cfg.Confidence > 0 {
		extraD := 0
		if series.Transform.IsDifferenced() {
			extraD = 1
		}
		variance, err := model.ForecastVariance(horizon, extraD)
		if err != nil {
			return nil, apperrors.NewModelFitError("forecast variance failed", err)
		}
		lower, upper = boundsToPriceScale(mean, variance, stats.TwoSidedZ(cfg.Confidence), series.Transform, series.Anchor)
		result.HasInterval = true
		result.Confidence = cfg.Confidence
	}

	last := series.Last().Timestamp
	result.Points = make([]domain.ForecastPoint, horizon)
	for k := range result.Points {
		p := domain.ForecastPoint{
			Timestamp: last.Add(time.Duration(k+1) * interval),
			Predicted: predicted[k],
		}
		if result.HasInterval {
			p.Lower, p.Upper = lower[k], upper[k]
		}
		if !stats.AllFinite(p.Predicted, p.Lower, p.Upper) {
			return nil, apperrors.NewModelFitError("forecast contains non-finite values", nil).
				WithContext("order", order.String()).
				WithContext("step", k+1)
		}
		result.Points[k] = p
	}

	if summary := model.Summary(); summary != nil {
		result.AIC = summary.AIC
		result.BIC = summary.BIC
		if summary.LjungBox != nil {
			result.LjungBoxPValue = summary.LjungBox.PValue
		}
	}

	logger.InfoContext(ctx, "Forecast complete",
		slog.String("order", order.String()),
		slog.Int("observations", n),
		slog.Int("horizon", horizon),
		slog.Bool("interval", result.HasInterval),
		slog.Float64("aic", result.AIC),
		slog.Duration("duration", time.Since(started)))

	return result, nil
}

// fit wraps estimator failures as ModelFitError
func (r *Runner) fit(values []float64, order domain.Order) (Model, error) {
	model, err := r.estimator.Fit(values, order)
	if err == nil {
		return model, nil
	}

	msg := fmt.Sprintf("failed to fit ARIMA%s", order)
	if errors.Is(err, arima.ErrTooFewObservations) {
		msg = fmt.Sprintf("order %s needs at least %d observations, have %d",
			order, arima.MinObservations(order), len(values))
	}
	return nil, apperrors.NewModelFitError(msg, err).
		WithContext("order", order.String()).
		WithContext("observations", len(values))
}

// evaluate fits on all but the last testSize points and scores the holdout on the price scale
func (r *Runner) evaluate(series *domain.PriceSeries, values []float64, order domain.Order, testSize int) (*domain.Evaluation, error) {
	trainN := len(values) - testSize

	model, err := r.fit(values[:trainN], order)
	if err != nil {
		return nil, err
	}
	mean, err := model.Predict(testSize)
	if err != nil {
		return nil, apperrors.NewModelFitError("holdout prediction failed", err)
	}

	path := levels(values, series.Transform, series.Anchor)
	base := 0.0
	if series.Transform.IsDifferenced() {
		base = path[trainN-1]
	}

	actual := path[trainN:]
	if series.Transform.IsLog() {
		actual = toPriceScale(actual, domain.TransformLog, 0)
	}
	predicted := toPriceScale(mean, series.Transform, base)

	acc, err := stats.ScoreForecast(actual, predicted)
	if err != nil {
		return nil, apperrors.NewModelFitError("holdout scoring failed", err)
	}
	if !stats.AllFinite(acc.RMSE, acc.MAE, acc.MAPE) {
		return nil, apperrors.NewModelFitError("holdout scores are not finite", nil)
	}

	return &domain.Evaluation{
		TrainSize: trainN,
		TestSize:  testSize,
		RMSE:      acc.RMSE,
		MAE:       acc.MAE,
		MAPE:      acc.MAPE,
	}, nil
}

// criterionValue picks AIC or BIC from a fitted model
func criterionValue(m Model, criterion string) float64 {
	s := m.Summary()
	if s == nil {
		return math.Inf(1)
	}
	if criterion == "bic" {
		return s.BIC
	}
	return s.AIC
}
