package forecast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcforecast/internal/arima"
	apperrors "btcforecast/internal/errors"
	"btcforecast/pkg/contracts/domain"
)

// stationaryValues oscillates around 100 with period 7
func stationaryValues(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i%7-3)
	}
	return out
}

func scoredEstimator(scores map[domain.Order]float64) *fakeEstimator {
	return &fakeEstimator{fit: func(_ []float64, order domain.Order) (Model, error) {
		score, ok := scores[order]
		if !ok {
			return nil, errors.New("not in grid")
		}
		return &fakeModel{
			mean:     []float64{1, 1, 1},
			variance: []float64{1, 1, 1},
			summary:  &arima.Summary{Order: order, AIC: score, BIC: score + 100},
		}, nil
	}}
}

func autoConfig(workers int) domain.ModelConfig {
	cfg := domain.DefaultModelConfig()
	cfg.Auto = true
	cfg.MaxP = 1
	cfg.MaxQ = 1
	cfg.MaxD = 2
	cfg.Workers = workers
	return cfg
}

func TestSelectOrder_TieBreaks(t *testing.T) {
	est := scoredEstimator(map[domain.Order]float64{
		{P: 0, Q: 0}: 50,
		{P: 1, Q: 0}: 10,
		{P: 0, Q: 1}: 10,
		{P: 1, Q: 1}: 10,
	})
	runner := NewRunner(est, nil)

	order, err := runner.selectOrder(context.Background(), stationaryValues(120), autoConfig(4))
	require.NoError(t, err)
	assert.Equal(t, domain.Order{P: 0, D: 0, Q: 1}, order)
	assert.Len(t, est.calls, 4)
}

func TestSelectOrder_SkipsFailedCandidates(t *testing.T) {
	est := scoredEstimator(map[domain.Order]float64{
		{P: 1, Q: 1}: 3,
		{P: 0, Q: 0}: 7,
	})

	order, err := NewRunner(est, nil).selectOrder(context.Background(), stationaryValues(120), autoConfig(2))
	require.NoError(t, err)
	assert.Equal(t, domain.Order{P: 1, Q: 1}, order)
}

func TestSelectOrder_AllCandidatesFail(t *testing.T) {
	est := scoredEstimator(nil)

	_, err := NewRunner(est, nil).selectOrder(context.Background(), stationaryValues(120), autoConfig(2))
	require.Error(t, err)
	assert.True(t, apperrors.IsModelFit(err))
}

func TestSelectOrder_UsesCriterion(t *testing.T) {
	cfg := autoConfig(1)
	cfg.Criterion = "bic"

	est := scoredEstimator(map[domain.Order]float64{
		{P: 0, Q: 0}: 5,
		{P: 1, Q: 1}: 1,
	})
	order, err := NewRunner(est, nil).selectOrder(context.Background(), stationaryValues(120), cfg)
	require.NoError(t, err)
	assert.Equal(t, domain.Order{P: 1, Q: 1}, order)
}

func TestSelectOrder_ChoosesDifferencing(t *testing.T) {
	trend := stationaryValues(200)
	for i := range trend {
		trend[i] += 3 * float64(i)
	}

	est := scoredEstimator(map[domain.Order]float64{{P: 0, D: 1, Q: 0}: 1})
	order, err := NewRunner(est, nil).selectOrder(context.Background(), trend, autoConfig(2))
	require.NoError(t, err)
	assert.Equal(t, 1, order.D)
}

func TestSelectOrder_IndependentOfWorkers(t *testing.T) {
	values := randomWalkPrices(250, 10)

	cfg := autoConfig(1)
	cfg.MaxP, cfg.MaxQ = 2, 2

	serial, err := NewRunner(nil, nil).selectOrder(context.Background(), values, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := NewRunner(nil, nil).selectOrder(context.Background(), values, cfg)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestSelectOrder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(scoredEstimator(nil), nil).selectOrder(ctx, stationaryValues(120), autoConfig(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_AutoOrder(t *testing.T) {
	est := scoredEstimator(map[domain.Order]float64{
		{P: 0, Q: 0}: 9,
		{P: 1, Q: 0}: 4,
		{P: 0, Q: 1}: 6,
		{P: 1, Q: 1}: 5,
	})

	result, err := NewRunner(est, nil).Run(context.Background(), dailySeries(stationaryValues(120)), autoConfig(3), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.Order{P: 1}, result.Order)
	assert.Equal(t, 4.0, result.AIC)
}
