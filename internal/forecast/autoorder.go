package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	apperrors "btcforecast/internal/errors"
	"btcforecast/internal/stats"
	"btcforecast/pkg/contracts/domain"
)

// candidate is one fitted order in the search grid
type candidate struct {
	order domain.Order
	score float64
	err   error
}

// better orders candidates by score, then by fewer terms, then by fewer AR terms
func (c candidate) better(other candidate) bool {
	if c.score != other.score {
		return c.score < other.score
	}
	if a, b := c.order.P+c.order.Q, other.order.P+other.order.Q; a != b {
		return a < b
	}
	return c.order.P < other.order.P
}

// selectOrder chooses d by unit-root testing, then fits every (p, q) up to
// MaxP and MaxQ concurrently and returns the order minimising the criterion.
// The choice does not depend on the number of workers.
func (r *Runner) selectOrder(ctx context.Context, values []float64, cfg domain.ModelConfig) (domain.Order, error) {
	d := stats.NDiffs(values, cfg.MaxD, "kpss")

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]candidate, 0, (cfg.MaxP+1)*(cfg.MaxQ+1))
	for p := 0; p <= cfg.MaxP; p++ {
		for q := 0; q <= cfg.MaxQ; q++ {
			results = append(results, candidate{order: domain.Order{P: p, D: d, Q: q}})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range results {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := &results[i]
			model, err := r.estimator.Fit(values, c.order)
			if err != nil {
				c.err = err
				c.score = math.Inf(1)
				return nil
			}
			c.score = criterionValue(model, cfg.Criterion)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Order{}, err
	}

	var (
		best     *candidate
		fitted   int
		firstErr error
	)
	for i := range results {
		c := results[i]
		if c.err != nil || math.IsNaN(c.score) || math.IsInf(c.score, 0) {
			if firstErr == nil && c.err != nil {
				firstErr = c.err
			}
			continue
		}
		fitted++
		if best == nil || c.better(*best) {
			best = &results[i]
		}
	}

	if best == nil {
		return domain.Order{}, apperrors.NewModelFitError(
			fmt.Sprintf("no candidate order with d=%d could be fitted", d), firstErr).
			WithContext("candidates", len(results))
	}

	criterion := cfg.Criterion
	if criterion == "" {
		criterion = "aic"
	}
	r.logger.InfoContext(ctx, "Selected model order",
		slog.String("order", best.order.String()),
		slog.String("criterion", criterion),
		slog.Float64("score", best.score),
		slog.Int("candidates", len(results)),
		slog.Int("fitted", fitted))

	return best.order, nil
}
