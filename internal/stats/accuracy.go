package stats

import (
	"fmt"
	"math"
)

// Accuracy holds forecast error scores
type Accuracy struct {
	RMSE float64
	MAE  float64
	// MAPE is in percent and skips zero actuals
	MAPE float64
}

// ScoreForecast compares predictions with actual values of equal length
func ScoreForecast(actual, predicted []float64) (Accuracy, error) {
	if len(actual) != len(predicted) {
		return Accuracy{}, fmt.Errorf("length mismatch: %d actual vs %d predicted", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return Accuracy{}, fmt.Errorf("no values to score")
	}

	var sq, abs, pct float64
	pctCount := 0
	for i := range actual {
		e := actual[i] - predicted[i]
		sq += e * e
		abs += math.Abs(e)
		if actual[i] != 0 {
			pct += math.Abs(e / actual[i])
			pctCount++
		}
	}

	n := float64(len(actual))
	acc := Accuracy{
		RMSE: math.Sqrt(sq / n),
		MAE:  abs / n,
	}
	if pctCount > 0 {
		acc.MAPE = 100 * pct / float64(pctCount)
	}
	return acc, nil
}
