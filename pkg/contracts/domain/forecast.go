package domain

import (
	"fmt"
	"time"
)

// Order holds the ARIMA (p, d, q) terms
type Order struct {
	P int `json:"p" yaml:"p" validate:"gte=0,lte=10"`
	D int `json:"d" yaml:"d" validate:"gte=0,lte=2"`
	Q int `json:"q" yaml:"q" validate:"gte=0,lte=10"`
}

// String renders the order as (p,d,q)
func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// ModelConfig configures a forecast run. The runner copies it, so callers may
// reuse a value across runs.
type ModelConfig struct {
	Order Order `json:"order" yaml:"order"`
	// Auto selects the order by information criterion instead of using Order.
	Auto      bool   `json:"auto" yaml:"auto"`
	MaxP      int    `json:"max_p" yaml:"max_p" validate:"gte=0,lte=10"`
	MaxD      int    `json:"max_d" yaml:"max_d" validate:"gte=0,lte=2"`
	MaxQ      int    `json:"max_q" yaml:"max_q" validate:"gte=0,lte=10"`
	Criterion string `json:"criterion" yaml:"criterion" validate:"omitempty,oneof=aic bic"`
	// Confidence is the interval coverage in (0,1). Zero disables intervals.
	Confidence float64 `json:"confidence" yaml:"confidence" validate:"gte=0,lt=1"`
	// TestSize holds out the last N points for evaluation.
	TestSize            int  `json:"test_size" yaml:"test_size" validate:"gte=0"`
	EnforceStationarity bool `json:"enforce_stationarity" yaml:"enforce_stationarity"`
	Workers             int  `json:"workers" yaml:"workers" validate:"gte=0,lte=64"`
}

// DefaultModelConfig returns the configuration used when none is supplied
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Order:      Order{P: 1, D: 1, Q: 1},
		MaxP:       3,
		MaxD:       2,
		MaxQ:       3,
		Criterion:  "aic",
		Confidence: 0.95,
		Workers:    4,
	}
}

// ForecastPoint is a single future prediction
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower,omitempty"`
	Upper     float64   `json:"upper,omitempty"`
}

// Evaluation holds holdout accuracy scores on the price scale
type Evaluation struct {
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	MAPE      float64 `json:"mape"`
}

// ForecastResult is the output of a forecast run
type ForecastResult struct {
	RunID          string          `json:"run_id"`
	SeriesName     string          `json:"series_name"`
	Order          Order           `json:"order"`
	Points         []ForecastPoint `json:"points"`
	HasInterval    bool            `json:"has_interval"`
	Confidence     float64         `json:"confidence,omitempty"`
	AIC            float64         `json:"aic"`
	BIC            float64         `json:"bic"`
	LjungBoxPValue float64         `json:"ljung_box_p_value"`
	Evaluation     *Evaluation     `json:"evaluation,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Horizon returns the number of forecast points
func (r *ForecastResult) Horizon() int {
	return len(r.Points)
}
