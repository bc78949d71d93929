package operations

import (
	"context"

	"btcforecast/internal/dataprocessing"
	"btcforecast/pkg/contracts/domain"
)

// SeriesLoader reads a raw price table
type SeriesLoader interface {
	Load(path string) (*domain.PriceSeries, error)
}

// SeriesPreparer resamples and transforms a loaded series
type SeriesPreparer interface {
	Prepare(series *domain.PriceSeries, cfg dataprocessing.PrepareConfig) (*domain.PriceSeries, error)
}

// ForecastRunner fits a model and forecasts the horizon
type ForecastRunner interface {
	Run(ctx context.Context, series *domain.PriceSeries, cfg domain.ModelConfig, horizon int) (*domain.ForecastResult, error)
}

// ResultWriter persists a forecast result and returns where it landed
type ResultWriter interface {
	Write(result *domain.ForecastResult, path string) (string, error)
}
