package operations

import (
	"context"
	"log/slog"

	"btcforecast/internal/dataprocessing"
	"btcforecast/pkg/contracts/domain"
)

// LoadStage reads the input table into RunState.Raw
type LoadStage struct {
	BaseStage
	loader     SeriesLoader
	path       string
	seriesName string
}

// NewLoadStage creates the load stage. A non-empty seriesName replaces the
// name derived from the file.
func NewLoadStage(loader SeriesLoader, path, seriesName string) *LoadStage {
	return &LoadStage{
		BaseStage:  NewBaseStage(StageIDLoad, StageNameLoad),
		loader:     loader,
		path:       path,
		seriesName: seriesName,
	}
}

// Execute implements Stage
func (s *LoadStage) Execute(ctx context.Context, state *RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	series, err := s.loader.Load(s.path)
	if err != nil {
		return err
	}
	if s.seriesName != "" {
		series.Name = s.seriesName
	}

	state.SetRaw(series, s.path)
	return nil
}

// PrepareStage turns RunState.Raw into RunState.Prepared
type PrepareStage struct {
	BaseStage
	preparer SeriesPreparer
	cfg      dataprocessing.PrepareConfig
}

// NewPrepareStage creates the prepare stage
func NewPrepareStage(preparer SeriesPreparer, cfg dataprocessing.PrepareConfig) *PrepareStage {
	return &PrepareStage{
		BaseStage: NewBaseStage(StageIDPrepare, StageNamePrepare),
		preparer:  preparer,
		cfg:       cfg,
	}
}

// Execute implements Stage
func (s *PrepareStage) Execute(ctx context.Context, state *RunState) error {
	raw := state.GetRaw()
	if raw == nil {
		return NewMissingInputError(s.ID(), "a loaded series", StageIDLoad)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prepared, err := s.preparer.Prepare(raw, s.cfg)
	if err != nil {
		return err
	}

	state.SetPrepared(prepared)
	return nil
}

// ForecastStage fits the model on RunState.Prepared and stores RunState.Result
type ForecastStage struct {
	BaseStage
	runner  ForecastRunner
	cfg     domain.ModelConfig
	horizon int
}

// NewForecastStage creates the forecast stage
func NewForecastStage(runner ForecastRunner, cfg domain.ModelConfig, horizon int) *ForecastStage {
	return &ForecastStage{
		BaseStage: NewBaseStage(StageIDForecast, StageNameForecast),
		runner:    runner,
		cfg:       cfg,
		horizon:   horizon,
	}
}

// Execute implements Stage
func (s *ForecastStage) Execute(ctx context.Context, state *RunState) error {
	prepared := state.GetPrepared()
	if prepared == nil {
		return NewMissingInputError(s.ID(), "a prepared series", StageIDPrepare)
	}

	result, err := s.runner.Run(ctx, prepared, s.cfg, s.horizon)
	if err != nil {
		return err
	}

	state.SetResult(result)
	return nil
}

// WriteStage persists RunState.Result
type WriteStage struct {
	BaseStage
	writer ResultWriter
	path   string
	logger *slog.Logger
}

// NewWriteStage creates the write stage
func NewWriteStage(writer ResultWriter, path string, logger *slog.Logger) *WriteStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteStage{
		BaseStage: NewBaseStage(StageIDWrite, StageNameWrite),
		writer:    writer,
		path:      path,
		logger:    logger,
	}
}

// Execute implements Stage
func (s *WriteStage) Execute(ctx context.Context, state *RunState) error {
	result := state.GetResult()
	if result == nil {
		return NewMissingInputError(s.ID(), "a forecast result", StageIDForecast)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	written, err := s.writer.Write(result, s.path)
	if err != nil {
		return err
	}

	state.SetOutputPath(written)
	s.logger.InfoContext(ctx, "Forecast artifact ready",
		slog.String("path", written),
		slog.String("run_id", result.RunID),
		slog.Int("horizon", result.Horizon()))
	return nil
}
