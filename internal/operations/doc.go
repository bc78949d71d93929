// Package operations runs the forecasting pipeline as a sequence of stages.
//
// A run moves a single RunState through the registered stages:
//
//	load      read the raw price table                  -> RunState.Raw
//	prepare   resample, fill and transform the series    -> RunState.Prepared
//	forecast  fit the model and predict the horizon      -> RunState.Result
//	write     persist the forecast artifact              -> RunState.OutputPath
//
// Manager executes any subset of the registered stages in registration
// order and stops at the first failure. A stage whose input has not been
// produced fails with a DEPENDENCY error instead of running. Every stage gets
// its own span and stage metrics, and each run is recorded in the history
// ledger.
//
// Example usage:
//
//	registry := operations.NewRegistry()
//	registry.Register(operations.NewLoadStage(loader, cfg.Input.Path, cfg.Input.SeriesName))
//	registry.Register(operations.NewPrepareStage(preprocessor, prepareCfg))
//	registry.Register(operations.NewForecastStage(runner, cfg.Model.ToDomain(), cfg.Model.Horizon))
//	registry.Register(operations.NewWriteStage(writer, cfg.Output.Path, logger))
//
//	manager := operations.NewManager(registry, tracer, recorder, logger)
//	state, err := manager.Execute(ctx)
package operations
