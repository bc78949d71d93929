package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"btcforecast/internal/config"
	"btcforecast/internal/dataprocessing"
	apperrors "btcforecast/internal/errors"
	"btcforecast/internal/exporter"
	"btcforecast/internal/forecast"
	"btcforecast/internal/history"
	"btcforecast/internal/infrastructure"
	"btcforecast/internal/operations"
	"btcforecast/pkg/contracts/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	code := 0
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		slog.Error("Forecast failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, "error:", err)
		code = apperrors.ExitCode(err)
	}

	infrastructure.CloseLogFile()
	os.Exit(code)
}

// options holds the command line flags
type options struct {
	configPath string
	input      string
	output     string
	horizon    int
	steps      string
	order      string
	auto       bool
	freq       string
	fill       string
	transform  string
	testSize   int
	confidence float64
	history    int
}

func parseFlags(args []string, stderr io.Writer) (*options, map[string]bool, error) {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (default: "+config.DefaultConfigFile+" or $"+config.EnvPrefix+"_CONFIG)")
	fs.StringVar(&opts.input, "input", "", "price table (.xlsx, .xlsm or .csv)")
	fs.StringVar(&opts.output, "out", "", "forecast artifact (.csv, .csv.zst or .xlsx); bare names go to the reports directory")
	fs.IntVar(&opts.horizon, "horizon", 0, "number of periods to forecast")
	fs.StringVar(&opts.steps, "steps", "", "comma-separated stages to run (load,prepare,forecast,write); default all")
	fs.StringVar(&opts.order, "order", "", "ARIMA order as p,d,q")
	fs.BoolVar(&opts.auto, "auto", false, "select the ARIMA order automatically")
	fs.StringVar(&opts.freq, "freq", "", "resampling frequency, e.g. 1d, 4h, 15m")
	fs.StringVar(&opts.fill, "fill", "", "gap fill policy: ffill, interpolate or drop")
	fs.StringVar(&opts.transform, "transform", "", "value transform: none, log, diff or logdiff")
	fs.IntVar(&opts.testSize, "test-size", 0, "hold out the last N points to score the model")
	fs.Float64Var(&opts.confidence, "confidence", 0, "prediction interval confidence in (0,1); 0 disables intervals")
	fs.IntVar(&opts.history, "history", 0, "print the last N recorded runs and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, apperrors.NewAppValidationError(fmt.Sprintf("unexpected arguments: %v", fs.Args()))
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set, nil
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(cfg *config.Config, opts *options, set map[string]bool) error {
	if set["input"] {
		cfg.Input.Path = opts.input
	}
	if set["out"] {
		cfg.Output.Path = opts.output
	}
	if set["horizon"] {
		cfg.Model.Horizon = opts.horizon
	}
	if set["order"] {
		order, err := parseOrder(opts.order)
		if err != nil {
			return err
		}
		cfg.Model.P, cfg.Model.D, cfg.Model.Q = order.P, order.D, order.Q
	}
	if set["auto"] {
		cfg.Model.Auto = opts.auto
	}
	if set["freq"] {
		freq, err := parseFrequency(opts.freq)
		if err != nil {
			return err
		}
		cfg.Prepare.Frequency = freq
	}
	if set["fill"] {
		cfg.Prepare.FillPolicy = opts.fill
	}
	if set["transform"] {
		cfg.Prepare.Transform = opts.transform
	}
	if set["test-size"] {
		cfg.Model.TestSize = opts.testSize
	}
	if set["confidence"] {
		cfg.Model.Confidence = opts.confidence
	}
	return nil
}

// parseOrder accepts "p,d,q" with optional parentheses
func parseOrder(s string) (domain.Order, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(s), "()"), ",")
	if len(parts) != 3 {
		return domain.Order{}, apperrors.NewAppValidationError(fmt.Sprintf("invalid order %q (want p,d,q)", s))
	}

	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return domain.Order{}, apperrors.NewAppValidationError(fmt.Sprintf("invalid order %q (want p,d,q)", s))
		}
		vals[i] = v
	}
	return domain.Order{P: vals[0], D: vals[1], Q: vals[2]}, nil
}

// parseFrequency accepts Go durations plus a "d" suffix for days
func parseFrequency(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, apperrors.NewAppValidationError(fmt.Sprintf("invalid frequency %q", s))
	}
	return d, nil
}

func parseSteps(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var steps []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			steps = append(steps, part)
		}
	}
	return steps
}

func prepareConfig(cfg *config.Config) dataprocessing.PrepareConfig {
	return dataprocessing.PrepareConfig{
		Frequency:  cfg.Prepare.Frequency,
		FillPolicy: dataprocessing.FillPolicy(cfg.Prepare.FillPolicy),
		Transform:  domain.Transform(cfg.Prepare.Transform),
		MinPoints:  cfg.Prepare.MinPoints,
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, set, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return apperrors.NewConfigError("failed to load configuration", err)
	}
	if err := applyFlags(cfg, opts, set); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return apperrors.NewConfigError("invalid configuration", err)
	}

	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return apperrors.NewConfigError("failed to resolve paths", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return apperrors.NewConfigError("failed to create directories", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}

	recorder, err := openRecorder(cfg, logger)
	if err != nil {
		return err
	}
	defer recorder.Close()

	if opts.history > 0 {
		return printHistory(stdout, recorder, opts.history)
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFromTelemetry(cfg.Telemetry), logger)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	tracer, err := operations.NewRunTracer(providers)
	if err != nil {
		return apperrors.NewConfigError("failed to create pipeline metrics", err)
	}

	registry := operations.NewRegistry()
	stages := []operations.Stage{
		operations.NewLoadStage(dataprocessing.NewLoader(logger), cfg.Input.Path, cfg.Input.SeriesName),
		operations.NewPrepareStage(dataprocessing.NewPreprocessor(logger), prepareConfig(cfg)),
		operations.NewForecastStage(forecast.NewRunner(forecast.ARIMAEstimator{}, logger), cfg.Model.ToDomain(), cfg.Model.Horizon),
		operations.NewWriteStage(exporter.NewForecastWriter(paths, logger), cfg.Output.Path, logger),
	}
	for _, stage := range stages {
		if err := registry.Register(stage); err != nil {
			return err
		}
	}

	logger.Info("Starting forecast",
		slog.String("version", config.AppVersion),
		slog.String("input", cfg.Input.Path),
		slog.String("output", cfg.Output.Path),
		slog.Int("horizon", cfg.Model.Horizon),
		slog.Bool("auto", cfg.Model.Auto))

	manager := operations.NewManager(registry, tracer, recorder, logger)
	state, runErr := manager.Execute(ctx, parseSteps(opts.steps)...)

	if cfg.Telemetry.MetricsFile != "" {
		if err := providers.WriteMetricsFile(cfg.Telemetry.MetricsFile); err != nil {
			logger.Warn("Failed to write metrics file", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		return runErr
	}

	printSummary(stdout, state)
	return nil
}

func openRecorder(cfg *config.Config, logger *slog.Logger) (history.Recorder, error) {
	if cfg.History.SqlitePath == "" {
		return history.NewNoopRecorder(), nil
	}
	rec, err := history.NewSQLiteRecorder(cfg.History.SqlitePath, logger)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to open run history", err)
	}
	return rec, nil
}

func printHistory(w io.Writer, recorder history.Recorder, limit int) error {
	sqlite, ok := recorder.(*history.SQLiteRecorder)
	if !ok {
		return apperrors.NewConfigError("run history is disabled; set history.sqlite_path", nil)
	}

	runs, err := sqlite.RecentRuns(limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %s  %-9s %8s", r.StartedAt.Local().Format(time.DateTime), r.RunID, r.Status, r.Duration.Round(time.Millisecond))
		if r.Result != nil {
			line += fmt.Sprintf("  order=%s aic=%.2f", r.Result.Order, r.Result.AIC)
		}
		if r.ErrorKind != "" {
			line += "  error=" + r.ErrorKind
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func printSummary(w io.Writer, state *operations.RunState) {
	fmt.Fprintf(w, "run %s completed in %s\n", state.ID, state.Duration().Round(time.Millisecond))
	if raw := state.GetRaw(); raw != nil {
		fmt.Fprintf(w, "  series:   %s (%d points, %s to %s)\n", raw.Name, raw.Len(),
			raw.First().Timestamp.Format(time.DateOnly), raw.Last().Timestamp.Format(time.DateOnly))
	}
	if res := state.GetResult(); res != nil {
		fmt.Fprintf(w, "  model:    ARIMA%s  AIC %.2f  BIC %.2f  Ljung-Box p %.3f\n", res.Order, res.AIC, res.BIC, res.LjungBoxPValue)
		if ev := res.Evaluation; ev != nil {
			fmt.Fprintf(w, "  holdout:  %d points  RMSE %.2f  MAE %.2f  MAPE %.2f%%\n", ev.TestSize, ev.RMSE, ev.MAE, ev.MAPE)
		}
		if n := len(res.Points); n > 0 {
			p := res.Points[n-1]
			fmt.Fprintf(w, "  forecast: %d points, %s -> %.2f\n", n, p.Timestamp.Format(time.DateOnly), p.Predicted)
		}
	}
	if state.OutputPath != "" {
		fmt.Fprintf(w, "  written:  %s\n", state.OutputPath)
	}
}
