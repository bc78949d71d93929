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
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"btcforecast/internal/config"
	apperrors "btcforecast/internal/errors"
	"btcforecast/internal/infrastructure"
	"btcforecast/internal/launcher"
)

const (
	targetUp    = "up"
	targetBuild = "build"
	targetRun   = "run"
	targetStop  = "stop"
	targetClean = "clean"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], launcher.ExecExecutor{})
	stop()

	code := 0
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		slog.Error("Launcher failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, "error:", err)
		code = apperrors.ExitCode(err)
	}

	infrastructure.CloseLogFile()
	os.Exit(code)
}

// volumeFlags collects repeated -volume host:container values
type volumeFlags []launcher.Volume

func (v *volumeFlags) String() string {
	parts := make([]string, len(*v))
	for i, vol := range *v {
		parts[i] = vol.String()
	}
	return strings.Join(parts, ",")
}

func (v *volumeFlags) Set(s string) error {
	vol, err := launcher.ParseVolume(s)
	if err != nil {
		return err
	}
	*v = append(*v, vol)
	return nil
}

type options struct {
	target      string
	configPath  string
	image       string
	port        int
	volumes     volumeFlags
	logLevel    string
	metricsFile string
}

func parseFlags(args []string, stderr io.Writer) (*options, map[string]bool, error) {
	fs := flag.NewFlagSet("launcher", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.target, "target", targetUp, "action: up, build, run, stop or clean")
	fs.StringVar(&opts.configPath, "config", "", "environment file with image_name, port and volumes (e.g. "+config.DefaultLauncherFile+")")
	fs.StringVar(&opts.image, "image", "", "image name")
	fs.IntVar(&opts.port, "port", launcher.DefaultContainerPort, "host port published for the notebook server")
	fs.Var(&opts.volumes, "volume", "bind mount as host:container (repeatable)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write launcher metrics in Prometheus text format to this file")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, apperrors.NewAppValidationError(fmt.Sprintf("unexpected arguments: %v", fs.Args()))
	}

	switch opts.target {
	case targetUp, targetBuild, targetRun, targetStop, targetClean:
	default:
		return nil, nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown target %q", opts.target))
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set, nil
}

// environmentConfig loads the environment file when one is given and
// overlays explicitly set flags on top of it.
func environmentConfig(opts *options, set map[string]bool) (launcher.EnvironmentConfig, error) {
	var cfg launcher.EnvironmentConfig
	if opts.configPath != "" {
		loaded, err := launcher.LoadEnvironmentConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	} else {
		if opts.image == "" {
			return cfg, apperrors.NewConfigError("either -config or -image is required", nil)
		}
		cfg.Port = opts.port
	}

	if set["image"] {
		cfg.ImageName = opts.image
	}
	if set["port"] {
		cfg.Port = opts.port
	}
	if len(opts.volumes) > 0 {
		cfg.Volumes = opts.volumes
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, executor launcher.CommandExecutor) error {
	opts, set, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(config.LoggingConfig{Level: opts.logLevel, Output: "console"})
	if err != nil {
		logger = slog.Default()
	}

	envCfg, err := environmentConfig(opts, set)
	if err != nil {
		return err
	}

	l, err := launcher.New(envCfg, executor, logger)
	if err != nil {
		return err
	}

	metricExporter := "none"
	if opts.metricsFile != "" {
		metricExporter = "prometheus"
	}
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    "btcforecast-launcher",
		ServiceVersion: config.AppVersion,
		Environment:    "development",
		TraceExporter:  "none",
		MetricExporter: metricExporter,
		SampleRatio:    1.0,
	}, logger)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return apperrors.NewConfigError("failed to create launcher metrics", err)
	}

	start := time.Now()
	runErr := dispatch(ctx, l, opts.target)
	recordAttempt(ctx, metrics, opts.target, runErr)

	logger.Info("Launcher finished",
		slog.String("target", opts.target),
		slog.String("image", l.Config().ImageName),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("success", runErr == nil))

	if err := providers.WriteMetricsFile(opts.metricsFile); err != nil {
		logger.Warn("Failed to write metrics file", slog.String("error", err.Error()))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = providers.Shutdown(shutdownCtx)

	return runErr
}

func dispatch(ctx context.Context, l *launcher.Launcher, target string) error {
	switch target {
	case targetBuild:
		return l.Build(ctx)
	case targetRun:
		return l.Run(ctx)
	case targetStop:
		return l.Stop(ctx)
	case targetClean:
		return l.Clean(ctx)
	default:
		return l.Up(ctx)
	}
}

func recordAttempt(ctx context.Context, m *infrastructure.PipelineMetrics, target string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LaunchAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("status", status),
	))
}
