// Package launcher builds, runs, stops and cleans the Docker environment
// that hosts the forecasting notebooks.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "btcforecast/internal/errors"
)

const (
	dockerBinary        = "docker"
	defaultProbeEvery   = 500 * time.Millisecond
	cleanupTimeout      = 30 * time.Second
	readinessDialBudget = time.Second
)

// Launcher drives the container lifecycle of the notebook environment
type Launcher struct {
	cfg      EnvironmentConfig
	executor CommandExecutor
	logger   *slog.Logger

	probeEvery time.Duration
	portFree   func(port int) error
	dial       func(ctx context.Context, addr string) error
}

// New validates cfg and returns a launcher using executor for every
// process it starts.
func New(cfg EnvironmentConfig, executor CommandExecutor, logger *slog.Logger) (*Launcher, error) {
	if executor == nil {
		executor = ExecExecutor{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Launcher{
		cfg:        cfg,
		executor:   executor,
		logger:     logger.With(slog.String("component", "launcher"), slog.String("container", cfg.ContainerName)),
		probeEvery: defaultProbeEvery,
		portFree:   checkPortFree,
		dial:       dialTCP,
	}, nil
}

// Config returns the effective configuration
func (l *Launcher) Config() EnvironmentConfig {
	return l.cfg
}

// Build builds the image from the configured Dockerfile
func (l *Launcher) Build(ctx context.Context) error {
	start := time.Now()
	l.logger.Info("Building image",
		slog.String("image", l.cfg.ImageName),
		slog.String("dockerfile", l.cfg.Dockerfile),
		slog.String("context", l.cfg.BuildContext))

	if _, err := l.docker(ctx, "build", "-t", l.cfg.ImageName, "-f", l.cfg.Dockerfile, l.cfg.BuildContext); err != nil {
		return launchError("image build failed", err)
	}

	l.logger.Info("Image built", slog.String("image", l.cfg.ImageName), slog.Duration("duration", time.Since(start)))
	return nil
}

// Run starts the container in the background and waits until the notebook
// port accepts connections. On any failure after `docker run` the container
// is force-removed before the LaunchError is returned.
func (l *Launcher) Run(ctx context.Context) error {
	if err := l.portFree(l.cfg.Port); err != nil {
		return apperrors.NewLaunchError(fmt.Sprintf("host port %d is not available", l.cfg.Port), err).
			WithContext("port", l.cfg.Port)
	}

	args, err := l.runArgs()
	if err != nil {
		return apperrors.NewLaunchError("cannot prepare volumes", err)
	}

	if _, err := l.docker(ctx, args...); err != nil {
		l.forceRemove(ctx)
		return launchError("container failed to start", err)
	}

	if err := l.waitReady(ctx); err != nil {
		l.forceRemove(ctx)
		return apperrors.NewLaunchError("container did not become ready", err).
			WithContext("port", l.cfg.Port).
			WithContext("timeout", l.cfg.ReadyTimeout.String())
	}

	l.logger.Info("Notebook environment ready",
		slog.String("url", fmt.Sprintf("http://localhost:%d", l.cfg.Port)))
	return nil
}

// Stop stops the running container. Stopping a container that does not
// exist is not an error.
func (l *Launcher) Stop(ctx context.Context) error {
	if _, err := l.docker(ctx, "stop", l.cfg.ContainerName); err != nil {
		if isNotFound(err) {
			l.logger.Info("Container not running")
			return nil
		}
		return launchError("container failed to stop", err)
	}
	l.logger.Info("Container stopped")
	return nil
}

// Clean removes the container, if present, and the image
func (l *Launcher) Clean(ctx context.Context) error {
	if _, err := l.docker(ctx, "rm", "-f", l.cfg.ContainerName); err != nil && !isNotFound(err) {
		return launchError("container removal failed", err)
	}
	if _, err := l.docker(ctx, "rmi", l.cfg.ImageName); err != nil && !isNotFound(err) {
		return launchError("image removal failed", err)
	}
	l.logger.Info("Environment cleaned", slog.String("image", l.cfg.ImageName))
	return nil
}

// Up builds and runs the environment, then streams container logs until ctx
// is cancelled, and finally stops the container.
func (l *Launcher) Up(ctx context.Context) error {
	if err := l.Build(ctx); err != nil {
		return err
	}
	if err := l.Run(ctx); err != nil {
		return err
	}

	streamErr := l.executor.Stream(ctx, l.logLine, dockerBinary, "logs", "-f", l.cfg.ContainerName)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	stopErr := l.Stop(stopCtx)

	if ctx.Err() == nil {
		// Log streaming ended on its own, so the container exited.
		if streamErr == nil {
			streamErr = errors.New("log stream closed")
		}
		return launchError("container exited unexpectedly", streamErr)
	}
	return stopErr
}

func (l *Launcher) runArgs() ([]string, error) {
	volumes, err := absoluteVolumes(l.cfg.Volumes)
	if err != nil {
		return nil, err
	}

	args := []string{
		"run", "-d", "--rm",
		"--name", l.cfg.ContainerName,
		"-p", fmt.Sprintf("%d:%d", l.cfg.Port, l.cfg.ContainerPort),
	}
	for _, v := range volumes {
		args = append(args, "-v", v.String())
	}
	return append(args, l.cfg.ImageName), nil
}

// waitReady polls the container state and the host port, paced by a rate
// limiter, until the port accepts a connection or ReadyTimeout elapses.
func (l *Launcher) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ReadyTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(l.probeEvery), 1)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(l.cfg.Port))

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("gave up after %d probes: %w", attempt-1, err)
		}

		out, err := l.docker(ctx, "inspect", "-f", "{{.State.Running}}", l.cfg.ContainerName)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("container exited: %w", err)
		}
		if strings.TrimSpace(string(out)) != "true" {
			return errors.New("container exited")
		}

		if err := l.dial(ctx, addr); err == nil {
			l.logger.Debug("Port accepting connections", slog.Int("probes", attempt))
			return nil
		}
	}
}

// forceRemove removes the container even when ctx is already cancelled
func (l *Launcher) forceRemove(ctx context.Context) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if _, err := l.docker(rmCtx, "rm", "-f", l.cfg.ContainerName); err != nil && !isNotFound(err) {
		l.logger.Error("Failed to remove container", slog.String("error", err.Error()))
	}
}

func (l *Launcher) docker(ctx context.Context, args ...string) ([]byte, error) {
	l.logger.Debug("Executing docker", slog.String("args", strings.Join(args, " ")))
	return l.executor.Run(ctx, dockerBinary, args...)
}

func (l *Launcher) logLine(line string) {
	l.logger.Info("container", slog.String("line", line))
}

// launchError wraps a command failure, surfacing the process exit code
func launchError(msg string, err error) *apperrors.AppError {
	appErr := apperrors.NewLaunchError(msg, err)
	var ce *CommandError
	if errors.As(err, &ce) {
		appErr.WithContext("exit_code", ce.ExitCode).WithContext("command", ce.Command)
	}
	return appErr
}

func isNotFound(err error) bool {
	var ce *CommandError
	if !errors.As(err, &ce) {
		return false
	}
	out := strings.ToLower(ce.Output)
	return strings.Contains(out, "no such container") || strings.Contains(out, "no such image")
}

// checkPortFree reports whether the host port can be bound
func checkPortFree(port int) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	return ln.Close()
}

func dialTCP(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: readinessDialBudget}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
