package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "btcforecast/internal/errors"
	"btcforecast/internal/history"
	"btcforecast/internal/infrastructure"
)

// Manager executes pipeline stages against a RunState
type Manager struct {
	registry *Registry
	tracer   *RunTracer
	recorder history.Recorder
	logger   *slog.Logger
}

// NewManager creates a manager. A nil tracer, recorder or logger is
// replaced by a no-op implementation.
func NewManager(registry *Registry, tracer *RunTracer, recorder history.Recorder, logger *slog.Logger) *Manager {
	if tracer == nil {
		tracer = NewNoopRunTracer()
	}
	if recorder == nil {
		recorder = history.NewNoopRecorder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		tracer:   tracer,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "pipeline")),
	}
}

// GetRegistry returns the stage registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// Execute runs the named stages (all registered stages when none are named)
// in registration order on a fresh RunState. The run ID comes from ctx when
// present.
func (m *Manager) Execute(ctx context.Context, stageIDs ...string) (*RunState, error) {
	runID := infrastructure.GetRunID(ctx)
	if runID == "" {
		runID = infrastructure.GenerateRunID()
		ctx = infrastructure.WithRunID(ctx, runID)
	}

	state := NewRunState(runID)
	return state, m.ExecuteState(ctx, state, stageIDs...)
}

// ExecuteState runs the named stages on an existing state, so a run can be
// resumed from outputs produced earlier. Execution stops at the first failing
// stage; later stages are marked skipped. The returned error is a *StageError
// whose cause keeps its AppError kind.
func (m *Manager) ExecuteState(ctx context.Context, state *RunState, stageIDs ...string) error {
	stages, err := m.registry.Select(stageIDs...)
	if err != nil {
		return apperrors.NewConfigError("invalid stage selection", err)
	}

	ids := make([]string, len(stages))
	for i, s := range stages {
		ids[i] = s.ID()
	}

	if infrastructure.GetRunID(ctx) == "" {
		ctx = infrastructure.WithRunID(ctx, state.ID)
	}
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, runSpan := m.tracer.TraceRun(ctx, state.ID, ids)

	state.Start()
	m.logger.InfoContext(ctx, "Pipeline run started",
		slog.String("run_id", state.ID),
		slog.Any("stages", ids))

	runErr := m.executeSequential(ctx, state, stages)

	switch {
	case runErr == nil:
		state.Complete()
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		state.Cancel(runErr)
	default:
		state.Fail(runErr)
	}

	m.tracer.RecordRunCompletion(ctx, runSpan, state.Status, state.Duration(), runErr)
	m.record(ctx, state)

	if runErr != nil {
		m.logger.ErrorContext(ctx, "Pipeline run failed",
			slog.String("run_id", state.ID),
			slog.String("status", string(state.Status)),
			slog.String("error_kind", string(apperrors.TypeOf(runErr))),
			slog.String("error", runErr.Error()),
			slog.Duration("duration", state.Duration()))
		return runErr
	}

	m.logger.InfoContext(ctx, "Pipeline run completed",
		slog.String("run_id", state.ID),
		slog.Duration("duration", state.Duration()))
	return nil
}

func (m *Manager) executeSequential(ctx context.Context, state *RunState, stages []Stage) error {
	for i, stage := range stages {
		stageState := NewStageState(stage.ID(), stage.Name())
		state.addStage(stageState)

		if err := ctx.Err(); err != nil {
			stageState.Skip("run cancelled")
			m.skipRemaining(state, stages[i+1:], "run cancelled")
			return &StageError{StageID: stage.ID(), Cause: err}
		}

		m.logger.InfoContext(ctx, "Executing stage",
			slog.String("stage", stage.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(stages)))

		if err := m.executeStage(ctx, state, stage, stageState); err != nil {
			m.skipRemaining(state, stages[i+1:], fmt.Sprintf("stage %s failed", stage.ID()))
			return &StageError{StageID: stage.ID(), Cause: err}
		}
	}
	return nil
}

func (m *Manager) executeStage(ctx context.Context, state *RunState, stage Stage, stageState *StageState) error {
	stageCtx, span := m.tracer.TraceStage(ctx, state.ID, stage.ID())

	stageState.Start()
	start := time.Now()
	err := stage.Execute(stageCtx, state)
	duration := time.Since(start)

	if err != nil {
		stageState.Fail(err)
		m.logger.ErrorContext(ctx, "Stage failed",
			slog.String("stage", stage.ID()),
			slog.String("error_kind", string(apperrors.TypeOf(err))),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration))
	} else {
		stageState.Complete()
		m.tracer.RecordStageOutput(stageCtx, stage.ID(), state)
		m.logger.InfoContext(ctx, "Stage completed",
			slog.String("stage", stage.ID()),
			slog.Duration("duration", duration))
	}

	m.tracer.RecordStageCompletion(stageCtx, span, stage.ID(), duration, err)
	return err
}

func (m *Manager) skipRemaining(state *RunState, stages []Stage, reason string) {
	for _, stage := range stages {
		st := NewStageState(stage.ID(), stage.Name())
		st.Skip(reason)
		state.addStage(st)
	}
}

// record writes the run to the history ledger. Ledger failures are logged
// and never fail the run.
func (m *Manager) record(ctx context.Context, state *RunState) {
	rec := &history.RunRecord{
		RunID:      state.ID,
		InputPath:  state.InputPath,
		OutputPath: state.OutputPath,
		StartedAt:  state.StartTime,
		Duration:   state.Duration(),
		Status:     history.StatusSucceeded,
		Result:     state.GetResult(),
	}
	if raw := state.GetRaw(); raw != nil {
		rec.SeriesName = raw.Name
		rec.InputPoints = raw.Len()
	}
	if state.Error != nil {
		rec.Status = history.StatusFailed
		rec.ErrorKind = string(apperrors.TypeOf(state.Error))
		rec.Error = state.Error.Error()
	}

	for _, st := range state.Stages {
		sr := history.StageRecord{
			StageID:  st.ID,
			Status:   string(st.GetStatus()),
			Duration: st.Duration(),
		}
		if st.Error != nil {
			sr.Error = st.Error.Error()
		}
		rec.Stages = append(rec.Stages, sr)
	}

	if err := m.recorder.RecordRun(rec); err != nil {
		m.logger.WarnContext(ctx, "Failed to record run history",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()))
	}
}
