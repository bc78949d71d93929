package operations

import (
	"sync"
	"time"

	"btcforecast/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState carries the data produced by each stage through a run
type RunState struct {
	mu sync.RWMutex

	ID        string
	Status    RunStatus
	StartTime time.Time
	EndTime   *time.Time

	// Stage outputs
	InputPath  string
	Raw        *domain.PriceSeries
	Prepared   *domain.PriceSeries
	Result     *domain.ForecastResult
	OutputPath string

	// Stages in execution order
	Stages []*StageState

	Error error
}

// NewRunState creates a pending run
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
	}
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = RunStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCompleted
}

// Fail marks the run as failed with the given error
func (s *RunState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusFailed
	s.Error = err
}

// Cancel marks the run as cancelled
func (s *RunState) Cancel(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCancelled
	s.Error = err
}

// Duration returns the run duration
func (s *RunState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// addStage appends the state of a stage about to run
func (s *RunState) addStage(stage *StageState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stages = append(s.Stages, stage)
}

// GetStage returns the state of a stage that was part of this run
func (s *RunState) GetStage(id string) *StageState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.Stages {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// GetRaw returns the loaded series
func (s *RunState) GetRaw() *domain.PriceSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Raw
}

// SetRaw stores the loaded series
func (s *RunState) SetRaw(series *domain.PriceSeries, inputPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Raw = series
	s.InputPath = inputPath
}

// GetPrepared returns the preprocessed series
func (s *RunState) GetPrepared() *domain.PriceSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Prepared
}

// SetPrepared stores the preprocessed series
func (s *RunState) SetPrepared(series *domain.PriceSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prepared = series
}

// GetResult returns the forecast result
func (s *RunState) GetResult() *domain.ForecastResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Result
}

// SetResult stores the forecast result
func (s *RunState) SetResult(result *domain.ForecastResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Result = result
}

// SetOutputPath records where the artifact was written
func (s *RunState) SetOutputPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OutputPath = path
}
