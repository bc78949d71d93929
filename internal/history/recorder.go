// Package history keeps a ledger of pipeline runs.
package history

import (
	"time"

	"btcforecast/pkg/contracts/domain"
)

// Run outcomes
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// StageRecord is the outcome of one pipeline stage
type StageRecord struct {
	StageID  string
	Status   string
	Duration time.Duration
	Error    string
}

// RunRecord holds everything recorded about a single pipeline run.
type RunRecord struct {
	RunID      string
	SeriesName string
	InputPath  string
	OutputPath string
	StartedAt  time.Time
	Duration   time.Duration
	Status     string
	ErrorKind  string // AppError type of the failure, if any
	Error      string

	InputPoints int
	Stages      []StageRecord

	// Set when the forecast stage completed
	Result *domain.ForecastResult
}

// Recorder persists run records for later analysis.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	Close() error
}
