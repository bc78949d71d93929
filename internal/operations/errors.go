package operations

import (
	"fmt"

	apperrors "btcforecast/internal/errors"
)

// StageError reports the stage a run failed in. The cause keeps its
// AppError kind, so apperrors.IsDataFormat and friends see through it.
type StageError struct {
	StageID string
	Cause   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.StageID, e.Cause)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewMissingInputError reports a stage run before the stage producing its input
func NewMissingInputError(stageID, input, producer string) *apperrors.AppError {
	return apperrors.NewDependencyError(
		fmt.Sprintf("stage %s requires %s; run the %s stage first", stageID, input, producer)).
		WithContext("stage", stageID).
		WithContext("depends_on", producer)
}
