package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewAppValidationError("horizon must be positive"),
			expected: "[VALIDATION] horizon must be positive",
		},
		{
			name:     "with cause",
			err:      NewDataFormatError("cannot open workbook", fmt.Errorf("zip: not a valid zip file")),
			expected: "[DATA_FORMAT] cannot open workbook: zip: not a valid zip file",
		},
		{
			name:     "write error names the path",
			err:      NewWriteError("out/forecast.csv", fmt.Errorf("permission denied")),
			expected: "[WRITE] failed to write out/forecast.csv: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_UnwrapThroughWrapping(t *testing.T) {
	root := fmt.Errorf("disk full")
	appErr := NewWriteError("forecast.csv", root)
	wrapped := fmt.Errorf("stage write: %w", appErr)

	assert.True(t, errors.Is(wrapped, root))
	assert.True(t, IsWrite(wrapped))
	assert.False(t, IsLaunch(wrapped))

	var target *AppError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "forecast.csv", target.Context["path"])
}

func TestNewInsufficientDataError(t *testing.T) {
	err := NewInsufficientDataError(5, 30)

	assert.True(t, IsInsufficientData(err))
	assert.Equal(t, 5, err.Context["points"])
	assert.Equal(t, 30, err.Context["min_points"])
	assert.Contains(t, err.Error(), "5 points")
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"data format", NewDataFormatError("missing price column", nil), IsDataFormat},
		{"insufficient data", NewInsufficientDataError(1, 2), IsInsufficientData},
		{"model fit", NewModelFitError("did not converge", nil), IsModelFit},
		{"write", NewWriteError("x.csv", nil), IsWrite},
		{"launch", NewLaunchError("port in use", nil), IsLaunch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(fmt.Errorf("plain error")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("unknown")))
	assert.Equal(t, 3, ExitCode(NewDataFormatError("bad", nil)))
	assert.Equal(t, 7, ExitCode(fmt.Errorf("wrapped: %w", NewLaunchError("bad", nil))))
	assert.Equal(t, 2, ExitCode(NewConfigError("bad", nil)))
}

func TestWithContext_InitializesMap(t *testing.T) {
	err := &AppError{Type: ErrTypeModelFit, Message: "m"}
	err.WithContext("order", "(1,1,1)")
	assert.Equal(t, "(1,1,1)", err.Context["order"])
}
