package errors

import (
	stderrors "errors"
)

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err wraps an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsDataFormat reports whether err is a DataFormatError
func IsDataFormat(err error) bool { return IsType(err, ErrTypeDataFormat) }

// IsInsufficientData reports whether err is an InsufficientDataError
func IsInsufficientData(err error) bool { return IsType(err, ErrTypeInsufficientData) }

// IsModelFit reports whether err is a ModelFitError
func IsModelFit(err error) bool { return IsType(err, ErrTypeModelFit) }

// IsWrite reports whether err is a WriteError
func IsWrite(err error) bool { return IsType(err, ErrTypeWrite) }

// IsLaunch reports whether err is a LaunchError
func IsLaunch(err error) bool { return IsType(err, ErrTypeLaunch) }

// exitCodes maps error kinds to process exit codes for the CLIs
var exitCodes = map[ErrorType]int{
	ErrTypeConfig:           2,
	ErrTypeValidation:       2,
	ErrTypeDataFormat:       3,
	ErrTypeInsufficientData: 4,
	ErrTypeModelFit:         5,
	ErrTypeWrite:            6,
	ErrTypeLaunch:           7,
	ErrTypeDependency:       8,
}

// ExitCode maps an error to a process exit status. Unknown errors exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := exitCodes[TypeOf(err)]; ok {
		return code
	}
	return 1
}
