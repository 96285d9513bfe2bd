package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Failure categories for a job pipeline. Every error a pipeline stage returns
// wraps exactly one of these so the orchestrator and tests can classify it.
var (
	ErrAssetNotFound      = errors.New("asset not found")
	ErrDownloadFailure    = errors.New("asset download failed")
	ErrOCRFailure         = errors.New("ocr failed")
	ErrTranslationFailure = errors.New("translation failed")
	ErrValidationFailure  = errors.New("result validation failed")
	ErrPersistenceFailure = errors.New("persistence failed")
	ErrConfiguration      = errors.New("invalid configuration")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
