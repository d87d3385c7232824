package emulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/objones25/pkemu/internal/artifacts"
)

var (
	// ErrArtifactLoad is returned when the model artifacts are missing or inconsistent
	ErrArtifactLoad = artifacts.ErrArtifactLoad

	// ErrInvalidInput is returned for parameter vectors of the wrong length or with non-finite values
	ErrInvalidInput = errors.New("invalid input")

	// ErrOutOfBounds is returned under BoundsReject; it also matches ErrInvalidInput
	ErrOutOfBounds = fmt.Errorf("%w: parameters outside emulator bounds", ErrInvalidInput)

	// ErrPrediction is returned when a regressor fails or the reconstruction is not a valid spectrum
	ErrPrediction = errors.New("prediction failed")
)

// Error represents an emulator error with context
type Error struct {
	Op      string // Operation that failed
	Err     error  // Underlying error
	Context string // Additional context
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Context)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error
func NewError(op string, err error, context string) error {
	return &Error{
		Op:      op,
		Err:     err,
		Context: context,
	}
}

func predictionError(op string, cause error, context string) error {
	return NewError(op, fmt.Errorf("%w: %w", ErrPrediction, cause), context)
}

// IsInvalidInput checks if an error is an "invalid input" error, including out-of-bounds rejections
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsOutOfBounds checks if an error is an out-of-bounds rejection
func IsOutOfBounds(err error) bool {
	return errors.Is(err, ErrOutOfBounds)
}

// IsPrediction checks if an error is a prediction error
func IsPrediction(err error) bool {
	return errors.Is(err, ErrPrediction)
}

// IsArtifactLoad checks if an error is an artifact load error
func IsArtifactLoad(err error) bool {
	return errors.Is(err, ErrArtifactLoad)
}

// errorType labels an error for the errors metric
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrPrediction):
		return "prediction"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
