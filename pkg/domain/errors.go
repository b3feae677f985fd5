package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation                = errors.New("validation error")
	ErrUniqueConstraintViolation = errors.New("unique constraint violation")
	ErrIndexConflict             = errors.New("index conflict")
	ErrTooManyTextIndexes        = errors.New("too many text indexes")
	ErrNotFound                  = errors.New("not found")
	ErrCancelled                 = errors.New("operation cancelled")
	ErrCollectionExists          = errors.New("collection already exists")
)

// Cancelled wraps a context error so that it matches both ErrCancelled and
// the original context error.
func Cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// CheckContext returns a Cancelled error when ctx is done.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Cancelled(err)
	}
	return nil
}

// HTTPStatusCode maps an error from the taxonomy to an HTTP status.
func HTTPStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUniqueConstraintViolation),
		errors.Is(err, ErrIndexConflict),
		errors.Is(err, ErrTooManyTextIndexes),
		errors.Is(err, ErrCollectionExists):
		return http.StatusConflict
	case errors.Is(err, ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns a short machine-readable name for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrUniqueConstraintViolation):
		return "UniqueConstraintViolation"
	case errors.Is(err, ErrIndexConflict):
		return "IndexConflict"
	case errors.Is(err, ErrTooManyTextIndexes):
		return "TooManyTextIndexes"
	case errors.Is(err, ErrCollectionExists):
		return "CollectionExists"
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	default:
		return "InternalError"
	}
}
