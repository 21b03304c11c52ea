// Package apperrors defines the error taxonomy shared by the taxonomy,
// aggregation and price-history packages. Handlers map these to HTTP
// status codes with errors.Is / errors.As.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means a required credential or setting is missing.
	// It aborts the whole operation.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation means the caller supplied empty or invalid input.
	// It is returned before any side effect.
	ErrValidation = errors.New("validation error")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDataShape means an upstream item could not be normalised.
	// Only the item is skipped, never the batch.
	ErrDataShape = errors.New("unexpected data shape")

	// ErrForbidden means the caller lacks the plan or role for an action.
	ErrForbidden = errors.New("forbidden")
)

// UpstreamError describes a single failed call to the external product API.
// It is recovered locally by skipping the affected unit of work.
type UpstreamError struct {
	Op     string // e.g. "search products", "product detail"
	Status int    // HTTP status, 0 for transport failures
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Validation wraps ErrValidation with a user-facing message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Configuration wraps ErrConfiguration with the name of the missing setting.
func Configuration(setting string) error {
	return fmt.Errorf("%w: %s is not set", ErrConfiguration, setting)
}
