// Package common defines shared constants and sentinel errors used across
// the Tempora server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Vector / search errors.
	ErrVectorNotConfigured = errors.New("vector search not configured")

	// Validation errors (request body schema mismatch).
	ErrValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Assistant / billing errors.
	ErrInsufficientCredits = errors.New("insufficient credits")
)
