// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrSubscriberClosed  = errors.New("subscriber is closed")
	ErrEmptyChannel      = errors.New("channel name cannot be empty")
	ErrChannelForbidden  = errors.New("subscription to channel is not allowed")
	ErrStreamUnsupported = errors.New("response writer does not support streaming")
)

// Error codes for client responses.
const (
	ErrCodeChannelForbidden = "CHANNEL_FORBIDDEN"
	ErrCodeEmptyChannel     = "EMPTY_CHANNEL"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
