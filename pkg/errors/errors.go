package errors

import (
	"errors"
	"fmt"
)

// Domain error types for the visualization engine

var (
	// ErrInvalidEvent indicates an inbound event failed validation
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnknownEventKind indicates an event with an unrecognized kind tag
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrEngineClosed indicates the engine was already shut down
	ErrEngineClosed = errors.New("engine closed")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")
)

// Feed-specific errors

var (
	// ErrFeedNotConnected indicates the upstream feed is not connected
	ErrFeedNotConnected = errors.New("feed not connected")

	// ErrFeedSubscriptionFailed indicates the feed subscription failed
	ErrFeedSubscriptionFailed = errors.New("feed subscription failed")

	// ErrFeedReconnectFailed indicates feed reconnection failed
	ErrFeedReconnectFailed = errors.New("feed reconnection failed")

	// ErrFeedMaxReconnectAttempts indicates max reconnection attempts reached
	ErrFeedMaxReconnectAttempts = errors.New("max feed reconnection attempts reached")
)

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap makes every validation error match ErrInvalidEvent
func (e *ValidationError) Unwrap() error {
	return ErrInvalidEvent
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
