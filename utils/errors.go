package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// GetServiceError extracts a ServiceError from anywhere in the chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

func NewUnauthorizedError(message string) error {
	return ServiceError{
		Code:       ErrCodeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewBadRequestError(message string) error {
	return ServiceError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewConflictError(message string) error {
	return ServiceError{
		Code:       ErrCodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) error {
	return ServiceError{
		Code:       ErrCodeInternal,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewRateLimitError(message string) error {
	return ServiceError{
		Code:       ErrCodeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewEmergencyNotFoundError() error {
	return NewNotFoundError("Emergency")
}

// ValidationError is an unmet precondition for leaving a wizard step. The
// transition is blocked and the user can correct the input.
type ValidationError struct {
	Step   int    `json:"step"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: %s", e.Step, e.Reason)
}

func NewValidationError(step int, reason string) error {
	return &ValidationError{Step: step, Reason: reason}
}

type LocationErrorKind string

const (
	LocationPermissionDenied    LocationErrorKind = "PERMISSION_DENIED"
	LocationPositionUnavailable LocationErrorKind = "POSITION_UNAVAILABLE"
	LocationTimeout             LocationErrorKind = "TIMEOUT"
)

// LocationError classifies a failed geolocation request. It is reported as
// a warning alongside the fallback fix, never as a failure.
type LocationError struct {
	Kind    LocationErrorKind `json:"kind"`
	Message string            `json:"message"`
	Cause   error             `json:"-"`
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LocationError) Unwrap() error {
	return e.Cause
}

func NewLocationError(kind LocationErrorKind, cause error) *LocationError {
	var message string
	switch kind {
	case LocationPermissionDenied:
		message = "Location access denied. Using campus center."
	case LocationTimeout:
		message = "Location request timeout. Using campus center."
	default:
		kind = LocationPositionUnavailable
		message = "Location unavailable. Using campus center."
	}
	return &LocationError{Kind: kind, Message: message, Cause: cause}
}

// DispatchError is a single notification channel failure.
type DispatchError struct {
	Channel  string
	ReportID string
	Cause    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for %s: %v", e.Channel, e.ReportID, e.Cause)
}

func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// RemoteError wraps a failure talking to the report store. Local effects
// that already happened are kept; the caller may retry.
type RemoteError struct {
	Op    string
	Cause error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Cause)
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

func NewRemoteError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &RemoteError{Op: op, Cause: cause}
}

// Error code constants
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeRemote         = "REMOTE_STORE_ERROR"
)

var (
	ErrSubmissionInFlight = NewConflictError("A submission is already in progress")
	ErrWizardClosed       = NewNotFoundError("Wizard")
)
