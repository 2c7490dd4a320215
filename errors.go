package livechat

import (
	"errors"
	"fmt"
)

// Error is the categorized error returned by livechat components.
// Callers branch on Code, usually through the Is… helpers below.
type Error struct {
	Code    string // One of the ErrCode… constants
	Message string // Human-readable context
	Err     error  // Wrapped cause, may be nil
}

// Error formats as "CODE: message" or "CODE: message: cause".
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for livechat operations.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates input validation failed.
	// Validation errors are surfaced to the caller and never retried.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid service configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a durable write or read failed.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeFanoutPartial indicates one or more push deliveries failed.
	// It is informational: the post that triggered the fan-out still succeeded.
	ErrCodeFanoutPartial = "FANOUT_PARTIAL_FAILURE"

	// ErrCodeProviderInit indicates the push provider could not be initialized.
	ErrCodeProviderInit = "PROVIDER_INIT_ERROR"

	// ErrCodeClosed indicates the component has been shut down.
	ErrCodeClosed = "CLOSED"
)

// Sentinel errors.
var (
	// ErrNoData is what repositories return for an empty lookup. The store
	// turns it into an empty result where that makes sense.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrHubClosed is returned when subscribing to a hub that has been closed.
	ErrHubClosed = &Error{
		Code:    ErrCodeClosed,
		Message: "subscription hub is closed",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// hasCode reports whether err is (or wraps) an *Error with the given code.
func hasCode(err error, code string) bool {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Code == code
	}
	return false
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	return hasCode(err, ErrCodeNoData)
}

// IsValidation checks if an error is a validation failure.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsPersistence checks if an error is a storage failure.
func IsPersistence(err error) bool {
	return hasCode(err, ErrCodeDatabase)
}

// IsProviderInit checks if an error is a push provider initialization failure.
func IsProviderInit(err error) bool {
	return hasCode(err, ErrCodeProviderInit)
}

// IsClosed checks if an error was caused by using a closed component.
func IsClosed(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

// permanentError marks a push delivery error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that push delivery gives up without retrying.
// Providers use it for rejected tokens and malformed requests.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
