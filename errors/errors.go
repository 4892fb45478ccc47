package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// AppError is the unified error type for executor operations.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Execution constructors ---

// InvalidCommand reports a command vector that cannot be launched.
func InvalidCommand(reason string) *AppError {
	return &AppError{Code: ErrCodeInvalidCommand, Message: reason}
}

// LaunchFailed reports a failure to start the program named by argv[0].
// The message is the cause's message so it reads naturally in a status reason.
func LaunchFailed(program string, cause error) *AppError {
	msg := fmt.Sprintf("failed to start %s", program)
	if cause != nil {
		msg = cause.Error()
	}
	return &AppError{
		Code: ErrCodeLaunchFailed, Message: msg, Retryable: true,
		Details: map[string]any{"program": program}, Cause: cause,
	}
}

// TimedOut reports a command killed after exceeding its timeout.
func TimedOut(program string, after fmt.Stringer) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("Program `%s' timed out (timeout set to %s)", program, after),
		Details: map[string]any{"program": program},
	}
}

// Interrupted reports a wait cancelled by something other than the timeout.
func Interrupted(program string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInterrupted, Message: fmt.Sprintf("Program `%s' interrupted", program),
		Details: map[string]any{"program": program}, Cause: cause,
	}
}

// --- Handler constructors ---

// HandlerNotFound reports an unknown timeout handler name.
func HandlerNotFound(name string) *AppError {
	return &AppError{
		Code: ErrCodeHandlerNotFound, Message: fmt.Sprintf("timeout handler %q is not registered", name),
		Details: map[string]any{"handler": name},
	}
}

// HandlerFailed reports a diagnostic handler that returned an error or panicked.
func HandlerFailed(name string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeHandlerFailed, Message: fmt.Sprintf("timeout handler %s failed", name),
		Details: map[string]any{"handler": name}, Cause: cause,
	}
}

// ToolNotFound reports a missing diagnostic utility.
func ToolNotFound(path string) *AppError {
	return &AppError{
		Code: ErrCodeToolNotFound, Message: fmt.Sprintf("diagnostic tool not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// --- Scheduling constructors ---

// SchedulerStopped reports work submitted to a scheduler after shutdown.
func SchedulerStopped(name string) *AppError {
	return &AppError{
		Code: ErrCodeSchedulerStopped, Message: fmt.Sprintf("scheduler %s has been shut down", name),
		Details: map[string]any{"scheduler": name},
	}
}

// CapacityExhausted reports that no execution slot became available.
func CapacityExhausted(limit int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeCapacity, Message: fmt.Sprintf("no execution slot available (limit %d)", limit),
		Retryable: true, Details: map[string]any{"limit": limit}, Cause: cause,
	}
}

// --- Validation constructors ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		Details: map[string]any{"field": field},
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		Cause: cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Wrap converts any error into an AppError, passing AppErrors through.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}

// Reason renders err as a single-line status reason: the AppError message
// when available, the plain error text otherwise.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Message
	}
	return strings.TrimSpace(err.Error())
}
