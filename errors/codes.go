package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Execution errors
const (
	// ErrCodeInvalidCommand indicates the command vector is empty or malformed.
	ErrCodeInvalidCommand ErrorCode = "INVALID_COMMAND"
	// ErrCodeLaunchFailed indicates the child process could not be started.
	ErrCodeLaunchFailed ErrorCode = "LAUNCH_FAILED"
	// ErrCodeTimeout indicates the command exceeded its timeout.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInterrupted indicates the wait was interrupted from outside.
	ErrCodeInterrupted ErrorCode = "INTERRUPTED"
)

// Timeout handler errors
const (
	// ErrCodeHandlerNotFound indicates no handler factory is registered under a name.
	ErrCodeHandlerNotFound ErrorCode = "HANDLER_NOT_FOUND"
	// ErrCodeHandlerFailed indicates a diagnostic handler returned an error or panicked.
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"
	// ErrCodeToolNotFound indicates the stack-dump utility could not be located.
	ErrCodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"
)

// Scheduling errors
const (
	// ErrCodeSchedulerStopped indicates work was submitted after shutdown.
	ErrCodeSchedulerStopped ErrorCode = "SCHEDULER_STOPPED"
	// ErrCodeCapacity indicates the executor had no free slot.
	ErrCodeCapacity ErrorCode = "CAPACITY_EXHAUSTED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeLaunchFailed: true,
	ErrCodeCapacity:     true,
	ErrCodeInternal:     false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
