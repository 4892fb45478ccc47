package process

import (
	"time"

	"github.com/kbukum/actionexec/status"
	"github.com/kbukum/actionexec/timeout"
)

// Result describes a finished execution.
type Result struct {
	// ID identifies the execution in logs and traces.
	ID string
	// Status is the verdict.
	Status status.Status
	// ExitCode is the child's exit code, 128+signal when it died from a
	// signal, or -1 when no exit was observed.
	ExitCode int
	// Pid is the child's process id, or 0 when it never started.
	Pid int
	// TimedOut reports that the timeout fired and the child was killed.
	TimedOut bool
	// Handler is how the timeout handler invocation ended.
	Handler timeout.Outcome
	// StdoutBytes and StderrBytes count the bytes drained from each stream.
	StdoutBytes int64
	StderrBytes int64
	// Duration is the wall-clock time from launch to return.
	Duration time.Duration
}
