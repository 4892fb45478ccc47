package process

import (
	"io"
	"time"

	"github.com/kbukum/actionexec/status"
	"github.com/kbukum/actionexec/timeout"
)

// Command configures one child process execution.
type Command struct {
	// Args is the program followed by its arguments. No shell is involved.
	Args []string
	// Env replaces the child's environment entirely. A nil map inherits the
	// runner's environment; an empty non-nil map starts the child with none.
	Env map[string]string
	// Dir is the working directory. Empty uses the runner's work dir.
	Dir string
	// Stdout and Stderr receive the child's output. Nil discards it. When
	// both are the same writer it must be safe for concurrent use; see
	// SyncWriter.
	Stdout io.Writer
	Stderr io.Writer
	// Timeout kills the child after this long. Zero or negative disables it.
	Timeout time.Duration
	// TimeoutHandler captures diagnostics before a timed-out child is killed.
	// May be nil.
	TimeoutHandler timeout.Handler
	// Policy turns the exit code into a verdict. Nil applies the convention
	// that 0 passes.
	Policy *status.Policy
	// GracePeriod bounds how long output is drained after the child is
	// killed. Zero uses the runner default.
	GracePeriod time.Duration
}

// Program returns Args[0], or "" for an empty command.
func (c Command) Program() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}
