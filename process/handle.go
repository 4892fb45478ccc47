package process

import (
	"os"
	"sync/atomic"
)

// HandleOps is the control a runner needs over a live child. Implementations
// are selected per platform at build time.
type HandleOps interface {
	Pid() int
	Kill() error
	Alive() bool
}

var _ HandleOps = (*Handle)(nil)

// Handle is a started child process. It also satisfies timeout.Process.
type Handle struct {
	proc   *os.Process
	exited atomic.Bool
}

// Pid returns the child's process id, or 0 when it never started.
func (h *Handle) Pid() int {
	if h == nil || h.proc == nil {
		return 0
	}
	return h.proc.Pid
}

// Kill forcibly terminates the child and, where supported, everything in
// its process group.
func (h *Handle) Kill() error {
	if h == nil || h.proc == nil {
		return nil
	}
	return killGroup(h.proc)
}

// Alive reports whether the child is still running.
func (h *Handle) Alive() bool {
	if h == nil || h.exited.Load() {
		return false
	}
	return ProcessAlive(h.Pid())
}

func (h *Handle) markExited() {
	h.exited.Store(true)
}
