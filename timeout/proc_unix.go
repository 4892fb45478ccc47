//go:build unix

package timeout

import (
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/kbukum/actionexec/errors"
)

// killTree puts the command in its own process group and kills the whole
// group on cancellation.
func killTree(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}

// SignalHandler asks the process to dump its own stacks by sending SIGQUIT.
// JVMs print a thread dump and keep running; Go programs dump goroutines
// and exit.
type SignalHandler struct{}

// NewSignalHandler is a Factory for SignalHandler.
func NewSignalHandler(HandlerConfig) (Handler, error) { return SignalHandler{}, nil }

func (SignalHandler) Name() string                     { return "signal" }
func (SignalHandler) IsAvailable(context.Context) bool { return true }

func (SignalHandler) HandleTimeout(_ context.Context, _ Process, pid int) error {
	if err := unix.Kill(pid, unix.SIGQUIT); err != nil {
		return errors.HandlerFailed("signal", err)
	}
	return nil
}
