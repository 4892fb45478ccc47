//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configure starts the child in its own process group so Kill can take
// down anything it spawned.
func configure(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(p *os.Process) error {
	err := unix.Kill(-p.Pid, unix.SIGKILL)
	switch {
	case err == nil, errors.Is(err, unix.ESRCH):
		return nil
	default:
		if kerr := p.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			return kerr
		}
		return nil
	}
}

// ProcessAlive reports whether pid names a live (or unreaped) process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// exitCode maps death by signal to 128+signal, the shell convention.
func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// isTransientLaunchError reports errors worth retrying a launch for: the
// executable was still open for writing, typically because another
// goroutine forked while it was being written.
func isTransientLaunchError(err error) bool {
	return errors.Is(err, unix.ETXTBSY)
}
