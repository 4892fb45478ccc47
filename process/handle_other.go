//go:build !unix && !windows

package process

import (
	"errors"
	"os"
	"os/exec"
)

func configure(*exec.Cmd) {}

func killGroup(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// ProcessAlive cannot probe arbitrary pids here and reports false.
func ProcessAlive(int) bool { return false }

func exitCode(state *os.ProcessState) int {
	return state.ExitCode()
}

func isTransientLaunchError(error) bool { return false }
