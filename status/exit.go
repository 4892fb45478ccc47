package status

import (
	"os"
)

// Harness exit codes. A child that wants the runner to see a specific kind
// without printing a self-report line can exit with one of these and be run
// under HarnessPolicy.
const (
	ExitPassed = 95
	ExitFailed = 96
	ExitError  = 97
	ExitNotRun = 98
)

// ExitCode returns the harness exit code for k.
func (k Kind) ExitCode() int {
	switch k {
	case Passed:
		return ExitPassed
	case Failed:
		return ExitFailed
	case NotRun:
		return ExitNotRun
	default:
		return ExitError
	}
}

// exitFunc is replaced in tests.
var exitFunc = os.Exit

// Exit reports s on stderr and terminates the process with the harness exit
// code for its kind. Intended for test programs launched by the runner.
func Exit(s Status) {
	_ = Report(os.Stderr, s)
	exitFunc(s.Kind().ExitCode())
}
