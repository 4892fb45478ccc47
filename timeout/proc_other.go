//go:build !unix

package timeout

import (
	"context"
	"os/exec"

	"github.com/kbukum/actionexec/errors"
)

// killTree keeps the default cancellation, which kills the tool process only.
func killTree(*exec.Cmd) {}

// SignalHandler is unavailable on platforms without SIGQUIT.
type SignalHandler struct{}

// NewSignalHandler is a Factory for SignalHandler.
func NewSignalHandler(HandlerConfig) (Handler, error) { return SignalHandler{}, nil }

func (SignalHandler) Name() string                     { return "signal" }
func (SignalHandler) IsAvailable(context.Context) bool { return false }

func (SignalHandler) HandleTimeout(context.Context, Process, int) error {
	return errors.HandlerFailed("signal", errors.New(errors.ErrCodeHandlerFailed, "signals not supported on this platform"))
}
