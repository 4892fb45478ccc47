package timeout

import (
	"context"
	"io"

	"github.com/kbukum/actionexec/provider"
)

// Process is what a handler may ask of the timed-out child.
type Process interface {
	// Pid returns the OS process id, or 0 when it cannot be determined.
	Pid() int
}

// Handler captures diagnostics for a process that exceeded its timeout,
// typically a stack dump. It runs once per timeout, before the process is
// killed. Implementations should honour ctx: the Guard cancels it when the
// handler's own watchdog expires.
type Handler interface {
	provider.Provider
	HandleTimeout(ctx context.Context, proc Process, pid int) error
}

// HandlerConfig is passed to every handler factory.
type HandlerConfig struct {
	// Log receives the handler's output. When nil it goes to the timeout logger.
	Log io.Writer
	// OutputDir is where handlers may write dump files.
	OutputDir string `mapstructure:"output_dir"`
	// RuntimeRoot is the installation root of the runtime under test; tools
	// are looked up in its bin directory.
	RuntimeRoot string `mapstructure:"runtime_root"`
	// Tool overrides the diagnostic utility name.
	Tool string `mapstructure:"tool"`
	// Args is the tool's argument template. {pid} and {outdir} are expanded
	// after shell-style splitting.
	Args string `mapstructure:"args"`
}

// NoopHandler does nothing. Register it to disable diagnostics.
type NoopHandler struct{}

// NewNoopHandler is a Factory for NoopHandler.
func NewNoopHandler(HandlerConfig) (Handler, error) { return NoopHandler{}, nil }

func (NoopHandler) Name() string                                      { return "noop" }
func (NoopHandler) IsAvailable(context.Context) bool                  { return true }
func (NoopHandler) HandleTimeout(context.Context, Process, int) error { return nil }
