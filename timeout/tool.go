package timeout

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"github.com/kbukum/actionexec/errors"
	"github.com/kbukum/actionexec/logger"
)

const (
	// DefaultTool is the stack-dump utility run by ToolHandler.
	DefaultTool = "jstack"
	// DefaultArgs is the argument template used when none is configured.
	DefaultArgs = "{pid}"
)

// ToolHandler runs a stack-dump utility from the runtime under test against
// the timed-out pid and streams its output into the handler log.
type ToolHandler struct {
	tool   string
	path   string
	args   []string
	outDir string
	out    io.Writer
	log    *logger.Logger
}

// NewToolHandler is the Factory for the default handler. A missing tool is
// not an error: the handler reports itself unavailable instead.
func NewToolHandler(cfg HandlerConfig) (Handler, error) {
	tool := cfg.Tool
	if tool == "" {
		tool = DefaultTool
	}
	tmpl := cfg.Args
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultArgs
	}
	args, err := shlex.Split(tmpl)
	if err != nil {
		return nil, errors.InvalidInput("args", err.Error())
	}

	return &ToolHandler{
		tool:   tool,
		path:   LocateTool(cfg.RuntimeRoot, tool),
		args:   args,
		outDir: cfg.OutputDir,
		out:    cfg.Log,
		log:    logger.Get(logger.ComponentTimeout),
	}, nil
}

// LocateTool returns the path of tool under root's bin directory, trying the
// platform executable suffix first. With an empty root the tool is looked up
// on PATH. It returns "" when nothing is found.
func LocateTool(root, tool string) string {
	if root == "" {
		if p, err := exec.LookPath(tool); err == nil {
			return p
		}
		return ""
	}
	for _, name := range executableNames(tool) {
		p := filepath.Join(root, "bin", name)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

func executableNames(tool string) []string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(tool), ".exe") {
		return []string{tool + ".exe", tool}
	}
	return []string{tool}
}

// Name returns the tool name.
func (h *ToolHandler) Name() string { return h.tool }

// IsAvailable reports whether the tool was found.
func (h *ToolHandler) IsAvailable(context.Context) bool { return h.path != "" }

// Path returns the resolved tool path, or "".
func (h *ToolHandler) Path() string { return h.path }

// Args returns the argument vector for pid.
func (h *ToolHandler) Args(pid int) []string {
	r := strings.NewReplacer("{pid}", strconv.Itoa(pid), "{outdir}", h.outDir)
	out := make([]string, len(h.args))
	for i, a := range h.args {
		out[i] = r.Replace(a)
	}
	return out
}

// HandleTimeout runs the tool and waits for it. Cancelling ctx kills the
// tool together with anything it spawned.
func (h *ToolHandler) HandleTimeout(ctx context.Context, _ Process, pid int) error {
	if h.path == "" {
		return errors.ToolNotFound(h.tool)
	}

	out := h.out
	if out == nil {
		lw := h.log.Writer(zerolog.InfoLevel, logger.Fields(logger.FieldHandler, h.tool, logger.FieldPid, pid))
		defer lw.Close()
		out = lw
	}

	args := h.Args(pid)
	fmt.Fprintf(out, "Running %s %s for pid %d\n", h.path, strings.Join(args, " "), pid)

	cmd := exec.CommandContext(ctx, h.path, args...) //nolint:gosec // tool path comes from configuration
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = time.Second
	killTree(cmd)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.HandlerFailed(h.tool, ctx.Err())
		}
		return errors.HandlerFailed(h.tool, err)
	}
	return nil
}
