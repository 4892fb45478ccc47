//go:build unix

package process_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/kbukum/actionexec/alarm"
	"github.com/kbukum/actionexec/logger"
	"github.com/kbukum/actionexec/process"
	"github.com/kbukum/actionexec/status"
	"github.com/kbukum/actionexec/timeout"
)

func newRunner(t *testing.T, opts ...process.Option) *process.Runner {
	t.Helper()
	sched := alarm.NewScheduler(alarm.WithSchedulerLogger(logger.Nop()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Shutdown(ctx)
	})
	guard := timeout.NewGuard(sched, timeout.WithGuardLogger(logger.Nop()))
	opts = append([]process.Option{process.WithLogger(logger.Nop()), process.WithGuard(guard)}, opts...)
	return process.NewRunner(sched, opts...)
}

type recordingHandler struct {
	calls atomic.Int32
	pid   atomic.Int64
}

func (h *recordingHandler) Name() string                     { return "recording" }
func (h *recordingHandler) IsAvailable(context.Context) bool { return true }

func (h *recordingHandler) HandleTimeout(_ context.Context, proc timeout.Process, pid int) error {
	h.calls.Add(1)
	h.pid.Store(int64(pid))
	if proc.Pid() != pid {
		return fmt.Errorf("pid mismatch: %d vs %d", proc.Pid(), pid)
	}
	return nil
}

// gone reports whether pid has exited. Zombies count as gone: in a container
// without an init that reaps, killed grandchildren linger as zombies.
func gone(pid int) bool {
	if !process.ProcessAlive(pid) {
		return true
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	i := bytes.LastIndexByte(data, ')')
	return i >= 0 && i+2 < len(data) && data[i+2] == 'Z'
}

func TestRun_False(t *testing.T) {
	st := newRunner(t).Run(context.Background(), process.Command{Args: []string{"false"}})
	if !st.IsFailed() || st.Reason() != "exit code 1" {
		t.Errorf("expected Failed. exit code 1, got %q", st.String())
	}
}

func TestRun_True(t *testing.T) {
	st := newRunner(t).Run(context.Background(), process.Command{Args: []string{"true"}})
	if !st.IsPassed() || st.Reason() != "exit code 0" {
		t.Errorf("expected Passed. exit code 0, got %q", st.String())
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	for _, args := range [][]string{nil, {}, {""}} {
		st := newRunner(t).Run(context.Background(), process.Command{Args: args})
		if !st.IsError() || st.Reason() != "empty command" {
			t.Errorf("args %q: expected Error. empty command, got %q", args, st.String())
		}
	}
}

func TestRun_SelfReportWins(t *testing.T) {
	r := newRunner(t)
	for _, stream := range []string{"", ">&2"} {
		st := r.Run(context.Background(), process.Command{
			Args: []string{"sh", "-c", fmt.Sprintf(`echo "%s" %s; exit 1`, status.Encode(status.NewPassed("+++ passed")), stream)},
		})
		if !st.IsPassed() || st.Reason() != "+++ passed" {
			t.Errorf("stream %q: expected self-reported pass, got %q", stream, st.String())
		}
	}
}

func TestRun_MalformedSelfReportIgnored(t *testing.T) {
	st := newRunner(t).Run(context.Background(), process.Command{
		Args: []string{"sh", "-c", `echo "STATUS:maybe ok" >&2; exit 2`},
	})
	if !st.IsFailed() || st.Reason() != "exit code 2" {
		t.Errorf("expected exit code verdict, got %q", st.String())
	}
}

func TestRun_LastSelfReportWins(t *testing.T) {
	st := newRunner(t).Run(context.Background(), process.Command{
		Args: []string{"sh", "-c", `echo "STATUS:Passed. first"; echo "STATUS:Failed. second"`},
	})
	if !st.IsFailed() || st.Reason() != "second" {
		t.Errorf("expected last report, got %q", st.String())
	}
}

func TestRun_TablePolicy(t *testing.T) {
	policy := status.NewTablePolicy(status.NewFailed("unexpected")).
		Register(3, status.NewError("three"))
	r := newRunner(t)

	st := r.Run(context.Background(), process.Command{Args: []string{"sh", "-c", "exit 3"}, Policy: policy})
	if !st.IsError() || st.Reason() != "three" {
		t.Errorf("expected registered status, got %q", st.String())
	}
	st = r.Run(context.Background(), process.Command{Args: []string{"sh", "-c", "exit 4"}, Policy: policy})
	if !st.IsFailed() || st.Reason() != "unexpected [exit code: 4]" {
		t.Errorf("expected augmented default, got %q", st.String())
	}
}

func TestRun_InvertedPolicy(t *testing.T) {
	st := newRunner(t).Run(context.Background(), process.Command{
		Args:   []string{"false"},
		Policy: status.NewPolicy().Inverted(),
	})
	if !st.IsPassed() {
		t.Errorf("expected inverted pass, got %q", st.String())
	}
}

func TestRun_LaunchFailure(t *testing.T) {
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args: []string{filepath.Join(t.TempDir(), "no-such-binary")},
	})
	if !res.Status.IsError() {
		t.Fatalf("expected error, got %q", res.Status.String())
	}
	if !strings.Contains(res.Status.Reason(), "no such file") {
		t.Errorf("expected cause in reason, got %q", res.Status.Reason())
	}
	if res.Pid != 0 || res.ExitCode != -1 {
		t.Errorf("expected no pid and no exit code, got pid=%d exit=%d", res.Pid, res.ExitCode)
	}
}

func TestRun_NotFoundOnPath(t *testing.T) {
	st := newRunner(t).Run(context.Background(), process.Command{Args: []string{"definitely-not-a-command-xyz"}})
	if !st.IsError() || !strings.Contains(st.Reason(), "not found") {
		t.Errorf("expected not found error, got %q", st.String())
	}
}

func TestRun_Timeout(t *testing.T) {
	h := &recordingHandler{}
	start := time.Now()
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args:           []string{"sleep", "10"},
		Timeout:        100 * time.Millisecond,
		TimeoutHandler: h,
		GracePeriod:    time.Second,
	})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timed-out command took %v", elapsed)
	}
	if !res.Status.IsError() || !strings.Contains(res.Status.Reason(), "timed out") {
		t.Errorf("expected timed out error, got %q", res.Status.String())
	}
	if strings.Contains(res.Status.Reason(), "interrupted") {
		t.Errorf("timeout must not read as an interruption: %q", res.Status.Reason())
	}
	if !res.TimedOut {
		t.Error("expected TimedOut")
	}
	if h.calls.Load() != 1 {
		t.Errorf("expected exactly one handler call, got %d", h.calls.Load())
	}
	if h.pid.Load() == 0 || int(h.pid.Load()) != res.Pid {
		t.Errorf("handler got pid %d, child pid %d", h.pid.Load(), res.Pid)
	}
	if res.Handler != timeout.OutcomeCompleted {
		t.Errorf("expected completed handler, got %s", res.Handler)
	}
	if !gone(res.Pid) {
		t.Errorf("process %d still alive after timeout", res.Pid)
	}
}

func TestRun_TimeoutWithoutHandler(t *testing.T) {
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args:    []string{"sleep", "10"},
		Timeout: 50 * time.Millisecond,
	})
	if !res.Status.IsError() || !res.TimedOut {
		t.Errorf("expected timeout, got %q", res.Status.String())
	}
	if res.Handler != timeout.OutcomeSkipped {
		t.Errorf("expected skipped handler, got %s", res.Handler)
	}
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args:        []string{"sh", "-c", fmt.Sprintf("sleep 30 & echo $! > %s; wait", pidFile)},
		Timeout:     200 * time.Millisecond,
		GracePeriod: time.Second,
	})
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %q", res.Status.String())
	}
	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatal(err)
	}
	var grandchild int
	fmt.Sscan(string(data), &grandchild)

	deadline := time.Now().Add(2 * time.Second)
	for !gone(grandchild) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !gone(grandchild) {
		t.Errorf("grandchild %d survived the group kill", grandchild)
	}
}

func TestRun_FastCommandDoesNotTimeOut(t *testing.T) {
	h := &recordingHandler{}
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args:           []string{"true"},
		Timeout:        time.Minute,
		TimeoutHandler: h,
	})
	if !res.Status.IsPassed() || res.TimedOut {
		t.Errorf("expected pass, got %q", res.Status.String())
	}
	if h.calls.Load() != 0 {
		t.Error("handler ran for a command that finished in time")
	}
	if res.Handler != timeout.OutcomeNone {
		t.Errorf("expected no handler outcome, got %s", res.Handler)
	}
}

func TestRun_ContextCancelIsInterruption(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := newRunner(t).Execute(ctx, process.Command{
		Args:    []string{"sleep", "10"},
		Timeout: time.Minute,
	})
	if !res.Status.IsError() || !strings.Contains(res.Status.Reason(), "interrupted") {
		t.Errorf("expected interrupted error, got %q", res.Status.String())
	}
	if res.TimedOut {
		t.Error("external cancellation must not read as a timeout")
	}
	if !gone(res.Pid) {
		t.Errorf("process %d still alive", res.Pid)
	}
}

func TestRun_LargeInterleavedOutput(t *testing.T) {
	const lines = 20000
	script := fmt.Sprintf(`i=0; while [ $i -lt %d ]; do echo "out line $i"; echo "err line $i" >&2; i=$((i+1)); done`, lines)

	var stdout, stderr bytes.Buffer
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args:    []string{"sh", "-c", script},
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: time.Minute,
	})
	if !res.Status.IsPassed() {
		t.Fatalf("expected pass, got %q", res.Status.String())
	}

	var wantOut, wantErr strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&wantOut, "out line %d\n", i)
		fmt.Fprintf(&wantErr, "err line %d\n", i)
	}
	if stdout.String() != wantOut.String() {
		t.Errorf("stdout mismatch: got %d bytes, want %d", stdout.Len(), wantOut.Len())
	}
	if stderr.String() != wantErr.String() {
		t.Errorf("stderr mismatch: got %d bytes, want %d", stderr.Len(), wantErr.Len())
	}
	if res.StdoutBytes != int64(wantOut.Len()) || res.StderrBytes != int64(wantErr.Len()) {
		t.Errorf("byte counts %d/%d, want %d/%d", res.StdoutBytes, res.StderrBytes, wantOut.Len(), wantErr.Len())
	}
}

func TestRun_SharedSink(t *testing.T) {
	var buf bytes.Buffer
	w := process.SyncWriter(&buf)
	st := newRunner(t).Run(context.Background(), process.Command{
		Args:   []string{"sh", "-c", "echo a; echo b >&2"},
		Stdout: w,
		Stderr: w,
	})
	if !st.IsPassed() {
		t.Fatalf("unexpected status %q", st.String())
	}
	if out := buf.String(); !strings.Contains(out, "a\n") || !strings.Contains(out, "b\n") {
		t.Errorf("expected both streams in shared sink, got %q", out)
	}
}

func TestRun_EnvReplacesParent(t *testing.T) {
	t.Setenv("ACTIONEXEC_PARENT_ONLY", "leaked")
	var out bytes.Buffer
	st := newRunner(t).Run(context.Background(), process.Command{
		Args:   []string{"sh", "-c", `echo "[$MY_VAR][$ACTIONEXEC_PARENT_ONLY]"`},
		Env:    map[string]string{"MY_VAR": "hello"},
		Stdout: &out,
	})
	if !st.IsPassed() {
		t.Fatalf("unexpected status %q", st.String())
	}
	if got := strings.TrimSpace(out.String()); got != "[hello][]" {
		t.Errorf("expected replaced environment, got %q", got)
	}
}

func TestRun_NilEnvInherits(t *testing.T) {
	t.Setenv("ACTIONEXEC_INHERITED", "yes")
	var out bytes.Buffer
	newRunner(t).Run(context.Background(), process.Command{
		Args:   []string{"sh", "-c", `echo "$ACTIONEXEC_INHERITED"`},
		Stdout: &out,
	})
	if got := strings.TrimSpace(out.String()); got != "yes" {
		t.Errorf("expected inherited variable, got %q", got)
	}
}

func TestRun_StdinIsEmpty(t *testing.T) {
	st := newRunner(t).Run(context.Background(), process.Command{
		Args:    []string{"cat"},
		Timeout: 5 * time.Second,
	})
	if !st.IsPassed() {
		t.Errorf("cat should see EOF on stdin, got %q", st.String())
	}
}

func TestRun_WorkDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	newRunner(t, process.WithWorkDir(dir)).Run(context.Background(), process.Command{
		Args:   []string{"pwd", "-P"},
		Stdout: &out,
	})
	want, _ := filepath.EvalSymlinks(dir)
	if got := strings.TrimSpace(out.String()); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRun_SignalExitCode(t *testing.T) {
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args: []string{"sh", "-c", "kill -9 $$"},
	})
	if res.ExitCode != 137 {
		t.Errorf("expected exit code 137, got %d", res.ExitCode)
	}
	if !res.Status.IsFailed() || res.Status.Reason() != "exit code 137" {
		t.Errorf("unexpected status %q", res.Status.String())
	}
}

func TestRun_ConcurrentExecutions(t *testing.T) {
	r := newRunner(t)
	results := make(chan status.Status, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			args := []string{"true"}
			if i%2 == 1 {
				args = []string{"sleep", "5"}
			}
			results <- r.Run(context.Background(), process.Command{Args: args, Timeout: 200 * time.Millisecond})
		}(i)
	}
	var passed, errored int
	for i := 0; i < 8; i++ {
		st := <-results
		switch {
		case st.IsPassed():
			passed++
		case st.IsError():
			errored++
		}
	}
	if passed != 4 || errored != 4 {
		t.Errorf("expected 4 passed and 4 timed out, got %d and %d", passed, errored)
	}
}

func TestRun_ExecutionIDFromContext(t *testing.T) {
	ctx := logger.ContextWithExecutionID(context.Background(), "exec-1")
	res := newRunner(t).Execute(ctx, process.Command{Args: []string{"true"}})
	if res.ID != "exec-1" {
		t.Errorf("expected ID from context, got %q", res.ID)
	}
	res = newRunner(t).Execute(context.Background(), process.Command{Args: []string{"true"}})
	if res.ID == "" {
		t.Error("expected a generated ID")
	}
}

type funcHandler struct {
	run      func(ctx context.Context, pid int) error
	finished atomic.Bool
}

func (h *funcHandler) Name() string                     { return "func" }
func (h *funcHandler) IsAvailable(context.Context) bool { return true }

func (h *funcHandler) HandleTimeout(ctx context.Context, _ timeout.Process, pid int) error {
	defer h.finished.Store(true)
	return h.run(ctx, pid)
}

func TestRun_TimeoutWinsWhenDiagnosticsEndTheChild(t *testing.T) {
	h := &funcHandler{run: func(_ context.Context, pid int) error {
		if err := syscall.Kill(pid, syscall.SIGQUIT); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
		return nil
	}}
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args:           []string{"sleep", "10"},
		Timeout:        100 * time.Millisecond,
		TimeoutHandler: h,
		GracePeriod:    time.Second,
	})

	if !res.TimedOut || !strings.Contains(res.Status.Reason(), "timed out") {
		t.Errorf("expected timeout, got %q (timedOut=%v)", res.Status.String(), res.TimedOut)
	}
	if res.Handler != timeout.OutcomeCompleted {
		t.Errorf("expected completed handler, got %s", res.Handler)
	}
	if !h.finished.Load() {
		t.Error("Execute returned while the timeout handler was still running")
	}
}

func TestRun_LingeringDescendantDoesNotHoldRun(t *testing.T) {
	var out bytes.Buffer
	start := time.Now()
	res := newRunner(t).Execute(context.Background(), process.Command{
		Args:        []string{"sh", "-c", "sleep 30 & echo $!; exit 0"},
		Stdout:      &out,
		Timeout:     200 * time.Millisecond,
		GracePeriod: 300 * time.Millisecond,
	})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("exited command held by its background child for %v", elapsed)
	}
	if !res.Status.IsPassed() || res.TimedOut {
		t.Errorf("expected the exit code to decide, got %q", res.Status.String())
	}

	var descendant int
	if _, err := fmt.Sscan(out.String(), &descendant); err != nil || descendant == 0 {
		t.Fatalf("no descendant pid in output %q", out.String())
	}
	deadline := time.Now().Add(2 * time.Second)
	for !gone(descendant) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !gone(descendant) {
		t.Errorf("descendant %d survived after its parent exited", descendant)
	}
}
