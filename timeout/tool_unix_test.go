//go:build unix

package timeout

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func writeTool(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bin, "jstack"), []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestToolHandler_RunsToolAgainstPid(t *testing.T) {
	root := writeTool(t, `echo "dumping $1"; echo "to stderr" >&2`)
	var log bytes.Buffer
	h, err := NewToolHandler(HandlerConfig{Log: &log, RuntimeRoot: root})
	if err != nil {
		t.Fatal(err)
	}
	if !h.IsAvailable(context.Background()) {
		t.Fatal("tool should be found under bin/")
	}
	if err := h.HandleTimeout(context.Background(), nil, 4321); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	out := log.String()
	for _, want := range []string{"for pid 4321", "dumping 4321", "to stderr"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log, got %q", want, out)
		}
	}
}

func TestToolHandler_ToolFailure(t *testing.T) {
	root := writeTool(t, "exit 3")
	h, _ := NewToolHandler(HandlerConfig{Log: &bytes.Buffer{}, RuntimeRoot: root})
	if err := h.HandleTimeout(context.Background(), nil, 1); err == nil {
		t.Error("expected error from failing tool")
	}
}

func TestToolHandler_CancelKillsTool(t *testing.T) {
	root := writeTool(t, "sleep 30 & sleep 30; wait")
	h, _ := NewToolHandler(HandlerConfig{Log: &bytes.Buffer{}, RuntimeRoot: root})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := h.HandleTimeout(ctx, nil, 1); err == nil {
		t.Error("expected error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancelled tool ran for %v", elapsed)
	}
}

func TestSignalHandler_SendsSIGQUIT(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cmd.Process.Kill() }()

	h, _ := NewSignalHandler(HandlerConfig{})
	if err := h.HandleTimeout(context.Background(), nil, cmd.Process.Pid); err != nil {
		t.Fatal(err)
	}
	err := cmd.Wait()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected exit error, got %v", err)
	}
	ws := exitErr.Sys().(syscall.WaitStatus)
	if !ws.Signaled() || ws.Signal() != syscall.SIGQUIT {
		t.Errorf("expected death by SIGQUIT, got %v", ws)
	}
}
