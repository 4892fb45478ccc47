package component

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	log      *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	*m.log = append(*m.log, "start:"+m.name)
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("stop context has no deadline")
	}
	*m.log = append(*m.log, "stop:"+m.name)
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health { return m.health }

func TestRegisterDuplicate(t *testing.T) {
	var log []string
	r := NewRegistry()
	if err := r.Register(&mockComponent{name: "scheduler", log: &log}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "scheduler", log: &log}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if r.Get("scheduler") == nil || r.Get("missing") != nil {
		t.Error("unexpected Get result")
	}
}

func TestStartStopOrder(t *testing.T) {
	var log []string
	r := NewRegistry()
	for _, n := range []string{"scheduler", "executor"} {
		_ = r.Register(&mockComponent{name: n, log: &log})
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	want := "start:scheduler,start:executor,stop:executor,stop:scheduler"
	if got := strings.Join(log, ","); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestStartAllRollsBack(t *testing.T) {
	var log []string
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "scheduler", log: &log})
	_ = r.Register(&mockComponent{name: "executor", log: &log, startErr: errors.New("boom")})

	err := r.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start executor") {
		t.Fatalf("expected start failure, got %v", err)
	}
	want := "start:scheduler,start:executor,stop:scheduler"
	if got := strings.Join(log, ","); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Errorf("nothing left to stop, got %v", err)
	}
}

func TestStopAllCollectsErrors(t *testing.T) {
	var log []string
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "a", log: &log, stopErr: errors.New("a broke")})
	_ = r.Register(&mockComponent{name: "b", log: &log, stopErr: errors.New("b broke")})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"a broke", "b broke"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestHealthAllAndOverall(t *testing.T) {
	var log []string
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "a", log: &log, health: Health{Name: "a", Status: StatusHealthy}})
	_ = r.Register(&mockComponent{name: "b", log: &log, health: Health{Name: "b", Status: StatusDegraded}})

	hs := r.HealthAll(context.Background())
	if len(hs) != 2 {
		t.Fatalf("expected 2 health entries, got %d", len(hs))
	}
	if Overall(hs) != StatusDegraded {
		t.Errorf("expected degraded, got %s", Overall(hs))
	}
	hs = append(hs, Health{Status: StatusUnhealthy})
	if Overall(hs) != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", Overall(hs))
	}
	if Overall(nil) != StatusHealthy {
		t.Error("empty set should be healthy")
	}
}
