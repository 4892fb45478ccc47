package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type testConfig struct {
	Tool string
}

type testProvider struct {
	name      string
	available bool
	closed    bool
}

func (p *testProvider) Name() string                     { return p.name }
func (p *testProvider) IsAvailable(context.Context) bool { return p.available }
func (p *testProvider) Close(context.Context) error      { p.closed = true; return nil }

func TestRegistryRegisterAndCreate(t *testing.T) {
	reg := NewRegistry[testConfig, *testProvider]()
	reg.RegisterFactory("tool", func(cfg testConfig) (*testProvider, error) {
		return &testProvider{name: cfg.Tool, available: true}, nil
	})

	p, err := reg.Create("tool", testConfig{Tool: "jstack"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Name() != "jstack" {
		t.Errorf("expected config to reach factory, got %q", p.Name())
	}
	if !reg.Has("tool") || reg.Has("other") {
		t.Error("unexpected Has result")
	}
}

func TestRegistryCreateUnregistered(t *testing.T) {
	reg := NewRegistry[testConfig, *testProvider]()
	_, err := reg.Create("missing", testConfig{})
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if !strings.Contains(err.Error(), `"missing"`) {
		t.Errorf("expected name in error, got %q", err.Error())
	}
}

func TestRegistryCreateRecoversPanic(t *testing.T) {
	reg := NewRegistry[testConfig, *testProvider]()
	reg.RegisterFactory("bad", func(testConfig) (*testProvider, error) {
		panic("broken plugin")
	})
	p, err := reg.Create("bad", testConfig{})
	if err == nil || !strings.Contains(err.Error(), "broken plugin") {
		t.Fatalf("expected panic reported as error, got %v", err)
	}
	if p != nil {
		t.Error("expected zero provider after panic")
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry[testConfig, *testProvider]()
	for _, n := range []string{"signal", "jstack", "noop"} {
		reg.RegisterFactory(n, func(testConfig) (*testProvider, error) { return &testProvider{}, nil })
	}
	names := reg.List()
	want := []string{"jstack", "noop", "signal"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestFirstAvailable(t *testing.T) {
	a := &testProvider{name: "a"}
	b := &testProvider{name: "b", available: true}
	c := &testProvider{name: "c", available: true}

	got, err := FirstAvailable(context.Background(), a, b, c)
	if err != nil || got != b {
		t.Fatalf("expected b, got %v, %v", got, err)
	}
	if _, err := FirstAvailable(context.Background(), a); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("expected ErrNoneAvailable, got %v", err)
	}
}

func TestClose(t *testing.T) {
	p := &testProvider{}
	if err := Close(context.Background(), p); err != nil || !p.closed {
		t.Errorf("expected Close to be forwarded, closed=%v err=%v", p.closed, err)
	}
	if err := Close(context.Background(), struct{}{}); err != nil {
		t.Errorf("non-closeable should be a no-op, got %v", err)
	}
}
