package status

import (
	"fmt"
	"testing"
)

func TestConventionPolicy(t *testing.T) {
	for _, p := range []*Policy{nil, NewPolicy()} {
		if got := p.Resolve(0, nil); got != NewPassed("exit code 0") {
			t.Errorf("Resolve(0) = %v", got)
		}
		for _, code := range []int{1, 2, 127, 137, -1} {
			want := NewFailed(fmt.Sprintf("exit code %d", code))
			if got := p.Resolve(code, nil); got != want {
				t.Errorf("Resolve(%d) = %v, want %v", code, got, want)
			}
		}
	}
}

func TestTablePolicy(t *testing.T) {
	compileErr := NewError("compilation failed")
	p := NewTablePolicy(NewFailed("unexpected")).
		Register(0, NewPassed("ok")).
		Register(2, compileErr)

	tests := []struct {
		code int
		want Status
	}{
		{0, NewPassed("ok")},
		{2, compileErr},
		{1, NewFailed("unexpected [exit code: 1]")},
		{42, NewFailed("unexpected [exit code: 42]")},
	}
	for _, tc := range tests {
		if got := p.Resolve(tc.code, nil); got != tc.want {
			t.Errorf("Resolve(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestRegisterOnConventionPolicy(t *testing.T) {
	p := NewPolicy().Register(3, NewNotRun("skipped"))
	if !p.HasTable() {
		t.Fatal("expected table after Register")
	}
	if got := p.Resolve(3, nil); got != NewNotRun("skipped") {
		t.Errorf("unexpected %v", got)
	}
	if got := p.Resolve(0, nil); !got.IsError() || got.Reason() != "unexpected exit code [exit code: 0]" {
		t.Errorf("unregistered code should use the ERROR default, got %v", got)
	}
}

func TestSelfReportWins(t *testing.T) {
	reported := NewPassed("+++ passed")
	policies := map[string]*Policy{
		"nil":        nil,
		"convention": NewPolicy(),
		"table":      NewTablePolicy(NewError("x")).Register(1, NewFailed("one")),
		"harness":    HarnessPolicy(),
	}
	for name, p := range policies {
		if got := p.Resolve(1, &reported); got != reported {
			t.Errorf("%s: Resolve(1, reported) = %v, want %v", name, got, reported)
		}
	}

	var zero Status
	if got := NewPolicy().Resolve(1, &zero); !got.IsFailed() {
		t.Errorf("zero scanned status should be treated as absent, got %v", got)
	}
}

func TestInverted(t *testing.T) {
	inv := NewPolicy().Inverted()
	if got := inv.Resolve(0, nil); got != NewFailed("exit code 0") {
		t.Errorf("Resolve(0) = %v", got)
	}
	if got := inv.Resolve(1, nil); got != NewPassed("exit code: 1") {
		t.Errorf("Resolve(1) = %v", got)
	}

	table := NewTablePolicy(NewFailed("bad")).Register(0, NewPassed("good")).Register(9, NewError("crash"))
	inv = table.Inverted()
	if got := inv.Resolve(0, nil); got != NewFailed("good") {
		t.Errorf("Resolve(0) = %v", got)
	}
	if got := inv.Resolve(9, nil); got != NewError("crash") {
		t.Errorf("ERROR must not be swapped, got %v", got)
	}
	if got := inv.Resolve(5, nil); got != NewPassed("bad [exit code: 5]") {
		t.Errorf("Resolve(5) = %v", got)
	}
	if got := table.Resolve(0, nil); got != NewPassed("good") {
		t.Errorf("original policy modified: %v", got)
	}
}

func TestHarnessPolicy(t *testing.T) {
	p := HarnessPolicy()
	for _, k := range Kinds() {
		if got := p.Resolve(k.ExitCode(), nil); got.Kind() != k {
			t.Errorf("exit code %d resolved to %s, want %s", k.ExitCode(), got.Kind(), k)
		}
	}
	if got := p.Resolve(0, nil); !got.IsError() {
		t.Errorf("exit code 0 is not a harness code, got %v", got)
	}
}
