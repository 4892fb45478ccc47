package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func stamp(t *testing.T, version, commit, built string, bi *debug.BuildInfo) {
	t.Helper()
	origVersion, origCommit, origBuilt, origRead := Version, GitCommit, BuildTime, readBuildInfo
	t.Cleanup(func() {
		Version, GitCommit, BuildTime, readBuildInfo = origVersion, origCommit, origBuilt, origRead
	})
	Version, GitCommit, BuildTime = version, commit, built
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
}

func TestGet_Unstamped(t *testing.T) {
	stamp(t, "dev", "", "", nil)

	info := Get()
	if info.Version != "dev" || info.IsRelease() {
		t.Errorf("expected unreleased dev build, got %+v", info)
	}
	if info.Short() != "dev" {
		t.Errorf("expected 'dev', got %q", info.Short())
	}
	if info.String() != "dev" {
		t.Errorf("expected no extras without build info, got %q", info.String())
	}
}

func TestGet_Stamped(t *testing.T) {
	stamp(t, "1.2.0", "abc1234", "2026-01-15T10:30:00Z", &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "ffffffffffffffff"},
			{Key: "vcs.time", Value: "2020-01-01T00:00:00Z"},
		},
	})

	info := Get()
	if info.GitCommit != "abc1234" {
		t.Errorf("stamped commit should win, got %q", info.GitCommit)
	}
	if want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC); !info.BuildTime.Equal(want) {
		t.Errorf("stamped build time should win, got %v", info.BuildTime)
	}
	if !info.IsRelease() {
		t.Error("stamped clean build should be a release")
	}
	if want := "1.2.0-abc1234 (go1.26.0, built 2026-01-15T10:30:00Z)"; info.String() != want {
		t.Errorf("expected %q, got %q", want, info.String())
	}
}

func TestGet_FromVCS(t *testing.T) {
	stamp(t, "dev", "", "", &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-03-01T08:00:00Z"},
		},
	})

	info := Get()
	if info.GitCommit != "0123456" {
		t.Errorf("expected truncated revision, got %q", info.GitCommit)
	}
	if !info.Dirty {
		t.Error("expected dirty build")
	}
	if Short() != "dev-0123456-dirty" {
		t.Errorf("unexpected short version %q", Short())
	}
	if info.BuildTime.IsZero() {
		t.Error("expected VCS build time")
	}
}
