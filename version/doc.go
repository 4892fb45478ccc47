// Package version reports build information for the actionexec binary.
//
// Version, GitCommit and BuildTime are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/actionexec/version.Version=1.2.0" ./cmd/actionexec
//
// Unstamped builds fall back to the VCS settings embedded by the Go toolchain.
package version
