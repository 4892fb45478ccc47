package process

import (
	"bytes"
	"sync"

	"github.com/kbukum/actionexec/status"
)

// StatusScanner remembers the last well-formed self-reported status seen on
// any of a child's output streams. Lines without the prefix and malformed
// payloads are ignored.
type StatusScanner struct {
	mu   sync.Mutex
	last *status.Status
}

// NewStatusScanner returns an empty scanner.
func NewStatusScanner() *StatusScanner {
	return &StatusScanner{}
}

// ScanLine inspects one output line. Safe for concurrent use.
func (s *StatusScanner) ScanLine(line []byte) {
	if !bytes.HasPrefix(line, prefix) {
		return
	}
	st, ok := status.ParseLine(string(line))
	if !ok {
		return
	}
	s.mu.Lock()
	s.last = &st
	s.mu.Unlock()
}

// Status returns the last reported status, or nil.
func (s *StatusScanner) Status() *status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	st := *s.last
	return &st
}

var prefix = []byte(status.ExitPrefix)
