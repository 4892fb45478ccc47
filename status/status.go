package status

import (
	"fmt"
	"strings"

	"github.com/kbukum/actionexec/errors"
)

// Kind is the verdict category of a Status.
type Kind int

// The zero Kind is deliberately invalid so an unset Status is detectable.
const (
	Passed Kind = iota + 1
	Failed
	Error
	NotRun
)

var kindText = map[Kind]string{
	Passed: "Passed.",
	Failed: "Failed.",
	Error:  "Error.",
	NotRun: "Not run.",
}

var kindName = map[Kind]string{
	Passed: "passed",
	Failed: "failed",
	Error:  "error",
	NotRun: "not_run",
}

// Kinds lists every valid kind in display order.
func Kinds() []Kind { return []Kind{Passed, Failed, Error, NotRun} }

// Text returns the display form used in reports and self-reported lines,
// e.g. "Passed." or "Not run.".
func (k Kind) Text() string {
	if t, ok := kindText[k]; ok {
		return t
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// String returns a lower-case identifier suitable for logs and metric labels.
func (k Kind) String() string {
	if n, ok := kindName[k]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether k is one of the four defined kinds.
func (k Kind) Valid() bool {
	_, ok := kindText[k]
	return ok
}

// Status is an immutable verdict: a kind plus a free-text reason.
// Values are passed by value; every "modification" returns a new Status.
type Status struct {
	kind   Kind
	reason string
}

// New creates a Status of the given kind. It panics on an invalid kind.
func New(kind Kind, reason string) Status {
	if !kind.Valid() {
		panic(fmt.Sprintf("status: invalid kind %d", int(kind)))
	}
	return Status{kind: kind, reason: normalize(reason)}
}

// NewPassed returns a PASSED status.
func NewPassed(reason string) Status { return New(Passed, reason) }

// NewFailed returns a FAILED status.
func NewFailed(reason string) Status { return New(Failed, reason) }

// NewError returns an ERROR status.
func NewError(reason string) Status { return New(Error, reason) }

// NewNotRun returns a NOT_RUN status.
func NewNotRun(reason string) Status { return New(NotRun, reason) }

// Passedf returns a PASSED status with a formatted reason.
func Passedf(format string, args ...any) Status { return NewPassed(fmt.Sprintf(format, args...)) }

// Failedf returns a FAILED status with a formatted reason.
func Failedf(format string, args ...any) Status { return NewFailed(fmt.Sprintf(format, args...)) }

// Errorf returns an ERROR status with a formatted reason.
func Errorf(format string, args ...any) Status { return NewError(fmt.Sprintf(format, args...)) }

// FromError returns an ERROR status whose reason is the error's message.
func FromError(err error) Status {
	return NewError(errors.Reason(err))
}

// Kind returns the verdict category.
func (s Status) Kind() Kind { return s.kind }

// Reason returns the free-text reason. Never nil; may be empty.
func (s Status) Reason() string { return s.reason }

// IsZero reports whether s was never initialised through a constructor.
func (s Status) IsZero() bool { return s.kind == 0 }

// IsPassed reports whether the status is PASSED.
func (s Status) IsPassed() bool { return s.kind == Passed }

// IsFailed reports whether the status is FAILED.
func (s Status) IsFailed() bool { return s.kind == Failed }

// IsError reports whether the status is ERROR.
func (s Status) IsError() bool { return s.kind == Error }

// IsNotRun reports whether the status is NOT_RUN.
func (s Status) IsNotRun() bool { return s.kind == NotRun }

// Augment returns a new Status of the same kind whose reason has aux
// appended as "reason [aux]", or just aux when the reason is empty.
// The receiver is not modified.
func (s Status) Augment(aux string) Status {
	aux = normalize(aux)
	switch {
	case aux == "":
		return s
	case s.reason == "":
		return Status{kind: s.kind, reason: aux}
	default:
		return Status{kind: s.kind, reason: s.reason + " [" + aux + "]"}
	}
}

// Augmentf is Augment with a formatted auxiliary message.
func (s Status) Augmentf(format string, args ...any) Status {
	return s.Augment(fmt.Sprintf(format, args...))
}

// String renders "<kind text> <reason>", e.g. "Failed. exit code 1".
func (s Status) String() string {
	if s.reason == "" {
		return s.kind.Text()
	}
	return s.kind.Text() + " " + s.reason
}

// normalize keeps reasons on one line: a status must survive a round trip
// through a single self-reported output line.
func normalize(reason string) string {
	if !strings.ContainsAny(reason, "\r\n") {
		return strings.TrimSpace(reason)
	}
	return strings.Join(strings.Fields(reason), " ")
}
