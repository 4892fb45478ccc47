package status

import "fmt"

// Policy maps a child's exit code and optional self-reported status to the
// final verdict. Precedence, highest first:
//
//  1. a self-reported status is returned verbatim;
//  2. with a configured table, the entry for the exit code, or the table's
//     default augmented with "exit code: N";
//  3. with no table, 0 passes and anything else fails.
//
// Configure a Policy fully before sharing it between goroutines; Resolve
// never mutates it.
type Policy struct {
	table map[int]Status
	def   Status
}

// NewPolicy returns a policy that applies the exit code convention.
func NewPolicy() *Policy {
	return &Policy{}
}

// NewTablePolicy returns a policy with an empty exit code table and the given
// default for unregistered codes.
func NewTablePolicy(def Status) *Policy {
	return &Policy{table: make(map[int]Status), def: def}
}

// Register maps code to s, turning a convention policy into a table policy
// with an ERROR default.
func (p *Policy) Register(code int, s Status) *Policy {
	if p.table == nil {
		p.table = make(map[int]Status)
		if p.def.IsZero() {
			p.def = NewError("unexpected exit code")
		}
	}
	p.table[code] = s
	return p
}

// HasTable reports whether the policy uses an exit code table.
func (p *Policy) HasTable() bool {
	return p != nil && p.table != nil
}

// Resolve computes the verdict. A nil policy applies the convention.
func (p *Policy) Resolve(exitCode int, scanned *Status) Status {
	if scanned != nil && !scanned.IsZero() {
		return *scanned
	}
	if p.HasTable() {
		if s, ok := p.table[exitCode]; ok {
			return s
		}
		return p.def.Augment(fmt.Sprintf("exit code: %d", exitCode))
	}
	if exitCode == 0 {
		return NewPassed("exit code 0")
	}
	return NewFailed(fmt.Sprintf("exit code %d", exitCode))
}

// Inverted returns a new policy with PASSED and FAILED swapped, for actions
// that expect the child to fail. A convention policy becomes a table that
// fails on 0 and passes anything else.
func (p *Policy) Inverted() *Policy {
	if !p.HasTable() {
		return NewTablePolicy(NewPassed("")).Register(0, NewFailed("exit code 0"))
	}
	inv := NewTablePolicy(swap(p.def))
	for code, s := range p.table {
		inv.table[code] = swap(s)
	}
	return inv
}

func swap(s Status) Status {
	switch s.kind {
	case Passed:
		return Status{kind: Failed, reason: s.reason}
	case Failed:
		return Status{kind: Passed, reason: s.reason}
	default:
		return s
	}
}

// HarnessPolicy decodes the harness exit codes (ExitPassed and friends).
// Other codes resolve to ERROR.
func HarnessPolicy() *Policy {
	return NewTablePolicy(NewError("unexpected exit code")).
		Register(ExitPassed, NewPassed("")).
		Register(ExitFailed, NewFailed("")).
		Register(ExitError, NewError("")).
		Register(ExitNotRun, NewNotRun(""))
}
