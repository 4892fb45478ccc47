package timeout

// Outcome is how a guarded handler invocation ended.
type Outcome int

const (
	// OutcomeNone means no handler ran because the command never timed out.
	OutcomeNone Outcome = iota
	// OutcomeSkipped means diagnostics were not attempted: no handler, pid
	// unknown, handler unavailable, or its circuit open.
	OutcomeSkipped
	// OutcomeCompleted means the handler returned without error.
	OutcomeCompleted
	// OutcomeFailed means the handler returned an error or panicked.
	OutcomeFailed
	// OutcomeTimedOut means the handler's watchdog fired first.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}
