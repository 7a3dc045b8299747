package types

import "time"

// Verdict is the binary quality prediction for a batch.
type Verdict string

const (
	VerdictPass Verdict = "Pass"
	VerdictFail Verdict = "Fail"
)

// NormalizeVerdict maps a raw prediction string onto the binary verdict domain.
// Only the literal "Pass" passes; anything else, including the empty string,
// is a Fail.
func NormalizeVerdict(prediction string) Verdict {
	if prediction == string(VerdictPass) {
		return VerdictPass
	}
	return VerdictFail
}

// OutcomeState discriminates the Outcome variant.
type OutcomeState string

const (
	StateIdle       OutcomeState = "idle"
	StateAttempting OutcomeState = "attempting"
	StateSucceeded  OutcomeState = "succeeded"
	StateFailed     OutcomeState = "failed"
)

// IsTerminal reports whether the state ends a run.
func (s OutcomeState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Outcome is the observable request state of the simulation panel. Exactly
// one variant holds at a time, selected by State:
//
//   - StateIdle: no run has been started.
//   - StateAttempting: Attempt is the zero-based index of the attempt in flight
//     or pending; Backoff is the delay scheduled before it.
//   - StateSucceeded: Verdict holds the prediction.
//   - StateFailed: Message holds the operator-facing diagnostic.
type Outcome struct {
	State     OutcomeState  `json:"state"`
	RunID     string        `json:"run_id,omitempty"`
	Attempt   int           `json:"attempt"`
	Backoff   time.Duration `json:"backoff_ns,omitempty"`
	Verdict   Verdict       `json:"verdict,omitempty"`
	Message   string        `json:"message,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
}

// IdleOutcome is the initial state.
func IdleOutcome() Outcome {
	return Outcome{State: StateIdle}
}

// AttemptingOutcome marks attempt n of a run as in flight or pending backoff.
func AttemptingOutcome(runID string, attempt int, backoff time.Duration) Outcome {
	return Outcome{State: StateAttempting, RunID: runID, Attempt: attempt, Backoff: backoff}
}

// SucceededOutcome is the terminal success state.
func SucceededOutcome(runID string, attempt int, verdict Verdict) Outcome {
	return Outcome{State: StateSucceeded, RunID: runID, Attempt: attempt, Verdict: verdict}
}

// FailedOutcome is the terminal failure state after attempts are exhausted.
func FailedOutcome(runID string, attempt int, message string) Outcome {
	return Outcome{State: StateFailed, RunID: runID, Attempt: attempt, Message: message}
}

// Loading reports whether a run is in progress.
func (o Outcome) Loading() bool {
	return o.State == StateAttempting
}

// Duration is the time between run start and the last update.
func (o Outcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.UpdatedAt.IsZero() {
		return 0
	}
	return o.UpdatedAt.Sub(o.StartedAt)
}

// StatusText is the short status line shown by the panels.
func (o Outcome) StatusText() string {
	switch o.State {
	case StateAttempting:
		return "Running AI Model..."
	case StateFailed:
		return "Connection Error"
	case StateSucceeded:
		if o.Verdict == VerdictPass {
			return "GOLDEN BATCH (Pass)"
		}
		return "BATCH FAILURE (Fail)"
	default:
		return "Awaiting Simulation..."
	}
}
