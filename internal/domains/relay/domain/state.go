package domain

import "fmt"

// State is the per-request lifecycle of an /ask call:
//
//	Received -> Validated -> UpstreamStreaming -> Completed
//	    \           \                 \
//	     +-----------+-----------------+--> Failed
//
// Completed and Failed are terminal. There is no retry edge.
type State string

const (
	StateReceived          State = "received"
	StateValidated         State = "validated"
	StateUpstreamStreaming State = "upstream_streaming"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var transitions = map[State][]State{
	StateReceived:          {StateValidated, StateFailed},
	StateValidated:         {StateUpstreamStreaming, StateFailed},
	StateUpstreamStreaming: {StateCompleted, StateFailed},
}

// Lifecycle tracks one request's state and rejects illegal transitions.
type Lifecycle struct {
	state State
	trail []State
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateReceived, trail: []State{StateReceived}}
}

func (l *Lifecycle) State() State { return l.state }

// Trail returns every state visited, in order.
func (l *Lifecycle) Trail() []State {
	return append([]State(nil), l.trail...)
}

// To moves to next or returns an error if the edge does not exist.
func (l *Lifecycle) To(next State) error {
	for _, allowed := range transitions[l.state] {
		if allowed == next {
			l.state = next
			l.trail = append(l.trail, next)
			return nil
		}
	}
	return fmt.Errorf("relay: illegal transition %s -> %s", l.state, next)
}

// Fail moves to StateFailed from any non-terminal state. It is a no-op once terminal.
func (l *Lifecycle) Fail() {
	if l.state.Terminal() {
		return
	}
	l.state = StateFailed
	l.trail = append(l.trail, StateFailed)
}

// FailureCause says why a request ended in StateFailed.
type FailureCause string

const (
	CauseNone             FailureCause = ""
	CauseValidation       FailureCause = "validation"
	CauseUpstreamError    FailureCause = "upstream_error"
	CauseUpstreamTimeout  FailureCause = "upstream_timeout"
	CauseClientDisconnect FailureCause = "client_disconnect"
)
