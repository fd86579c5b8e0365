package chat

// State is the phase of a conversation's turn.
//
// The streaming placeholder is appended when a turn enters StateSending;
// the turn moves to StateStreaming on its first delta, so StateSending
// marks a request with no content yet. Both count as busy.
type State int

const (
	StateIdle      State = iota // Ready to accept a send.
	StateSending                // Request issued, no delta received yet.
	StateStreaming              // At least one delta received.
	StateCompleted              // Reply finished normally; transient.
	StateFailed                 // Reply ended with an error; transient.
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether a turn is in flight.
func (s State) Busy() bool {
	return s == StateSending || s == StateStreaming
}
