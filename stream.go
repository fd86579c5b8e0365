package parley

import "context"

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving deltas.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

func (s StreamState) String() string {
	switch s {
	case StreamStateNew:
		return "new"
	case StreamStateStreaming:
		return "streaming"
	case StreamStateComplete:
		return "complete"
	case StreamStateError:
		return "error"
	case StreamStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is a pull-based sequence of content deltas. It is finite and not
// restartable.
//
// Next returns the next non-empty delta in stream order. It returns io.EOF
// once the stream has completed, either through the in-band end-of-stream
// sentinel or because the transport closed cleanly. Any other error is
// terminal and is returned again by subsequent calls.
//
// Close releases the underlying transport. Closing before a terminal state
// moves the stream to StreamStateClosed; further Next calls return
// ErrStreamClosed.
type Stream interface {
	Next() (string, error)
	State() StreamState
	Close() error
}

// ChatRequest is one conversational turn sent to a backend.
type ChatRequest struct {
	Target    string    // agent identifier
	Message   string    // user content for this turn
	SessionID string    // conversation scope
	History   []Message // prior turns; only used by backends without server-side sessions
}

// Streamer issues streamed chat requests. A non-nil error means the
// request failed before any response body was read, so no delta exists.
type Streamer interface {
	Stream(ctx context.Context, req ChatRequest) (Stream, error)
}

// Chatter issues non-streaming chat requests and returns the whole reply.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// HistoryService is the server-side store of conversation history.
type HistoryService interface {
	// History returns at most limit messages recorded for the session,
	// oldest first.
	History(ctx context.Context, target, sessionID string, limit int) ([]Message, error)
	// ClearHistory deletes the recorded history of the session.
	ClearHistory(ctx context.Context, target, sessionID string) error
}
