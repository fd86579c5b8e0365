package parley

import (
	"time"

	"github.com/google/uuid"
)

// Session scopes one conversation. A session owns exactly one history and
// at most one in-flight stream. Sessions are replaced, never merged, when
// the bound target changes or the conversation is reset.
type Session struct {
	ID        string
	Target    string // agent identifier; empty when nothing is bound
	CreatedAt time.Time
}

// NewSession mints a session bound to target.
func NewSession(target string) Session {
	return Session{
		ID:        NewSessionID(),
		Target:    target,
		CreatedAt: time.Now(),
	}
}

// NewSessionID returns a unique session identifier.
func NewSessionID() string {
	return "session-" + uuid.Must(uuid.NewV7()).String()
}
