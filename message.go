package parley

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry in a conversation history.
//
// Content is mutable only while Streaming is true, and only for the tail
// assistant message of a history. Once Streaming is false the message is
// final.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Streaming bool
}

// NewMessage creates a message with a freshly minted ID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewMessageID returns a unique local message identifier.
func NewMessageID() string {
	return "msg-" + uuid.Must(uuid.NewV7()).String()
}
