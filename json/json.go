// Package json encodes conversation transcripts as JSON.
//
// The wire format is a versioned envelope holding the session and its
// messages. It is an output format for scripting, not a persistence layer:
// conversation history lives on the server.
package json

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/parley"
)

// envelope is the v1 wire format for a transcript.
type envelope struct {
	Version   int          `json:"version"`
	SessionID string       `json:"session_id"`
	Target    string       `json:"target,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Messages  []messageDTO `json:"messages"`
}

// messageDTO is the JSON representation of a Message.
type messageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Streaming *bool     `json:"streaming,omitempty"`
}

// MarshalTranscript serializes a session and its messages to JSON in v1
// envelope format.
func MarshalTranscript(s parley.Session, msgs []parley.Message) ([]byte, error) {
	env := envelope{
		Version:   1,
		SessionID: s.ID,
		Target:    s.Target,
		CreatedAt: s.CreatedAt,
		Messages:  make([]messageDTO, len(msgs)),
	}
	for i, msg := range msgs {
		if err := parley.ValidateMessage(msg); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		dto := messageDTO{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
		if msg.Streaming {
			streaming := true
			dto.Streaming = &streaming
		}
		env.Messages[i] = dto
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalTranscript deserializes a transcript from JSON in v1 envelope
// format.
func UnmarshalTranscript(data []byte) (parley.Session, []parley.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return parley.Session{}, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return parley.Session{}, nil, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	msgs := make([]parley.Message, len(env.Messages))
	for i, dto := range env.Messages {
		msg := parley.Message{
			ID:        dto.ID,
			Role:      parley.Role(dto.Role),
			Content:   dto.Content,
			Timestamp: dto.Timestamp,
			Streaming: dto.Streaming != nil && *dto.Streaming,
		}
		if err := parley.ValidateMessage(msg); err != nil {
			return parley.Session{}, nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs[i] = msg
	}
	s := parley.Session{
		ID:        env.SessionID,
		Target:    env.Target,
		CreatedAt: env.CreatedAt,
	}
	return s, msgs, nil
}
