package parley

import (
	"fmt"
	"strings"
)

// Validate checks the constraints every backend relies on: a non-blank
// message and a history made only of valid messages. Backends may apply
// additional validation of their own.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message must not be blank: %w", ErrValidation)
	}
	for i, m := range r.History {
		if err := ValidateMessage(m); err != nil {
			return fmt.Errorf("history[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateMessage checks that a message has a known role and that only an
// assistant reply is marked as streaming.
func ValidateMessage(m Message) error {
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q: %w", m.Role, ErrValidation)
	}
	if m.Streaming && m.Role != RoleAssistant {
		return fmt.Errorf("%s message cannot be streaming: %w", m.Role, ErrValidation)
	}
	return nil
}
