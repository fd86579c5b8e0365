package parley_test

import (
	"testing"

	"github.com/fwojciec/parley"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     parley.ChatRequest
		wantErr string
	}{
		{
			name: "valid",
			req: parley.ChatRequest{
				Target:  "7",
				Message: "hello",
				History: []parley.Message{
					{Role: parley.RoleUser, Content: "hi"},
					{Role: parley.RoleAssistant, Content: "hey"},
				},
			},
		},
		{name: "target is optional", req: parley.ChatRequest{Message: "hello"}},
		{name: "blank message", req: parley.ChatRequest{Message: " \n\t"}, wantErr: "message must not be blank"},
		{
			name: "unknown history role",
			req: parley.ChatRequest{
				Message: "hello",
				History: []parley.Message{{Role: parley.RoleUser}, {Role: "system"}},
			},
			wantErr: `history[1]: unknown role "system"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, parley.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMessage(t *testing.T) {
	t.Parallel()

	assert.NoError(t, parley.ValidateMessage(parley.Message{Role: parley.RoleUser}))
	assert.NoError(t, parley.ValidateMessage(parley.Message{Role: parley.RoleAssistant, Streaming: true}))

	err := parley.ValidateMessage(parley.Message{Role: parley.RoleUser, Streaming: true})
	require.ErrorIs(t, err, parley.ErrValidation)
	assert.Contains(t, err.Error(), "cannot be streaming")

	err = parley.ValidateMessage(parley.Message{Role: ""})
	require.ErrorIs(t, err, parley.ErrValidation)
	assert.False(t, parley.ErrValidation == parley.ErrStateViolation)
}
