// Package httpapi implements parley's backend interfaces for the agent
// platform's REST API.
//
// Streaming replies arrive as server-sent events and are decoded by
// package sse; plain chat, history fetch and history clear are ordinary
// JSON request/response calls.
package httpapi

import (
	"encoding/json"
	"strconv"
)

const (
	chatPath       = "/api/v1/agents/chat"
	chatStreamPath = "/api/v1/agents/chat/stream"
	historyPath    = "/api/v1/agents/%s/conversations"
	// The platform serves history deletion under the workflows prefix.
	clearHistoryPath = "/api/v1/workflows/%s/conversations"

	// DefaultHistoryLimit is the page size the platform's web client uses.
	DefaultHistoryLimit = 20
)

// apiChatRequest is the JSON body of both chat endpoints.
type apiChatRequest struct {
	Message   string          `json:"message"`
	SessionID string          `json:"session_id"`
	AgentID   json.RawMessage `json:"agent_id,omitempty"`
}

// apiChatResponse is the non-streaming reply. Some deployments wrap it in
// a {"data": ...} envelope.
type apiChatResponse struct {
	Response *string `json:"response"`
	Data     *struct {
		Response string `json:"response"`
	} `json:"data"`
}

// apiHistoryRecord is one stored conversation turn.
type apiHistoryRecord struct {
	ID        json.RawMessage `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	CreatedAt string          `json:"created_at"`
}

// apiHistoryEnvelope wraps the record list on deployments that use one.
type apiHistoryEnvelope struct {
	Data []apiHistoryRecord `json:"data"`
}

// apiErrorResponse covers the error bodies the platform is known to send.
type apiErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// agentID encodes a target as the platform expects: numeric identifiers as
// JSON numbers, anything else as a JSON string.
func agentID(target string) json.RawMessage {
	if target == "" {
		return nil
	}
	if n, err := strconv.ParseInt(target, 10, 64); err == nil && strconv.FormatInt(n, 10) == target {
		return json.RawMessage(target)
	}
	b, _ := json.Marshal(target)
	return b
}

// recordID renders a record id, numeric or string, without JSON quoting.
func recordID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
