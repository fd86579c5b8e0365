// Package anthropic implements [parley.Streamer] and [parley.Chatter] for
// the Anthropic Messages API.
//
// Replies stream over SSE as typed events. The stream reads one event at a
// time and surfaces only text deltas through the pull-based [parley.Stream]
// interface; pings, block boundaries and usage reports are consumed
// silently.
package anthropic

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
	apiVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
)

// apiCacheControl specifies a cache breakpoint for prompt caching.
type apiCacheControl struct {
	Type string `json:"type"` // always "ephemeral"
}

// apiRequest is the JSON body sent to the Anthropic Messages API.
type apiRequest struct {
	Model        string            `json:"model"`
	MaxTokens    int               `json:"max_tokens"`
	Stream       bool              `json:"stream"`
	System       []apiContentBlock `json:"system,omitempty"`
	Messages     []apiMessage      `json:"messages"`
	CacheControl *apiCacheControl  `json:"cache_control,omitempty"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type         string           `json:"type"`
	Text         string           `json:"text,omitempty"`
	CacheControl *apiCacheControl `json:"cache_control,omitempty"`
}

// apiResponse is the body of a non-streaming reply.
type apiResponse struct {
	Content    []apiContentBlock `json:"content"`
	StopReason string            `json:"stop_reason"`
}

// SSE response types. Only the fields the stream acts on are decoded.

type sseContentBlockDelta struct {
	Type  string   `json:"type"`
	Index int      `json:"index"`
	Delta sseDelta `json:"delta"`
}

type sseDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type sseError struct {
	Type  string         `json:"type"`
	Error sseErrorDetail `json:"error"`
}

type sseErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// apiErrorResponse is the JSON body returned on non-200 HTTP responses.
type apiErrorResponse struct {
	Type  string         `json:"type"`
	Error sseErrorDetail `json:"error"`
}
