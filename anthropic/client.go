package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/parley"
	"github.com/sirupsen/logrus"
)

// Interface compliance checks.
var (
	_ parley.Streamer = (*Client)(nil)
	_ parley.Chatter  = (*Client)(nil)
)

// Client talks to the Anthropic Messages API. ChatRequest.Target is not
// sent: the model is fixed per client.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	maxTokens    int
	systemPrompt string
	httpClient   *http.Client
	logger       logrus.FieldLogger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithMaxTokens caps the length of each reply.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.systemPrompt = prompt }
}

// WithLogger sets the logger for request failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		httpClient: http.DefaultClient,
		logger:     discard,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream sends a streaming request and returns a [parley.Stream] of text
// deltas.
func (c *Client) Stream(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, resp.Body), nil
}

// Chat sends a non-streaming request and returns the reply text.
func (c *Client) Chat(ctx context.Context, req parley.ChatRequest) (string, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	var text strings.Builder
	for _, b := range body.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return text.String(), nil
}

func (c *Client) post(ctx context.Context, req parley.ChatRequest, stream bool) (*http.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	body, err := json.Marshal(c.buildRequest(req, stream))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		se := parseHTTPError(resp)
		c.logger.WithFields(logrus.Fields{
			"status":     se.StatusCode,
			"session_id": req.SessionID,
		}).Warn("anthropic request failed")
		return nil, fmt.Errorf("anthropic: %w", se)
	}
	return resp, nil
}

func (c *Client) buildRequest(req parley.ChatRequest, stream bool) apiRequest {
	msgs := make([]parley.Message, 0, len(req.History)+1)
	msgs = append(msgs, req.History...)
	msgs = append(msgs, parley.Message{Role: parley.RoleUser, Content: req.Message})

	apiReq := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    stream,
		System:    convertSystem(c.systemPrompt),
		Messages:  convertMessages(msgs),
	}
	injectCacheMarkers(&apiReq)
	return apiReq
}

// convertSystem converts a system prompt string to an array of content blocks
// suitable for the Anthropic API. Returns nil when the prompt is empty.
func convertSystem(prompt string) []apiContentBlock {
	if prompt == "" {
		return nil
	}
	return []apiContentBlock{{Type: "text", Text: prompt}}
}

// injectCacheMarkers sets cache_control breakpoints on the request:
//  1. Top-level: automatic caching for the conversation message window.
//  2. System prompt last block: stable content breakpoint.
func injectCacheMarkers(req *apiRequest) {
	cc := &apiCacheControl{Type: "ephemeral"}
	req.CacheControl = cc
	if len(req.System) > 0 {
		req.System[len(req.System)-1].CacheControl = cc
	}
}

// convertMessages maps history to API messages. Streaming placeholders and
// empty messages are skipped, and consecutive messages with the same role
// are merged into one message because the API requires roles to alternate.
// A leading assistant message is dropped: the API requires the first
// message to come from the user.
func convertMessages(msgs []parley.Message) []apiMessage {
	var result []apiMessage
	for _, m := range msgs {
		if m.Streaming || m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == parley.RoleAssistant {
			role = "assistant"
		}
		if len(result) == 0 && role == "assistant" {
			continue
		}
		block := apiContentBlock{Type: "text", Text: m.Content}
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, block)
			continue
		}
		result = append(result, apiMessage{Role: role, Content: []apiContentBlock{block}})
	}
	return result
}

// parseHTTPError builds a StatusError from a non-200 response. The message
// is the API's error type and message when the body is an error object,
// the raw body otherwise.
func parseHTTPError(resp *http.Response) *parley.StatusError {
	se := &parley.StatusError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return se
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Type == "" {
		se.Message = strings.TrimSpace(string(body))
		return se
	}
	se.Message = apiErr.Error.Type + ": " + apiErr.Error.Message
	return se
}
