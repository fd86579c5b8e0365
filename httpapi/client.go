package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/sse"
	"github.com/sirupsen/logrus"
)

// Interface compliance checks.
var (
	_ parley.Streamer       = (*Client)(nil)
	_ parley.Chatter        = (*Client)(nil)
	_ parley.HistoryService = (*Client)(nil)
)

// Client talks to the agent platform.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	header         http.Header
	idleTimeout    time.Duration
	requestTimeout time.Duration
	logger         logrus.FieldLogger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Its Timeout should be zero:
// a client-wide timeout would cut long streamed replies short.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithIdleTimeout aborts a streamed reply when no chunk arrives for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// WithRequestTimeout bounds each non-streaming call.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithBearerToken authenticates every request with token.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a [Client] for the platform at baseURL.
func New(baseURL string, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		header:     make(http.Header),
		logger:     discard,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream posts a chat turn to the streaming endpoint. A non-success status
// is returned as a [*parley.StatusError] before any body is read.
func (c *Client) Stream(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
	resp, err := c.postChat(ctx, chatStreamPath, req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"target":     req.Target,
		"session_id": req.SessionID,
	}).Debug("stream opened")
	return sse.NewStream(resp.Body, sse.WithIdleTimeout(c.idleTimeout)), nil
}

// Chat posts a chat turn to the non-streaming endpoint and returns the
// whole reply.
func (c *Client) Chat(ctx context.Context, req parley.ChatRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.postChat(ctx, chatPath, req, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out apiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("httpapi: decode chat response: %w", err)
	}
	switch {
	case out.Response != nil:
		return *out.Response, nil
	case out.Data != nil:
		return out.Data.Response, nil
	default:
		return "", fmt.Errorf("httpapi: chat response has no reply")
	}
}

// History fetches the recorded turns of a session, oldest first. Records
// with roles other than user and assistant are skipped.
func (c *Client) History(ctx context.Context, target, sessionID string, limit int) ([]parley.Message, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	q := url.Values{"session_id": {sessionID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf(historyPath, url.PathEscape(target))
	resp, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpapi: read history: %w", err)
	}
	records, err := decodeHistory(body)
	if err != nil {
		return nil, fmt.Errorf("httpapi: decode history: %w", err)
	}

	msgs := make([]parley.Message, 0, len(records))
	for _, r := range records {
		role := parley.Role(r.Role)
		if !role.Valid() {
			c.logger.WithField("role", r.Role).Debug("skipping history record")
			continue
		}
		msgs = append(msgs, parley.Message{
			ID:        "msg-" + recordID(r.ID),
			Role:      role,
			Content:   r.Content,
			Timestamp: parseTimestamp(r.CreatedAt),
		})
	}
	return msgs, nil
}

// ClearHistory deletes the recorded turns of a session.
func (c *Client) ClearHistory(ctx context.Context, target, sessionID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	q := url.Values{"session_id": {sessionID}}
	path := fmt.Sprintf(clearHistoryPath, url.PathEscape(target))
	resp, err := c.do(ctx, http.MethodDelete, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) postChat(ctx context.Context, path string, req parley.ChatRequest, accept string) (*http.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	body, err := json.Marshal(apiChatRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		AgentID:   agentID(req.Target),
	})
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, body, "Accept", accept)
}

// do sends a request and returns the response when its status is 2xx.
// Otherwise the body is consumed into a *parley.StatusError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, headers ...string) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		httpReq.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		statusErr := parseHTTPError(resp)
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("request failed")
		return nil, fmt.Errorf("httpapi: %w", statusErr)
	}
	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func parseHTTPError(resp *http.Response) *parley.StatusError {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &parley.StatusError{StatusCode: resp.StatusCode}
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		for _, msg := range []string{apiErr.Message, apiErr.Error, apiErr.Detail} {
			if msg != "" {
				return &parley.StatusError{StatusCode: resp.StatusCode, Message: msg}
			}
		}
	}
	return &parley.StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func decodeHistory(body []byte) ([]apiHistoryRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []apiHistoryRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var env apiHistoryEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Layouts seen in created_at. Zone-less layouts are read as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
