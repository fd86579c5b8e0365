package gemini

import (
	"context"
	"fmt"

	"github.com/fwojciec/parley"
	"google.golang.org/genai"
)

// Interface compliance checks.
var (
	_ parley.Streamer = (*Client)(nil)
	_ parley.Chatter  = (*Client)(nil)
)

// Client implements [parley.Streamer] and [parley.Chatter] for the Google
// Gemini API.
type Client struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

type config struct {
	model        string
	systemPrompt string
	baseURL      string
}

// Option configures a [Client].
type Option func(*config)

// WithModel sets the model ID. Default is gemini-3.1-pro-preview.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithSystemPrompt sets the system instruction sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) { c.systemPrompt = prompt }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	cfg := config{model: defaultModel}
	for _, o := range opts {
		o(&cfg)
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{
		client:       gc,
		model:        cfg.model,
		systemPrompt: cfg.systemPrompt,
	}, nil
}

// Stream sends a streaming request and returns a [parley.Stream] of text
// deltas. The request target is ignored; the model is fixed per client.
func (c *Client) Stream(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	iter := c.client.Models.GenerateContentStream(ctx, c.model, Contents(req), c.buildConfig())
	return newStream(ctx, cancel, iter), nil
}

// Chat sends a non-streaming request and returns the reply text.
func (c *Client) Chat(ctx context.Context, req parley.ChatRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, Contents(req), c.buildConfig())
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if err := blocked(resp); err != nil {
		return "", err
	}
	var text string
	for _, part := range parts(resp) {
		text += part
	}
	return text, nil
}

func (c *Client) buildConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if c.systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.systemPrompt}},
		}
	}
	return config
}

// Contents builds the Gemini contents for a request: the prior turns
// followed by the new user message.
func Contents(req parley.ChatRequest) []*genai.Content {
	contents := ConvertMessages(req.History)
	return append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Message}},
	})
}

// ConvertMessages converts parley Messages to genai Contents. Messages
// that are still streaming or carry no text are skipped.
// Exported for testing.
func ConvertMessages(msgs []parley.Message) []*genai.Content {
	var result []*genai.Content
	for _, m := range msgs {
		if m.Streaming || m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == parley.RoleAssistant {
			role = "model"
		}
		result = append(result, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return result
}

// blocked reports a prompt rejected before any candidate was produced.
func blocked(resp *genai.GenerateContentResponse) error {
	if len(resp.Candidates) == 0 && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	return nil
}

// parts returns the visible text parts of the first candidate. Thought
// summaries are not part of the reply.
func parts(resp *genai.GenerateContentResponse) []string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		out = append(out, p.Text)
	}
	return out
}
