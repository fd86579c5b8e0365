package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/anthropic"
	"github.com/fwojciec/parley/gemini"
	"github.com/fwojciec/parley/httpapi"
	"github.com/sirupsen/logrus"
)

// backend groups the services one backend provides. history is nil when
// the backend keeps no server-side history.
type backend struct {
	streamer parley.Streamer
	chatter  parley.Chatter
	history  parley.HistoryService
}

// newBackend constructs the backend selected by cfg. cfg must be valid.
func newBackend(ctx context.Context, cfg Config, logger logrus.FieldLogger) (backend, error) {
	switch cfg.Backend {
	case backendHTTP:
		opts := []httpapi.Option{
			httpapi.WithIdleTimeout(cfg.IdleTimeout.Duration),
			httpapi.WithRequestTimeout(cfg.RequestTimeout.Duration),
			httpapi.WithLogger(logger),
		}
		if cfg.Token != "" {
			opts = append(opts, httpapi.WithBearerToken(cfg.Token))
		}
		client := httpapi.New(cfg.BaseURL, opts...)
		return backend{streamer: client, chatter: client, history: client}, nil

	case backendGemini:
		var opts []gemini.Option
		if cfg.Gemini.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Gemini.Model))
		}
		if cfg.Gemini.SystemPrompt != "" {
			opts = append(opts, gemini.WithSystemPrompt(cfg.Gemini.SystemPrompt))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		client, err := gemini.New(ctx, cfg.Gemini.APIKey, opts...)
		if err != nil {
			return backend{}, fmt.Errorf("gemini: %w", err)
		}
		return backend{streamer: client, chatter: client}, nil

	case backendAnthropic:
		opts := []anthropic.Option{anthropic.WithLogger(logger)}
		if cfg.Anthropic.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Anthropic.Model))
		}
		if cfg.Anthropic.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(cfg.Anthropic.MaxTokens))
		}
		if cfg.Anthropic.SystemPrompt != "" {
			opts = append(opts, anthropic.WithSystemPrompt(cfg.Anthropic.SystemPrompt))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		client := anthropic.New(cfg.Anthropic.APIKey, opts...)
		return backend{streamer: client, chatter: client}, nil

	default:
		return backend{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
