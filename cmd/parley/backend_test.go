package main

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	logger := logrus.New()

	t.Run("http provides history", func(t *testing.T) {
		t.Parallel()
		cfg := defaultConfig()
		cfg.BaseURL = "http://localhost:8080"
		cfg.Token = "tok"
		b, err := newBackend(context.Background(), cfg, logger)
		require.NoError(t, err)
		assert.NotNil(t, b.streamer)
		assert.NotNil(t, b.chatter)
		assert.NotNil(t, b.history)
	})

	t.Run("gemini has no history", func(t *testing.T) {
		t.Parallel()
		cfg := defaultConfig()
		cfg.Backend = backendGemini
		cfg.Gemini = GeminiConfig{APIKey: "gk-test", Model: "gemini-flash", SystemPrompt: "Be brief."}
		b, err := newBackend(context.Background(), cfg, logger)
		require.NoError(t, err)
		assert.NotNil(t, b.streamer)
		assert.NotNil(t, b.chatter)
		assert.Nil(t, b.history)
	})

	t.Run("anthropic has no history", func(t *testing.T) {
		t.Parallel()
		cfg := defaultConfig()
		cfg.Backend = backendAnthropic
		cfg.Anthropic = AnthropicConfig{APIKey: "sk-test", Model: "claude-opus-4-20250514", MaxTokens: 1024}
		b, err := newBackend(context.Background(), cfg, logger)
		require.NoError(t, err)
		assert.NotNil(t, b.streamer)
		assert.NotNil(t, b.chatter)
		assert.Nil(t, b.history)
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Parallel()
		cfg := defaultConfig()
		cfg.Backend = "grpc"
		_, err := newBackend(context.Background(), cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown backend")
	})
}
