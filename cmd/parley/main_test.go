package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	f, err := parseFlags([]string{"-p", "hello", "--json", "-t", "7", "--no-stream", "--history"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "hello", f.prompt)
	assert.Equal(t, "7", f.target)
	assert.True(t, f.json)
	assert.True(t, f.noStream)
	assert.True(t, f.history)

	_, err = parseFlags([]string{"--bogus"}, io.Discard)
	require.Error(t, err)
}

func TestResolveConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
base_url = "http://file.example.com"
target = "from-file"

[log]
level = "warn"
`)

	t.Run("flags override file", func(t *testing.T) {
		t.Parallel()
		f, err := parseFlags([]string{"--config", path, "--target", "from-flag", "--log-level", "debug"}, io.Discard)
		require.NoError(t, err)
		cfg, err := resolveConfig(f, apiKeys{})
		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.Target)
		assert.Equal(t, "http://file.example.com", cfg.BaseURL)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("unset flags keep file values", func(t *testing.T) {
		t.Parallel()
		f, err := parseFlags([]string{"--config", path}, io.Discard)
		require.NoError(t, err)
		cfg, err := resolveConfig(f, apiKeys{})
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Target)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("explicit config must exist", func(t *testing.T) {
		t.Parallel()
		f, err := parseFlags([]string{"--config", filepath.Join(t.TempDir(), "absent.toml")}, io.Discard)
		require.NoError(t, err)
		_, err = resolveConfig(f, apiKeys{})
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("gemini key from environment", func(t *testing.T) {
		t.Parallel()
		f, err := parseFlags([]string{"--config", path, "--backend", "gemini", "--model", "gemini-flash", "--target", ""}, io.Discard)
		require.NoError(t, err)
		cfg, err := resolveConfig(f, apiKeys{gemini: "gk-env"})
		require.NoError(t, err)
		assert.Equal(t, "gk-env", cfg.Gemini.APIKey)
		assert.Equal(t, "gemini-flash", cfg.Target)
	})

	t.Run("anthropic key from environment", func(t *testing.T) {
		t.Parallel()
		f, err := parseFlags([]string{"--config", path, "--backend", "anthropic", "--target", ""}, io.Discard)
		require.NoError(t, err)
		cfg, err := resolveConfig(f, apiKeys{anthropic: "sk-env"})
		require.NoError(t, err)
		assert.Equal(t, "sk-env", cfg.Anthropic.APIKey)
		assert.Equal(t, "anthropic", cfg.Target)
	})

	t.Run("invalid result", func(t *testing.T) {
		t.Parallel()
		f, err := parseFlags([]string{"--config", path, "--base-url", ""}, io.Discard)
		require.NoError(t, err)
		_, err = resolveConfig(f, apiKeys{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url is required")
	})
}

func TestRun_Help(t *testing.T) {
	t.Parallel()
	assert.NoError(t, run([]string{"--help"}, io.Discard, io.Discard))
}
