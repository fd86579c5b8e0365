package main

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fwojciec/parley/chat"
	"github.com/fwojciec/parley/httpapi"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by the backend key.
const (
	backendHTTP      = "http"
	backendGemini    = "gemini"
	backendAnthropic = "anthropic"
)

// Config is the parley configuration file.
type Config struct {
	BaseURL        string          `toml:"base_url"`
	Target         string          `toml:"target"`
	Backend        string          `toml:"backend"`
	Token          string          `toml:"token"`
	IdleTimeout    duration        `toml:"idle_timeout"`
	RequestTimeout duration        `toml:"request_timeout"`
	HistoryLimit   int             `toml:"history_limit"`
	FailureNotice  string          `toml:"failure_notice"`
	CancelNotice   string          `toml:"cancel_notice"`
	Log            LogConfig       `toml:"log"`
	Gemini         GeminiConfig    `toml:"gemini"`
	Anthropic      AnthropicConfig `toml:"anthropic"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type GeminiConfig struct {
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	SystemPrompt string `toml:"system_prompt"`
}

type AnthropicConfig struct {
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	MaxTokens    int    `toml:"max_tokens"`
	SystemPrompt string `toml:"system_prompt"`
}

// duration decodes TOML strings like "90s" or "2m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaultConfig() Config {
	return Config{
		Backend:        backendHTTP,
		IdleTimeout:    duration{60 * time.Second},
		RequestTimeout: duration{30 * time.Second},
		HistoryLimit:   httpapi.DefaultHistoryLimit,
		FailureNotice:  chat.DefaultFailureNotice,
		Log:            LogConfig{Level: "info"},
	}
}

// defaultConfigPath returns ~/.config/parley/config.toml.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "parley", "config.toml")
}

// loadConfig reads config from path on top of the defaults, expanding
// environment variables. A missing file is only an error when required.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	md, err := toml.Decode(expandEnvVars(string(data)), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("parsing config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(name)
	})
}

// Validate checks that the settings needed by the selected backend are
// present and valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case backendHTTP:
		if c.BaseURL == "" {
			return fmt.Errorf("base_url is required for the %s backend", backendHTTP)
		}
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base_url must use http or https scheme")
		}
	case backendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required for the %s backend (or set GEMINI_API_KEY)", backendGemini)
		}
	case backendAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("anthropic.api_key is required for the %s backend (or set ANTHROPIC_API_KEY)", backendAnthropic)
		}
		if c.Anthropic.MaxTokens < 0 {
			return fmt.Errorf("anthropic.max_tokens must not be negative")
		}
	default:
		return fmt.Errorf("unknown backend %q: must be %q, %q or %q", c.Backend, backendHTTP, backendGemini, backendAnthropic)
	}
	if c.IdleTimeout.Duration < 0 || c.RequestTimeout.Duration < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	if strings.TrimSpace(c.FailureNotice) == "" {
		return fmt.Errorf("failure_notice must not be blank")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// resolveTarget fills in the target for backends that don't address
// agents: a model API conversation is bound to its model, or to the
// backend name when the model is the client default.
func (c *Config) resolveTarget() {
	if c.Target != "" {
		return
	}
	switch c.Backend {
	case backendGemini:
		c.Target = cmp.Or(c.Gemini.Model, backendGemini)
	case backendAnthropic:
		c.Target = cmp.Or(c.Anthropic.Model, backendAnthropic)
	}
}
