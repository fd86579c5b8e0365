// Command parley is a terminal client for streaming chat agents.
//
// Usage:
//
//	parley [flags]                 interactive TUI
//	parley -p "question" [flags]   one turn, reply printed to stdout
//
// Flags:
//
//	-p, --prompt string      Send one message and print the reply
//	    --no-stream          Use the non-streaming chat endpoint (print mode)
//	    --json               Print the transcript as JSON (print mode)
//	    --history            Load server history before the first turn
//	-t, --target string      Agent to talk to
//	    --base-url string    Chat service base URL
//	    --backend string     Backend: http, gemini, anthropic
//	    --token string       Bearer token for the chat service
//	    --model string       Model ID (gemini, anthropic)
//	    --save string        Write the transcript to this file on exit (TUI)
//	    --config string      Config file (default ~/.config/parley/config.toml)
//	    --log-level string   Log level
//	    --log-file string    Log file
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fwojciec/parley"
	bt "github.com/fwojciec/parley/bubbletea"
	"github.com/fwojciec/parley/chat"
	parleyjson "github.com/fwojciec/parley/json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command line flags.
type cliFlags struct {
	fs *pflag.FlagSet

	prompt     string
	noStream   bool
	json       bool
	history    bool
	target     string
	baseURL    string
	backend    string
	token      string
	model      string
	save       string
	configPath string
	logLevel   string
	logFile    string
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{fs: pflag.NewFlagSet("parley", pflag.ContinueOnError)}
	fs := f.fs
	fs.SetOutput(stderr)
	fs.StringVarP(&f.prompt, "prompt", "p", "", "Send one message and print the reply")
	fs.BoolVar(&f.noStream, "no-stream", false, "Use the non-streaming chat endpoint (print mode)")
	fs.BoolVar(&f.json, "json", false, "Print the transcript as JSON (print mode)")
	fs.BoolVar(&f.history, "history", false, "Load server history before the first turn")
	fs.StringVarP(&f.target, "target", "t", "", "Agent to talk to")
	fs.StringVar(&f.baseURL, "base-url", "", "Chat service base URL")
	fs.StringVar(&f.backend, "backend", "", "Backend: http, gemini, anthropic")
	fs.StringVar(&f.token, "token", "", "Bearer token for the chat service")
	fs.StringVar(&f.model, "model", "", "Model ID (gemini, anthropic)")
	fs.StringVar(&f.save, "save", "", "Write the transcript to this file on exit (TUI)")
	fs.StringVar(&f.configPath, "config", "", "Config file (default ~/.config/parley/config.toml)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level")
	fs.StringVar(&f.logFile, "log-file", "", "Log file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// apply overrides cfg with the flags given on the command line.
func (f *cliFlags) apply(cfg *Config) {
	set := func(name string, dst *string, v string) {
		if f.fs.Changed(name) {
			*dst = v
		}
	}
	set("target", &cfg.Target, f.target)
	set("base-url", &cfg.BaseURL, f.baseURL)
	set("backend", &cfg.Backend, f.backend)
	set("token", &cfg.Token, f.token)
	set("model", &cfg.Gemini.Model, f.model)
	set("model", &cfg.Anthropic.Model, f.model)
	set("log-level", &cfg.Log.Level, f.logLevel)
	set("log-file", &cfg.Log.File, f.logFile)
}

func run(args []string, stdout, stderr io.Writer) error {
	flags, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := resolveConfig(flags, apiKeys{
		gemini:    os.Getenv("GEMINI_API_KEY"),
		anthropic: os.Getenv("ANTHROPIC_API_KEY"),
	})
	if err != nil {
		return err
	}

	interactive := !flags.fs.Changed("prompt")
	logger, closeLog, err := newLogger(cfg.Log, interactive, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if !interactive {
		p := newPrinter(stdout, flags.json)
		conv := newConversation(b, cfg, logger, p.Observe)
		return runPrint(ctx, conv, p, printOptions{
			prompt:   flags.prompt,
			noStream: flags.noStream,
			json:     flags.json,
			history:  flags.history,
		}, stdout, stderr)
	}

	events := bt.NewEvents(256)
	conv := newConversation(b, cfg, logger, events.Observe)
	var opts []bt.Option
	if flags.history {
		opts = append(opts, bt.WithHistoryOnStart())
	}
	if err := bt.Run(ctx, bt.New(conv, events, parley.DefaultTheme(), opts...)); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}

	if flags.save != "" && conv.Len() > 0 {
		if err := saveTranscript(flags.save, conv); err != nil {
			return fmt.Errorf("save transcript: %w", err)
		}
		fmt.Fprintf(stderr, "Transcript saved to %s\n", flags.save)
	}
	return nil
}

// apiKeys holds model API keys read from the environment.
type apiKeys struct {
	gemini    string
	anthropic string
}

// resolveConfig loads the config file and applies flags on top. Env vars
// are read by the caller and passed in as values; they only fill keys the
// config file leaves empty.
func resolveConfig(flags *cliFlags, env apiKeys) (Config, error) {
	path, required := flags.configPath, true
	if path == "" {
		path, required = defaultConfigPath(), false
	}
	cfg, err := loadConfig(path, required)
	if err != nil {
		return Config{}, err
	}
	flags.apply(&cfg)
	cfg.Gemini.APIKey = cmp.Or(cfg.Gemini.APIKey, env.gemini)
	cfg.Anthropic.APIKey = cmp.Or(cfg.Anthropic.APIKey, env.anthropic)
	cfg.resolveTarget()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newConversation(b backend, cfg Config, logger logrus.FieldLogger, observe func(parley.Event)) *chat.Conversation {
	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithChatter(b.chatter),
		chat.WithObserver(observe),
		chat.WithHistoryLimit(cfg.HistoryLimit),
		chat.WithFailureNotice(cfg.FailureNotice),
		chat.WithCancelNotice(cfg.CancelNotice),
	}
	if b.history != nil {
		opts = append(opts, chat.WithHistoryService(b.history))
	}
	conv := chat.NewConversation(b.streamer, opts...)
	if cfg.Target != "" {
		conv.Bind(cfg.Target)
	}
	return conv
}

func saveTranscript(path string, conv *chat.Conversation) error {
	data, err := parleyjson.MarshalTranscript(conv.Session(), conv.Messages())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
