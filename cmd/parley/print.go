package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/chat"
	parleyjson "github.com/fwojciec/parley/json"
)

type printOptions struct {
	prompt   string
	noStream bool
	json     bool
	history  bool
}

// printer observes a conversation in print mode. Deltas, streamed or
// whole, are copied to out unless the transcript is printed as JSON instead.
type printer struct {
	out   io.Writer
	quiet bool

	mu    sync.Mutex
	wrote bool
	err   error
}

func newPrinter(out io.Writer, quiet bool) *printer {
	return &printer{out: out, quiet: quiet}
}

func (p *printer) Observe(ev parley.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e := ev.(type) {
	case parley.EventDelta:
		if !p.quiet {
			io.WriteString(p.out, e.Delta)
			p.wrote = true
		}
	case parley.EventFailed:
		p.err = e.Err
	}
}

func (p *printer) result() (wrote bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wrote, p.err
}

// runPrint runs one turn of conv and writes the reply, or the transcript
// when opts.json is set, to stdout. conv must report to p.
func runPrint(ctx context.Context, conv *chat.Conversation, p *printer, opts printOptions, stdout, stderr io.Writer) error {
	if opts.history {
		err := conv.LoadHistory(ctx)
		switch {
		case errors.Is(err, chat.ErrUnsupported):
			warn(stderr, "history is not available for this backend")
		case err != nil:
			return fmt.Errorf("load history: %w", err)
		}
	}

	var replyErr error
	if opts.noStream {
		_, err := conv.Ask(ctx, opts.prompt)
		if errors.Is(err, parley.ErrStateViolation) || errors.Is(err, chat.ErrUnsupported) {
			return err
		}
		replyErr = err
	} else {
		if err := conv.Send(ctx, opts.prompt); err != nil {
			return err
		}
		if err := conv.Wait(ctx); err != nil {
			conv.Cancel()
			return err
		}
		_, replyErr = p.result()
	}
	if wrote, _ := p.result(); wrote {
		fmt.Fprintln(stdout)
	}

	if opts.json {
		data, err := parleyjson.MarshalTranscript(conv.Session(), conv.Messages())
		if err != nil {
			return fmt.Errorf("encode transcript: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	}
	if replyErr != nil {
		return fmt.Errorf("reply failed: %w", replyErr)
	}
	return nil
}

func warn(w io.Writer, msg string) {
	color.New(color.FgYellow).Fprintf(w, "warning: %s\n", msg)
}

func printError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "parley: %v\n", err)
}
