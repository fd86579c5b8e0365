// Package mock provides test doubles for parley interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/parley"
)

// Interface compliance checks.
var (
	_ parley.Streamer = (*Streamer)(nil)
	_ parley.Chatter  = (*Chatter)(nil)
)

// Streamer is a test double for parley.Streamer.
// Set StreamFn before calling Stream.
type Streamer struct {
	StreamFn func(ctx context.Context, req parley.ChatRequest) (parley.Stream, error)
}

// Stream delegates to StreamFn.
func (s *Streamer) Stream(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
	return s.StreamFn(ctx, req)
}

// Chatter is a test double for parley.Chatter.
// Set ChatFn before calling Chat.
type Chatter struct {
	ChatFn func(ctx context.Context, req parley.ChatRequest) (string, error)
}

// Chat delegates to ChatFn.
func (c *Chatter) Chat(ctx context.Context, req parley.ChatRequest) (string, error) {
	return c.ChatFn(ctx, req)
}
