package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/fwojciec/parley"
	"google.golang.org/genai"
)

// stream implements [parley.Stream] by wrapping the genai SDK's streaming
// iterator. The iterator's pull functions must stay on the reading
// goroutine, so a Close that races a Next only cancels the request and
// leaves stopping the iterator to Next.
type stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	pull   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	once   sync.Once
	queue  []string

	mu      sync.Mutex
	state   parley.StreamState
	err     error
	reading bool
	closed  bool
}

// Interface compliance check.
var _ parley.Stream = (*stream)(nil)

// NewStreamFromIter wraps a genai streaming iterator in a [parley.Stream].
func NewStreamFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) parley.Stream {
	ctx, cancel := context.WithCancel(ctx)
	return newStream(ctx, cancel, seq)
}

// newStream wraps seq. cancel must cancel the context seq was created
// with, so that Close aborts the underlying request.
func newStream(ctx context.Context, cancel context.CancelFunc, seq iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:    ctx,
		cancel: cancel,
		pull:   next,
		stop:   stop,
		state:  parley.StreamStateNew,
	}
}

func (s *stream) Next() (string, error) {
	s.mu.Lock()
	switch s.state {
	case parley.StreamStateComplete:
		s.mu.Unlock()
		return "", io.EOF
	case parley.StreamStateError:
		s.mu.Unlock()
		return "", s.err
	case parley.StreamStateClosed:
		s.mu.Unlock()
		return "", parley.ErrStreamClosed
	}
	s.reading = true
	s.mu.Unlock()

	delta, err := s.advance()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = false
	if s.closed {
		s.once.Do(s.stop)
		return "", parley.ErrStreamClosed
	}
	switch {
	case err == io.EOF:
		s.state = parley.StreamStateComplete
	case err != nil:
		s.state = parley.StreamStateError
		s.err = err
	default:
		s.state = parley.StreamStateStreaming
		return delta, nil
	}
	s.once.Do(s.stop)
	return "", err
}

// advance returns the next text delta, pulling chunks as needed.
func (s *stream) advance() (string, error) {
	for len(s.queue) == 0 {
		if err := s.ctx.Err(); err != nil {
			return "", fmt.Errorf("gemini: %w", err)
		}
		resp, err, ok := s.pull()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini: %w", err)
		}
		if resp == nil {
			continue
		}
		if err := blocked(resp); err != nil {
			return "", err
		}
		s.queue = append(s.queue, parts(resp)...)
	}
	delta := s.queue[0]
	s.queue = s.queue[1:]
	return delta, nil
}

func (s *stream) State() parley.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.state != parley.StreamStateComplete && s.state != parley.StreamStateError {
		s.state = parley.StreamStateClosed
	}
	s.closed = true
	reading := s.reading
	s.mu.Unlock()

	s.cancel()
	if !reading {
		s.once.Do(s.stop)
	}
	return nil
}
