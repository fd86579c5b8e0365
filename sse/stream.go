package sse

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fwojciec/parley"
)

// Interface compliance check.
var _ parley.Stream = (*Stream)(nil)

// Stream implements [parley.Stream] over an SSE response body. Each Read
// on the body is one chunk fed to the [Decoder]; decoded lines are
// classified and data payloads extracted into deltas. Empty deltas are
// dropped.
//
// A Stream is not safe for concurrent use, except that Close may be called
// from another goroutine to abort a blocked Next.
type Stream struct {
	body    io.ReadCloser
	decoder *Decoder
	chunk   []byte
	queue   []string // deltas decoded but not yet returned
	drained bool     // sentinel seen or transport ended cleanly

	mu    sync.Mutex
	state parley.StreamState
	err   error // terminal error, if any

	idle     time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
	closed   atomic.Bool
}

// Option configures a [Stream].
type Option func(*Stream)

// WithIdleTimeout aborts the stream when a read waits longer than d for
// the next chunk. The body is closed and Next returns
// [parley.ErrIdleTimeout]. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Stream) { s.idle = d }
}

// WithChunkSize sets the size of each body read.
func WithChunkSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.chunk = make([]byte, n)
		}
	}
}

// NewStream creates a Stream reading from body. The stream owns body and
// closes it on Close.
func NewStream(body io.ReadCloser, opts ...Option) *Stream {
	s := &Stream{
		body:    body,
		decoder: NewDecoder(),
		chunk:   make([]byte, defaultChunkSize),
		state:   parley.StreamStateNew,
	}
	for _, o := range opts {
		o(s)
	}
	if s.idle > 0 {
		s.timer = time.AfterFunc(s.idle, s.expire)
		s.timer.Stop()
	}
	return s
}

// Next returns the next content delta. Returns io.EOF when the stream
// completes normally.
func (s *Stream) Next() (string, error) {
	if err := s.terminalErr(); err != nil {
		return "", err
	}

	for {
		if len(s.queue) > 0 {
			delta := s.queue[0]
			s.queue = s.queue[1:]
			s.setStreaming()
			return delta, nil
		}
		if s.drained {
			return "", s.complete()
		}
		if err := s.fill(); err != nil {
			return "", s.terminate(err)
		}
	}
}

// State returns the current stream state.
func (s *Stream) State() parley.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close closes the underlying body.
func (s *Stream) Close() error {
	s.stopTimer()
	s.mu.Lock()
	if s.state != parley.StreamStateComplete && s.state != parley.StreamStateError {
		s.state = parley.StreamStateClosed
	}
	s.mu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	return s.body.Close()
}

func (s *Stream) terminalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case parley.StreamStateComplete:
		return io.EOF
	case parley.StreamStateError:
		return s.err
	case parley.StreamStateClosed:
		return parley.ErrStreamClosed
	}
	return nil
}

func (s *Stream) setStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == parley.StreamStateNew {
		s.state = parley.StreamStateStreaming
	}
}

// fill reads one chunk and queues the deltas it completes.
func (s *Stream) fill() error {
	s.armTimer()
	n, err := s.body.Read(s.chunk)
	s.stopTimer()
	if n > 0 {
		s.consume(s.decoder.Feed(s.chunk[:n]))
	}
	if s.timedOut.Load() {
		return parley.ErrIdleTimeout
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		// Lenient: a final line without a trailing newline still counts.
		s.consume(s.decoder.Flush())
		s.drained = true
		return nil
	default:
		return fmt.Errorf("sse: read: %w", err)
	}
}

func (s *Stream) consume(lines []string) {
	for _, line := range lines {
		if s.drained {
			return
		}
		frame := Classify(line)
		switch frame.Kind {
		case FrameData:
			if delta := ExtractDelta(frame.Payload); delta != "" {
				s.queue = append(s.queue, delta)
			}
		case FrameDone:
			s.drained = true
		}
	}
}

func (s *Stream) complete() error {
	s.stopTimer()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == parley.StreamStateClosed {
		return parley.ErrStreamClosed
	}
	s.state = parley.StreamStateComplete
	return io.EOF
}

// terminate records a terminal error. A stream closed by the caller stays
// closed: the read error is a consequence of Close, not a transport fault.
func (s *Stream) terminate(err error) error {
	s.stopTimer()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == parley.StreamStateClosed {
		return parley.ErrStreamClosed
	}
	s.state = parley.StreamStateError
	s.err = err
	return err
}

func (s *Stream) expire() {
	s.timedOut.Store(true)
	if !s.closed.Swap(true) {
		s.body.Close()
	}
}

// armTimer starts the idle clock for one read. Time spent by the consumer
// between reads does not count as transport idleness.
func (s *Stream) armTimer() {
	if s.timer != nil {
		s.timer.Reset(s.idle)
	}
}

func (s *Stream) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}
