package mock

import (
	"io"
	"sync"

	"github.com/fwojciec/parley"
)

// Interface compliance check.
var _ parley.Stream = (*Stream)(nil)

// Stream is a test double for parley.Stream.
// Set the function fields for the methods you need. NextFn panics when nil
// to catch missing setup. CloseFn and StateFn are nil-safe (no-op and zero
// value) because test code commonly calls defer stream.Close() and these
// methods rarely need custom behavior.
type Stream struct {
	NextFn  func() (string, error)
	StateFn func() parley.StreamState
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (string, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() parley.StreamState {
	if s.StateFn == nil {
		return parley.StreamStateNew
	}
	return s.StateFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// DeltaStream returns a Stream that yields deltas in order and then err,
// or io.EOF when err is nil. Close is recorded and makes further reads
// return parley.ErrStreamClosed.
func DeltaStream(err error, deltas ...string) *Stream {
	var (
		mu     sync.Mutex
		i      int
		closed bool
	)
	if err == nil {
		err = io.EOF
	}
	return &Stream{
		NextFn: func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return "", parley.ErrStreamClosed
			}
			if i < len(deltas) {
				i++
				return deltas[i-1], nil
			}
			return "", err
		},
		CloseFn: func() error {
			mu.Lock()
			defer mu.Unlock()
			closed = true
			return nil
		},
	}
}
