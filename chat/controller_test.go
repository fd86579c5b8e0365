package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/chat"
	"github.com/fwojciec/parley/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trace records callback invocations in order.
type trace struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (tr *trace) callbacks() chat.Callbacks {
	return chat.Callbacks{
		OnDelta: func(d string) { tr.add("delta:"+d, nil) },
		OnComplete: func() {
			tr.add("complete", nil)
		},
		OnError: func(err error) { tr.add("error", err) },
	}
}

func (tr *trace) add(call string, err error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls = append(tr.calls, call)
	if err != nil {
		tr.errs = append(tr.errs, err)
	}
}

func (tr *trace) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

// gatedStream yields deltas sent on feed and blocks until Close when feed
// is drained.
type gatedStream struct {
	feed   chan string
	closed chan struct{}
	once   sync.Once
}

func newGatedStream() *gatedStream {
	return &gatedStream{feed: make(chan string), closed: make(chan struct{})}
}

func (g *gatedStream) stream() *mock.Stream {
	return &mock.Stream{
		NextFn: func() (string, error) {
			select {
			case d := <-g.feed:
				return d, nil
			case <-g.closed:
				return "", parley.ErrStreamClosed
			}
		},
		CloseFn: func() error {
			g.once.Do(func() { close(g.closed) })
			return nil
		},
	}
}

func streamerOf(s parley.Stream) *mock.Streamer {
	return &mock.Streamer{
		StreamFn: func(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
			return s, nil
		},
	}
}

func waitDone(t *testing.T, h *chat.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
}

func TestController_DeltasThenComplete(t *testing.T) {
	t.Parallel()

	var tr trace
	ctrl := chat.NewController(streamerOf(mock.DeltaStream(nil, "Hel", "", "lo")))
	ctrl.Run(context.Background(), parley.ChatRequest{Message: "hi"}, tr.callbacks())

	assert.Equal(t, []string{"delta:Hel", "delta:lo", "complete"}, tr.snapshot())
}

func TestController_RequestFailure(t *testing.T) {
	t.Parallel()

	wantErr := &parley.StatusError{StatusCode: 503}
	streamer := &mock.Streamer{
		StreamFn: func(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
			return nil, wantErr
		},
	}

	var tr trace
	chat.NewController(streamer).Run(context.Background(), parley.ChatRequest{}, tr.callbacks())

	assert.Equal(t, []string{"error"}, tr.snapshot())
	require.Len(t, tr.errs, 1)
	assert.ErrorIs(t, tr.errs[0], wantErr)
}

func TestController_MidStreamError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection reset")
	var tr trace
	ctrl := chat.NewController(streamerOf(mock.DeltaStream(wantErr, "par", "tial")))
	ctrl.Run(context.Background(), parley.ChatRequest{}, tr.callbacks())

	assert.Equal(t, []string{"delta:par", "delta:tial", "error"}, tr.snapshot())
	assert.ErrorIs(t, tr.errs[0], wantErr)
}

func TestController_ClosesStream(t *testing.T) {
	t.Parallel()

	closed := false
	s := mock.DeltaStream(nil, "a")
	s.CloseFn = func() error {
		closed = true
		return nil
	}

	chat.NewController(streamerOf(s)).Run(context.Background(), parley.ChatRequest{}, chat.Callbacks{})
	assert.True(t, closed)
}

func TestController_NilCallbacks(t *testing.T) {
	t.Parallel()

	ctrl := chat.NewController(streamerOf(mock.DeltaStream(nil, "a")))
	assert.NotPanics(t, func() {
		ctrl.Run(context.Background(), parley.ChatRequest{}, chat.Callbacks{})
	})
}

func TestController_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("no callbacks after cancel", func(t *testing.T) {
		t.Parallel()

		g := newGatedStream()
		var tr trace
		delivered := make(chan struct{}, 1)
		cb := tr.callbacks()
		onDelta := cb.OnDelta
		cb.OnDelta = func(d string) {
			onDelta(d)
			delivered <- struct{}{}
		}
		h := chat.NewController(streamerOf(g.stream())).Start(context.Background(), parley.ChatRequest{}, cb)

		g.feed <- "first"
		<-delivered
		h.Cancel()
		waitDone(t, h)

		assert.Equal(t, []string{"delta:first"}, tr.snapshot())
		assert.True(t, h.Cancelled())
	})

	t.Run("cancel while request is pending", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		streamer := &mock.Streamer{
			StreamFn: func(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		var tr trace
		h := chat.NewController(streamer).Start(context.Background(), parley.ChatRequest{}, tr.callbacks())

		<-started
		h.Cancel()
		waitDone(t, h)

		assert.Empty(t, tr.snapshot())
	})

	t.Run("cancel from inside a callback", func(t *testing.T) {
		t.Parallel()

		g := newGatedStream()
		var tr trace
		var h *chat.Handle
		ready := make(chan struct{})
		cb := tr.callbacks()
		onDelta := cb.OnDelta
		cb.OnDelta = func(d string) {
			onDelta(d)
			<-ready
			h.Cancel()
		}
		h = chat.NewController(streamerOf(g.stream())).Start(context.Background(), parley.ChatRequest{}, cb)
		close(ready)

		g.feed <- "only"
		waitDone(t, h)

		assert.Equal(t, []string{"delta:only"}, tr.snapshot())
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		t.Parallel()

		g := newGatedStream()
		h := chat.NewController(streamerOf(g.stream())).Start(context.Background(), parley.ChatRequest{}, chat.Callbacks{})
		h.Cancel()
		h.Cancel()
		h.Wait()
	})
}

func TestController_ContextCancelIsAnError(t *testing.T) {
	t.Parallel()

	streamer := &mock.Streamer{
		StreamFn: func(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	var tr trace
	h := chat.NewController(streamer).Start(ctx, parley.ChatRequest{}, tr.callbacks())
	cancel()
	waitDone(t, h)

	assert.Equal(t, []string{"error"}, tr.snapshot())
	assert.ErrorIs(t, tr.errs[0], context.Canceled)
}

func TestController_RecoversCallbackPanics(t *testing.T) {
	t.Parallel()

	var tr trace
	cb := tr.callbacks()
	onDelta := cb.OnDelta
	cb.OnDelta = func(d string) {
		onDelta(d)
		panic("consumer bug")
	}

	ctrl := chat.NewController(streamerOf(mock.DeltaStream(nil, "a", "b")))
	assert.NotPanics(t, func() {
		ctrl.Run(context.Background(), parley.ChatRequest{}, cb)
	})
	assert.Equal(t, []string{"delta:a", "delta:b", "complete"}, tr.snapshot())
}

func TestController_PassesRequest(t *testing.T) {
	t.Parallel()

	var got parley.ChatRequest
	streamer := &mock.Streamer{
		StreamFn: func(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
			got = req
			return mock.DeltaStream(nil), nil
		},
	}
	want := parley.ChatRequest{Target: "7", Message: "hi", SessionID: "session-1"}
	chat.NewController(streamer).Run(context.Background(), want, chat.Callbacks{})
	assert.Equal(t, want, got)
}
