package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/fwojciec/parley"
	"github.com/sirupsen/logrus"
)

// Callbacks receive the outcome of one streamed request. OnDelta fires zero
// or more times, in stream order, strictly before exactly one of OnComplete
// or OnError. Nil callbacks are skipped.
type Callbacks struct {
	OnDelta    func(delta string)
	OnComplete func()
	OnError    func(err error)
}

// Controller runs streamed requests and dispatches their deltas.
type Controller struct {
	streamer parley.Streamer
	logger   logrus.FieldLogger
}

// NewController creates a [Controller] that opens streams with streamer.
func NewController(streamer parley.Streamer, opts ...Option) *Controller {
	o := buildOptions(opts)
	return &Controller{streamer: streamer, logger: o.logger}
}

// Handle controls one running request.
type Handle struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}

	mu     sync.Mutex
	stream parley.Stream
}

// Cancel aborts the request. No callback is dispatched after Cancel
// returns, except one that was already executing. Cancel does not wait for
// the read loop to exit and is safe to call from within a callback.
func (h *Handle) Cancel() {
	if h.cancelled.Swap(true) {
		return
	}
	h.cancel()
	h.mu.Lock()
	s := h.stream
	h.mu.Unlock()
	if s != nil {
		_ = s.Close()
	}
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// Done is closed once the read loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the read loop has exited.
func (h *Handle) Wait() { <-h.done }

// Start runs req on a new goroutine and returns its handle. The request is
// bound to ctx: cancelling ctx ends the stream with an error callback.
func (c *Controller) Start(ctx context.Context, req parley.ChatRequest, cb Callbacks) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go c.run(ctx, h, req, cb)
	return h
}

// Run is the blocking form of Start.
func (c *Controller) Run(ctx context.Context, req parley.ChatRequest, cb Callbacks) {
	c.Start(ctx, req, cb).Wait()
}

func (c *Controller) run(ctx context.Context, h *Handle, req parley.ChatRequest, cb Callbacks) {
	defer close(h.done)
	defer h.cancel()

	log := c.logger.WithField("session_id", req.SessionID)

	if h.Cancelled() {
		return
	}
	s, err := c.streamer.Stream(ctx, req)
	if err != nil {
		if !h.Cancelled() {
			log.WithError(err).Debug("request failed")
			c.dispatch("error", func() { callErr(cb.OnError, err) })
		}
		return
	}
	defer s.Close()

	h.mu.Lock()
	h.stream = s
	h.mu.Unlock()

	for {
		if h.Cancelled() {
			log.Debug("stream cancelled")
			return
		}
		delta, err := s.Next()
		if h.Cancelled() {
			log.Debug("stream cancelled")
			return
		}
		if errors.Is(err, io.EOF) {
			log.Debug("stream complete")
			c.dispatch("complete", func() { call(cb.OnComplete) })
			return
		}
		if err != nil {
			log.WithError(err).Debug("stream failed")
			c.dispatch("error", func() { callErr(cb.OnError, err) })
			return
		}
		if delta == "" {
			continue
		}
		c.dispatch("delta", func() { callDelta(cb.OnDelta, delta) })
	}
}

// dispatch runs fn, recovering and logging a panic so that a faulty
// consumer cannot break the read loop.
func (c *Controller) dispatch(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"callback": name,
				"panic":    r,
			}).Error("callback panicked")
		}
	}()
	fn()
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func callErr(fn func(error), err error) {
	if fn != nil {
		fn(err)
	}
}

func callDelta(fn func(string), delta string) {
	if fn != nil {
		fn(delta)
	}
}
