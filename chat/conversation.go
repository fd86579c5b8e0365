package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fwojciec/parley"
	"github.com/sirupsen/logrus"
)

// Conversation is the session-scoped state machine behind a chat view.
//
// At most one turn is in flight at a time. Every turn is tagged with the
// session it started in and a sequence number; callbacks whose tag no
// longer matches are discarded, so a reset or cancel can never be undone
// by a late delta.
type Conversation struct {
	ctrl          *Controller
	history       parley.HistoryService
	chatter       parley.Chatter
	observers     []func(parley.Event)
	failureNotice string
	cancelNotice  string
	historyLimit  int
	logger        logrus.FieldLogger

	mu       sync.Mutex
	state    State
	session  parley.Session
	messages []parley.Message
	seq      uint64
	stop     func()
	idle     chan struct{} // closed when the current turn ends
}

// turn identifies one in-flight reply.
type turn struct {
	sessionID string
	seq       uint64
	replyID   string
	req       parley.ChatRequest
}

// NewConversation creates an idle conversation with an unbound session.
// Call Bind before sending.
func NewConversation(streamer parley.Streamer, opts ...Option) *Conversation {
	o := buildOptions(opts)
	ctrl := o.controller
	if ctrl == nil {
		ctrl = NewController(streamer, WithLogger(o.logger))
	}
	return &Conversation{
		ctrl:          ctrl,
		history:       o.history,
		chatter:       o.chatter,
		observers:     o.observers,
		failureNotice: o.failureNotice,
		cancelNotice:  o.cancelNotice,
		historyLimit:  o.historyLimit,
		logger:        o.logger,
		session:       parley.NewSession(""),
		idle:          closedChan(),
	}
}

// Send starts a streamed turn. It returns once the request is under way;
// progress is reported to observers. ctx bounds the whole turn.
//
// Send rejects empty content, an unbound conversation, and a send while a
// turn is in flight, without modifying history.
func (c *Conversation) Send(ctx context.Context, content string) error {
	c.mu.Lock()
	t, err := c.begin(content)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	h := c.ctrl.Start(ctx, t.req, c.callbacks(t))
	c.stop = h.Cancel
	c.mu.Unlock()
	return nil
}

// Ask runs a non-streaming turn through the configured [parley.Chatter]
// and returns the finalized reply. The same guards as Send apply.
func (c *Conversation) Ask(ctx context.Context, content string) (parley.Message, error) {
	if c.chatter == nil {
		return parley.Message{}, ErrUnsupported
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	t, err := c.begin(content)
	if err != nil {
		c.mu.Unlock()
		return parley.Message{}, err
	}
	c.stop = cancel
	c.mu.Unlock()

	cb := c.callbacks(t)
	reply, err := c.chatter.Chat(ctx, t.req)
	if err != nil {
		cb.OnError(err)
	} else {
		if reply != "" {
			cb.OnDelta(reply)
		}
		cb.OnComplete()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.ID != t.sessionID {
		return parley.Message{}, parley.ErrSessionChanged
	}
	msg, ok := c.find(t.replyID)
	if err != nil {
		return msg, fmt.Errorf("chat: %w", err)
	}
	if !ok {
		return parley.Message{}, parley.ErrSessionChanged
	}
	return msg, nil
}

// begin validates a send and records its messages. Callers hold c.mu.
func (c *Conversation) begin(content string) (turn, error) {
	if strings.TrimSpace(content) == "" {
		return turn{}, parley.ErrEmptyMessage
	}
	if c.session.Target == "" {
		return turn{}, parley.ErrNoTarget
	}
	if c.state.Busy() {
		return turn{}, parley.ErrBusy
	}

	prior := c.snapshot()
	user := parley.NewMessage(parley.RoleUser, content)
	reply := parley.NewMessage(parley.RoleAssistant, "")
	reply.Streaming = true
	c.messages = append(c.messages, user, reply)

	c.seq++
	c.idle = make(chan struct{})
	c.transition(StateSending)

	return turn{
		sessionID: c.session.ID,
		seq:       c.seq,
		replyID:   reply.ID,
		req: parley.ChatRequest{
			Target:    c.session.Target,
			Message:   content,
			SessionID: c.session.ID,
			History:   prior,
		},
	}, nil
}

func (c *Conversation) callbacks(t turn) Callbacks {
	return Callbacks{
		OnDelta: func(delta string) {
			c.mu.Lock()
			i := c.pending(t)
			if i < 0 {
				c.mu.Unlock()
				return
			}
			c.messages[i].Content += delta
			if c.state == StateSending {
				c.transition(StateStreaming)
			}
			c.mu.Unlock()
			c.notify(parley.EventDelta{SessionID: t.sessionID, MessageID: t.replyID, Delta: delta})
		},
		OnComplete: func() {
			c.mu.Lock()
			i := c.pending(t)
			if i < 0 {
				c.mu.Unlock()
				return
			}
			c.messages[i].Streaming = false
			msg := c.messages[i]
			c.transition(StateCompleted)
			done := c.finish()
			c.mu.Unlock()
			defer close(done)
			c.notify(parley.EventCompleted{SessionID: t.sessionID, Message: msg})
		},
		OnError: func(err error) {
			c.mu.Lock()
			i := c.pending(t)
			if i < 0 {
				c.mu.Unlock()
				return
			}
			c.messages[i].Streaming = false
			if c.messages[i].Content == "" {
				c.messages[i].Content = c.failureNotice
			}
			msg := c.messages[i]
			c.transition(StateFailed)
			c.logger.WithError(err).WithField("session_id", t.sessionID).Warn("reply failed")
			done := c.finish()
			c.mu.Unlock()
			defer close(done)
			c.notify(parley.EventFailed{SessionID: t.sessionID, Message: msg, Err: err})
		},
	}
}

// Cancel aborts the in-flight turn. The pending reply keeps its partial
// content, or shows the cancel notice when nothing arrived. It reports
// whether a turn was cancelled.
func (c *Conversation) Cancel() bool {
	c.mu.Lock()
	if !c.state.Busy() {
		c.mu.Unlock()
		return false
	}
	sessionID := c.session.ID
	stop := c.stop
	msg, kept := c.abandonReply()
	done := c.finish()
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if !kept {
		msg = parley.Message{}
	}
	c.notify(parley.EventCancelled{SessionID: sessionID, Message: msg})
	close(done)
	return true
}

// abandonReply finalizes the pending tail reply after a cancel. An empty
// reply takes the cancel notice, or is removed when there is none.
// Callers hold c.mu.
func (c *Conversation) abandonReply() (parley.Message, bool) {
	n := len(c.messages)
	if n == 0 || !c.messages[n-1].Streaming {
		return parley.Message{}, false
	}
	tail := &c.messages[n-1]
	tail.Streaming = false
	if tail.Content == "" {
		if c.cancelNotice == "" {
			c.messages = c.messages[:n-1]
			return parley.Message{}, false
		}
		tail.Content = c.cancelNotice
	}
	return *tail, true
}

// Bind cancels any in-flight turn and starts a fresh session for target
// with an empty history. Binding the same target again still resets.
func (c *Conversation) Bind(target string) {
	c.mu.Lock()
	stop, done := c.stopLocked()
	prev := c.session.ID
	c.session = parley.NewSession(target)
	c.messages = nil
	ev := parley.EventReset{SessionID: c.session.ID, PreviousSessionID: prev, Target: target}
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.logger.WithFields(logrus.Fields{
		"session_id": ev.SessionID,
		"target":     target,
	}).Debug("session reset")
	c.notify(ev)
	if done != nil {
		close(done)
	}
}

// Reset starts a fresh session for the current target.
func (c *Conversation) Reset() {
	c.Bind(c.Target())
}

// stopLocked ends the in-flight turn, if any. It returns the function that
// aborts the turn's transport and the channel that releases its waiters,
// both nil when no turn was in flight. Callers hold c.mu.
func (c *Conversation) stopLocked() (func(), chan struct{}) {
	if !c.state.Busy() {
		return nil, nil
	}
	stop := c.stop
	c.abandonReply()
	return stop, c.finish()
}

// ClearHistory deletes the history of sessionID. A turn in flight on that
// session is aborted first. The server copy is deleted when a history
// service is configured and a target is bound; the local copy is emptied
// when sessionID is the current session and the server call succeeded.
func (c *Conversation) ClearHistory(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	var (
		stop func()
		done chan struct{}
	)
	if sessionID == c.session.ID {
		stop, done = c.stopLocked()
	}
	target := c.session.Target
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if done != nil {
		close(done)
	}

	if c.history != nil && target != "" {
		if err := c.history.ClearHistory(ctx, target, sessionID); err != nil {
			return fmt.Errorf("chat: clear history: %w", err)
		}
	}

	c.mu.Lock()
	if sessionID != c.session.ID {
		c.mu.Unlock()
		return nil
	}
	if c.state.Busy() {
		// A new turn started while the server call was in flight.
		c.mu.Unlock()
		return parley.ErrBusy
	}
	c.messages = nil
	c.mu.Unlock()

	c.notify(parley.EventHistoryCleared{SessionID: sessionID})
	return nil
}

// LoadHistory replaces the history with the server's records for the
// current session. It is only allowed while idle. If the session is
// replaced while the fetch is in flight, the records are discarded and
// [parley.ErrSessionChanged] is returned.
func (c *Conversation) LoadHistory(ctx context.Context) error {
	if c.history == nil {
		return ErrUnsupported
	}

	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return parley.ErrBusy
	}
	if c.session.Target == "" {
		c.mu.Unlock()
		return parley.ErrNoTarget
	}
	sess := c.session
	c.mu.Unlock()

	msgs, err := c.history.History(ctx, sess.Target, sess.ID, c.historyLimit)
	if err != nil {
		return fmt.Errorf("chat: load history: %w", err)
	}

	c.mu.Lock()
	if c.session.ID != sess.ID {
		c.mu.Unlock()
		return parley.ErrSessionChanged
	}
	if c.state.Busy() {
		c.mu.Unlock()
		return parley.ErrBusy
	}
	c.messages = append([]parley.Message(nil), msgs...)
	c.mu.Unlock()

	c.notify(parley.EventHistoryLoaded{SessionID: sess.ID, Count: len(msgs)})
	return nil
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []parley.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Last returns the newest message, if any.
func (c *Conversation) Last() (parley.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return parley.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// State returns the current state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current session.
func (c *Conversation) Session() parley.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Target returns the bound target, or "" when unbound.
func (c *Conversation) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Target
}

// Wait blocks until no turn is in flight or ctx is done.
func (c *Conversation) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pending returns the index of t's reply if t is still the in-flight turn
// of the current session, or -1. Callers hold c.mu.
func (c *Conversation) pending(t turn) int {
	if !c.state.Busy() || c.seq != t.seq || c.session.ID != t.sessionID {
		return -1
	}
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == t.replyID {
			return i
		}
	}
	return -1
}

func (c *Conversation) find(id string) (parley.Message, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			return c.messages[i], true
		}
	}
	return parley.Message{}, false
}

// finish returns the conversation to idle. The returned channel must be
// closed once observers have been notified, releasing Wait. Callers hold
// c.mu and have checked that a turn is in flight.
func (c *Conversation) finish() chan struct{} {
	c.stop = nil
	c.transition(StateIdle)
	return c.idle
}

func (c *Conversation) transition(to State) {
	if c.state == to {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"session_id": c.session.ID,
		"from":       c.state,
		"to":         to,
	}).Debug("state transition")
	c.state = to
}

func (c *Conversation) snapshot() []parley.Message {
	if len(c.messages) == 0 {
		return nil
	}
	return append([]parley.Message(nil), c.messages...)
}

// notify delivers ev to every observer. A panicking observer is logged and
// skipped; it never stops delivery to the rest or the state change that
// produced ev.
func (c *Conversation) notify(ev parley.Event) {
	for _, fn := range c.observers {
		c.observe(fn, ev)
	}
}

func (c *Conversation) observe(fn func(parley.Event), ev parley.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"session_id": ev.Session(),
				"event":      fmt.Sprintf("%T", ev),
				"panic":      r,
			}).Error("observer panicked")
		}
	}()
	fn(ev)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
