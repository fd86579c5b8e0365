// Package chat drives conversational turns over a [parley.Streamer].
//
// A [Controller] pumps one stream into callbacks with exactly-once terminal
// notification. A [Conversation] layers the session-scoped state machine on
// top: it owns the history, gates sends, and discards callbacks that
// outlive their turn.
package chat

import (
	"errors"
	"io"
	"strings"

	"github.com/fwojciec/parley"
	"github.com/sirupsen/logrus"
)

// ErrUnsupported indicates the conversation has no backend for an
// operation, e.g. LoadHistory without a history service.
var ErrUnsupported = errors.New("chat: operation not supported by backend")

// DefaultFailureNotice replaces an empty reply whose stream failed.
const DefaultFailureNotice = "Sorry, something went wrong. Please try again."

type options struct {
	logger        logrus.FieldLogger
	history       parley.HistoryService
	chatter       parley.Chatter
	observers     []func(parley.Event)
	failureNotice string
	cancelNotice  string
	historyLimit  int
	controller    *Controller
}

// Option configures a [Controller] or a [Conversation]. Options that only
// apply to a Conversation are ignored by NewController.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithHistoryService enables LoadHistory and remote ClearHistory.
func WithHistoryService(h parley.HistoryService) Option {
	return func(o *options) { o.history = h }
}

// WithChatter enables non-streaming turns through Ask.
func WithChatter(c parley.Chatter) Option {
	return func(o *options) { o.chatter = c }
}

// WithObserver registers fn to receive every conversation event. Observers
// run on the goroutine that caused the event, never under the
// conversation's lock, so they may call back into the conversation.
func WithObserver(fn func(parley.Event)) Option {
	return func(o *options) { o.observers = append(o.observers, fn) }
}

// WithFailureNotice sets the text shown in place of an empty failed reply.
// A blank notice keeps [DefaultFailureNotice].
func WithFailureNotice(s string) Option {
	return func(o *options) {
		if strings.TrimSpace(s) != "" {
			o.failureNotice = s
		}
	}
}

// WithCancelNotice sets the text shown in place of an empty cancelled
// reply. With no notice, an empty cancelled reply is dropped from history.
func WithCancelNotice(s string) Option {
	return func(o *options) { o.cancelNotice = s }
}

// WithHistoryLimit caps the number of records LoadHistory requests.
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithController replaces the default controller built from the streamer.
func WithController(c *Controller) Option {
	return func(o *options) { o.controller = c }
}

func buildOptions(opts []Option) options {
	o := options{
		failureNotice: DefaultFailureNotice,
		historyLimit:  20,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}
	return o
}
