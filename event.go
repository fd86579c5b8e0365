package parley

// Event is a sealed interface describing a change to a conversation.
// Every event carries the ID of the session it originated from.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
	Session() string
}

// EventDelta reports a content delta appended to the pending reply.
type EventDelta struct {
	SessionID string
	MessageID string
	Delta     string
}

func (EventDelta) event()            {}
func (e EventDelta) Session() string { return e.SessionID }

// EventCompleted reports that the pending reply finished normally.
type EventCompleted struct {
	SessionID string
	Message   Message
}

func (EventCompleted) event()            {}
func (e EventCompleted) Session() string { return e.SessionID }

// EventFailed reports that the pending reply ended with an error. Message
// holds the finalized reply: partial content, or the failure notice.
type EventFailed struct {
	SessionID string
	Message   Message
	Err       error
}

func (EventFailed) event()            {}
func (e EventFailed) Session() string { return e.SessionID }

// EventCancelled reports that the user aborted the pending reply.
type EventCancelled struct {
	SessionID string
	Message   Message
}

func (EventCancelled) event()            {}
func (e EventCancelled) Session() string { return e.SessionID }

// EventReset reports that a new session replaced the previous one.
type EventReset struct {
	SessionID         string
	PreviousSessionID string
	Target            string
}

func (EventReset) event()            {}
func (e EventReset) Session() string { return e.SessionID }

// EventHistoryLoaded reports that history was replaced by server records.
type EventHistoryLoaded struct {
	SessionID string
	Count     int
}

func (EventHistoryLoaded) event()            {}
func (e EventHistoryLoaded) Session() string { return e.SessionID }

// EventHistoryCleared reports that history was emptied.
type EventHistoryCleared struct {
	SessionID string
}

func (EventHistoryCleared) event()            {}
func (e EventHistoryCleared) Session() string { return e.SessionID }

// Interface compliance checks.
var (
	_ Event = EventDelta{}
	_ Event = EventCompleted{}
	_ Event = EventFailed{}
	_ Event = EventCancelled{}
	_ Event = EventReset{}
	_ Event = EventHistoryLoaded{}
	_ Event = EventHistoryCleared{}
)
