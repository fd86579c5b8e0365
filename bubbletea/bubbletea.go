// Package bubbletea provides a Bubble Tea TUI for a parley conversation.
package bubbletea

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/parley"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits. Conversation operations started from the TUI run under ctx.
func Run(ctx context.Context, m Model) error {
	m.ctx = ctx
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	m.events.Close()
	return err
}

// EventMsg wraps a conversation event for delivery to the Bubble Tea model.
type EventMsg struct {
	Event parley.Event
}

// ActionDoneMsg reports the outcome of a conversation operation started by
// a key binding.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// Events forwards conversation events to the TUI. Register Observe with
// chat.WithObserver and pass the same Events to New.
//
// Observe blocks while the buffer is full, so the conversation never runs
// ahead of the screen by more than the buffer size.
type Events struct {
	ch   chan parley.Event
	done chan struct{}
	once sync.Once
}

// NewEvents creates an Events bridge buffering up to size events.
func NewEvents(size int) *Events {
	return &Events{
		ch:   make(chan parley.Event, size),
		done: make(chan struct{}),
	}
}

// Observe delivers ev to the TUI. It returns immediately once Close has
// been called.
func (e *Events) Observe(ev parley.Event) {
	select {
	case e.ch <- ev:
	case <-e.done:
	}
}

// Close releases blocked observers and listeners.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

// listen waits for the next event.
func (e *Events) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-e.ch:
			return EventMsg{Event: ev}
		case <-e.done:
			return nil
		}
	}
}
