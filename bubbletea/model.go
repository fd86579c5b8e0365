package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/chat"
	"github.com/fwojciec/parley/goldmark"
)

var _ tea.Model = Model{}

// Actions reported by ActionDoneMsg.
const (
	ActionSend   = "send"
	ActionCancel = "cancel"
	ActionReset  = "reset"
	ActionClear  = "clear"
	ActionLoad   = "load"
)

// Model is the Bubble Tea model for the parley TUI.
//
// The conversation owns all message state. The model renders snapshots of
// it and never starts an operation from Update: every operation runs as a
// tea.Cmd, so an observer blocked on a full event buffer can't stall the UI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model
	// Spinner animates the status line while a reply is pending.
	Spinner spinner.Model

	ctx         context.Context
	conv        *chat.Conversation
	events      *Events
	renderer    *goldmark.Renderer
	styles      Styles
	loadOnStart bool

	blocks    []MessageBlock
	assistant map[string]*AssistantTextBlock // keyed by message ID
	failed    map[string]bool                // message IDs that ended in error

	busy   bool
	err    error
	notice string
	ready  bool
}

// Option configures a Model.
type Option func(*Model)

// WithHistoryOnStart loads the bound target's history when the program starts.
func WithHistoryOnStart() Option {
	return func(m *Model) { m.loadOnStart = true }
}

// WithContext sets the context conversation operations run under.
// Run overrides it with its own context.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// New creates a TUI Model for conv. events must be registered as an
// observer of conv.
func New(conv *chat.Conversation, events *Events, theme parley.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	styles := NewStyles(theme)
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.Accent))

	m := Model{
		Input:     ti,
		Spinner:   sp,
		ctx:       context.Background(),
		conv:      conv,
		events:    events,
		renderer:  goldmark.New(theme),
		styles:    styles,
		assistant: make(map[string]*AssistantTextBlock),
		failed:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Busy reports whether a reply is pending.
func (m Model) Busy() bool { return m.busy }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// Notice returns the last informational status message.
func (m Model) Notice() string { return m.notice }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.events.listen()}
	if m.loadOnStart {
		cmds = append(cmds, m.action(ActionLoad, m.conv.LoadHistory))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m.sync()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m = m.processEvent(msg.Event)
		var cmd tea.Cmd
		m, cmd = m.sync()
		return m, tea.Batch(cmd, m.events.listen())

	case ActionDoneMsg:
		m = m.processAction(msg)
		return m.sync()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.busy {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := msg.Height - inputH - statusHeight - borderHeight

	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.busy {
			conv := m.conv
			return m, m.action(ActionCancel, func(context.Context) error {
				conv.Cancel()
				return nil
			})
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyCtrlN:
		conv := m.conv
		return m, m.action(ActionReset, func(context.Context) error {
			conv.Reset()
			return nil
		})

	case tea.KeyCtrlL:
		conv := m.conv
		return m, m.action(ActionClear, func(ctx context.Context) error {
			return conv.ClearHistory(ctx, conv.Session().ID)
		})

	case tea.KeyCtrlR:
		if m.busy {
			return m, nil
		}
		return m, m.action(ActionLoad, m.conv.LoadHistory)
	}

	// When idle, pass keys to both input (for typing) and viewport
	// (for scrolling). Only forward non-character keys to viewport to avoid
	// conflicts (e.g. 'j'/'k' are viewport scroll AND text characters).
	if !m.busy {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil
	m.notice = ""
	m.busy = true

	conv := m.conv
	return m, tea.Batch(
		m.action(ActionSend, func(ctx context.Context) error {
			return conv.Send(ctx, text)
		}),
		m.Spinner.Tick,
	)
}

// action runs fn off the UI goroutine and reports its result.
func (m Model) action(name string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return ActionDoneMsg{Action: name, Err: fn(ctx)}
	}
}

func (m Model) processAction(msg ActionDoneMsg) Model {
	switch {
	case msg.Err == nil:
	case errors.Is(msg.Err, parley.ErrSessionChanged):
		// The result belonged to a session that is gone; nothing to show.
	case errors.Is(msg.Err, chat.ErrUnsupported):
		m.notice = "History is not available for this backend"
	default:
		m.err = msg.Err
	}
	return m
}

// processEvent records what a snapshot can't tell: which replies failed,
// and the status message to show.
func (m Model) processEvent(evt parley.Event) Model {
	switch e := evt.(type) {
	case parley.EventCompleted:
		m.err = nil
	case parley.EventFailed:
		m.failed[e.Message.ID] = true
		m.err = e.Err
	case parley.EventCancelled:
		m.notice = "Cancelled"
	case parley.EventReset:
		m.err = nil
		m.notice = "New session"
		clear(m.failed)
	case parley.EventHistoryLoaded:
		m.err = nil
		m.notice = fmt.Sprintf("Loaded %d messages", e.Count)
	case parley.EventHistoryCleared:
		m.err = nil
		m.notice = "History cleared"
		clear(m.failed)
	}
	return m
}

// sync rebuilds the block list from a conversation snapshot. Assistant
// blocks are reused by message ID and only receive the suffix they haven't
// seen, so repeated or coalesced events render the same result.
func (m Model) sync() (Model, tea.Cmd) {
	msgs := m.conv.Messages()
	blocks := make([]MessageBlock, 0, len(msgs))
	assistant := make(map[string]*AssistantTextBlock, len(m.assistant))
	for _, msg := range msgs {
		switch {
		case msg.Role == parley.RoleUser:
			blocks = append(blocks, NewUserMessageBlock(msg.Content, m.styles))
		case m.failed[msg.ID]:
			blocks = append(blocks, NewErrorBlock(msg.Content, m.styles))
		default:
			b, ok := m.assistant[msg.ID]
			if !ok || !strings.HasPrefix(msg.Content, b.Content()) {
				b = NewAssistantTextBlock(m.renderer, m.styles)
			}
			b.Append(msg.Content[len(b.Content()):])
			b.SetStreaming(msg.Streaming)
			assistant[msg.ID] = b
			blocks = append(blocks, b)
		}
	}
	m.blocks = blocks
	m.assistant = assistant

	wasBusy := m.busy
	m.busy = m.conv.State().Busy()

	if m.ready {
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
	}
	switch {
	case m.busy && !wasBusy:
		m.Input.Blur()
		return m, m.Spinner.Tick
	case !m.busy && wasBusy:
		return m, m.Input.Focus()
	}
	return m, nil
}

func (m Model) renderContent() string {
	if len(m.blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}
