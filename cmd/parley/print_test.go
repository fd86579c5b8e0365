package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/chat"
	parleyjson "github.com/fwojciec/parley/json"
	"github.com/fwojciec/parley/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamerOf(err error, deltas ...string) *mock.Streamer {
	return &mock.Streamer{
		StreamFn: func(ctx context.Context, req parley.ChatRequest) (parley.Stream, error) {
			return mock.DeltaStream(err, deltas...), nil
		},
	}
}

func printConversation(p *printer, streamer parley.Streamer, opts ...chat.Option) *chat.Conversation {
	conv := chat.NewConversation(streamer, append(opts, chat.WithObserver(p.Observe))...)
	conv.Bind("7")
	return conv
}

func TestRunPrint(t *testing.T) {
	t.Parallel()

	t.Run("streams deltas to stdout", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		p := newPrinter(&stdout, false)
		conv := printConversation(p, streamerOf(nil, "Hello", ", ", "world"))

		err := runPrint(context.Background(), conv, p, printOptions{prompt: "hi"}, &stdout, &stderr)
		require.NoError(t, err)
		assert.Equal(t, "Hello, world\n", stdout.String())
		assert.Empty(t, stderr.String())
	})

	t.Run("json prints the transcript only", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		p := newPrinter(&stdout, true)
		conv := printConversation(p, streamerOf(nil, "Hello"))

		err := runPrint(context.Background(), conv, p, printOptions{prompt: "hi", json: true}, &stdout, &stderr)
		require.NoError(t, err)

		session, msgs, err := parleyjson.UnmarshalTranscript(stdout.Bytes())
		require.NoError(t, err)
		assert.Equal(t, conv.Session().ID, session.ID)
		assert.Equal(t, "7", session.Target)
		require.Len(t, msgs, 2)
		assert.Equal(t, "hi", msgs[0].Content)
		assert.Equal(t, "Hello", msgs[1].Content)
	})

	t.Run("stream failure is reported", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		p := newPrinter(&stdout, false)
		conv := printConversation(p, streamerOf(&parley.StatusError{StatusCode: 502}, "Par"))

		err := runPrint(context.Background(), conv, p, printOptions{prompt: "hi"}, &stdout, &stderr)
		var se *parley.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 502, se.StatusCode)
		assert.Equal(t, "Par\n", stdout.String())
	})

	t.Run("guard errors are returned", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		p := newPrinter(&stdout, false)
		conv := printConversation(p, streamerOf(nil, "unused"))

		err := runPrint(context.Background(), conv, p, printOptions{prompt: "  "}, &stdout, &stderr)
		require.ErrorIs(t, err, parley.ErrEmptyMessage)
		assert.Empty(t, stdout.String())
	})

	t.Run("no-stream uses the chatter", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		p := newPrinter(&stdout, false)
		chatter := &mock.Chatter{
			ChatFn: func(ctx context.Context, req parley.ChatRequest) (string, error) {
				assert.Equal(t, "hi", req.Message)
				return "Whole reply", nil
			},
		}
		conv := printConversation(p, &mock.Streamer{}, chat.WithChatter(chatter))

		err := runPrint(context.Background(), conv, p, printOptions{prompt: "hi", noStream: true}, &stdout, &stderr)
		require.NoError(t, err)
		assert.Equal(t, "Whole reply\n", stdout.String())
	})

	t.Run("history before the turn", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		p := newPrinter(&stdout, true)
		history := &mock.HistoryService{
			HistoryFn: func(ctx context.Context, target, sessionID string, limit int) ([]parley.Message, error) {
				return []parley.Message{
					{ID: "msg-1", Role: parley.RoleUser, Content: "earlier"},
					{ID: "msg-2", Role: parley.RoleAssistant, Content: "reply"},
				}, nil
			},
		}
		conv := printConversation(p, streamerOf(nil, "now"), chat.WithHistoryService(history))

		err := runPrint(context.Background(), conv, p, printOptions{prompt: "hi", json: true, history: true}, &stdout, &stderr)
		require.NoError(t, err)
		_, msgs, err := parleyjson.UnmarshalTranscript(stdout.Bytes())
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, "earlier", msgs[0].Content)
		assert.Equal(t, "now", msgs[3].Content)
	})

	t.Run("history unsupported warns", func(t *testing.T) {
		t.Parallel()
		var stdout, stderr bytes.Buffer
		p := newPrinter(&stdout, false)
		conv := printConversation(p, streamerOf(nil, "ok"))

		err := runPrint(context.Background(), conv, p, printOptions{prompt: "hi", history: true}, &stdout, &stderr)
		require.NoError(t, err)
		assert.Contains(t, stderr.String(), "history is not available")
		assert.Equal(t, "ok\n", stdout.String())
	})
}
