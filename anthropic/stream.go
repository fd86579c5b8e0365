package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fwojciec/parley"
)

// errUnexpectedEOF reports a body that ended before message_stop.
var errUnexpectedEOF = errors.New("anthropic: unexpected end of stream")

// stream implements [parley.Stream] by parsing SSE events from an HTTP
// response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context

	mu    sync.Mutex
	state parley.StreamState
	err   error // terminal error, if any
}

// Interface compliance check.
var _ parley.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	return &stream{
		body:    body,
		scanner: bufio.NewScanner(body),
		ctx:     ctx,
		state:   parley.StreamStateNew,
	}
}

// Next returns the next text delta. Returns io.EOF when the stream
// completes normally.
func (s *stream) Next() (string, error) {
	if err := s.terminalErr(); err != nil {
		return "", err
	}

	for {
		eventType, data, err := s.readSSEEvent()
		if err != nil {
			return "", s.terminate(err)
		}
		s.setState(parley.StreamStateStreaming)

		delta, done, err := s.processEvent(eventType, data)
		if err != nil {
			return "", s.terminate(err)
		}
		if done {
			s.setState(parley.StreamStateComplete)
			return "", io.EOF
		}
		if delta != "" {
			return delta, nil
		}
		// Non-text event (ping, message_start, etc.) - keep reading.
	}
}

// State returns the current stream state.
func (s *stream) State() parley.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close closes the underlying HTTP response body. It may be called from
// another goroutine to abort a blocked Next.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.state != parley.StreamStateComplete && s.state != parley.StreamStateError {
		s.state = parley.StreamStateClosed
	}
	s.mu.Unlock()
	return s.body.Close()
}

func (s *stream) terminalErr() error {
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

func (s *stream) setState(state parley.StreamState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == parley.StreamStateClosed {
		return
	}
	s.state = state
}

// terminate records a terminal error. A stream closed by the caller stays
// closed: the read error is a consequence of Close.
func (s *stream) terminate(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == parley.StreamStateClosed {
		return parley.ErrStreamClosed
	}
	switch {
	case err == io.EOF:
		err = errUnexpectedEOF
	case s.ctx.Err() != nil:
		err = fmt.Errorf("anthropic: %w", s.ctx.Err())
	}
	s.state = parley.StreamStateError
	s.err = err
	return err
}

// readSSEEvent reads lines until a complete SSE event is assembled.
// Returns the event type and the data payload.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if v, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "data:"); ok {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(v, " "))
		}
		// Ignore comments (lines starting with ':') and unknown fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("anthropic: %w", err)
	}

	// Scanner exhausted without error = EOF.
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent maps an SSE event to a text delta. done reports
// message_stop.
func (s *stream) processEvent(eventType, data string) (delta string, done bool, err error) {
	switch eventType {
	case "content_block_delta":
		var evt sseContentBlockDelta
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return "", false, fmt.Errorf("anthropic: failed to parse content_block_delta: %w", err)
		}
		if evt.Delta.Type == "text_delta" {
			return evt.Delta.Text, false, nil
		}
		// Thinking and signature deltas are not part of the reply.
		return "", false, nil
	case "message_stop":
		return "", true, nil
	case "error":
		var evt sseError
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return "", false, fmt.Errorf("anthropic: failed to parse error event: %w", err)
		}
		return "", false, fmt.Errorf("anthropic: %s: %s", evt.Error.Type, evt.Error.Message)
	default:
		// message_start, content_block_start/stop, message_delta, ping and
		// unknown event types carry no reply text.
		return "", false, nil
	}
}
