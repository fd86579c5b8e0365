package bubbletea

import (
	"strings"

	"github.com/fwojciec/parley/goldmark"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

// streamingCursor marks a reply that is still receiving deltas.
const streamingCursor = "▍"

// AssistantTextBlock renders streamed assistant text with markdown formatting.
// Finalized paragraphs (separated by double newline) are rendered once and
// cached; only the trailing unfinalized text is re-rendered on each delta.
type AssistantTextBlock struct {
	content   strings.Builder
	renderer  *goldmark.Renderer
	styles    Styles
	streaming bool

	// finalizedRaw is the stable prefix ending at the last double newline.
	// It's rendered once per width and cached in finalizedByWidth.
	finalizedRaw     string
	finalizedByWidth map[int]string
}

// NewAssistantTextBlock creates a new block for streaming assistant text.
func NewAssistantTextBlock(renderer *goldmark.Renderer, styles Styles) *AssistantTextBlock {
	return &AssistantTextBlock{
		renderer:         renderer,
		styles:           styles,
		finalizedByWidth: make(map[int]string),
	}
}

// Append adds a text delta.
func (b *AssistantTextBlock) Append(text string) {
	if text == "" {
		return
	}
	b.content.WriteString(text)
	b.promoteFinalized()
}

// Content returns the raw markdown received so far.
func (b *AssistantTextBlock) Content() string {
	return b.content.String()
}

// SetStreaming toggles the streaming cursor.
func (b *AssistantTextBlock) SetStreaming(streaming bool) {
	b.streaming = streaming
}

func (b *AssistantTextBlock) View(width int) string {
	view := b.render(width)
	if b.streaming {
		cursor := b.styles.Streaming.Render(streamingCursor)
		if view == "" {
			return cursor
		}
		return strings.TrimRight(view, " \n") + cursor
	}
	return view
}

func (b *AssistantTextBlock) render(width int) string {
	finalizedRendered := b.renderFinalized(width)
	trailing := b.trailingRaw()
	if hasUnclosedFence(trailing) {
		// Close the fence only for rendering so partial streams display safely.
		trailing += "\n```"
	}
	if trailing == "" {
		return finalizedRendered
	}
	trailingRendered := b.renderer.Render(trailing, width)
	if strings.TrimSpace(trailingRendered) == "" {
		return finalizedRendered
	}
	if finalizedRendered == "" {
		return trailingRendered
	}
	// Independently rendered fragments are joined with a single paragraph
	// break to match full-document output.
	return strings.TrimRight(finalizedRendered, "\n") + "\n\n" + strings.TrimLeft(trailingRendered, "\n")
}

// promoteFinalized finds the last "\n\n" boundary that doesn't fall inside
// an unclosed fenced code block. Splitting inside a fence would leave the
// trailing fragment starting mid-code-block.
func (b *AssistantTextBlock) promoteFinalized() {
	raw := b.content.String()
	for end := len(raw); ; {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := raw[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.finalizedRaw {
				b.finalizedRaw = candidate
				clear(b.finalizedByWidth)
			}
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderFinalized(width int) string {
	if width <= 0 || b.finalizedRaw == "" {
		return ""
	}
	if cached, ok := b.finalizedByWidth[width]; ok {
		return cached
	}
	rendered := b.renderer.Render(b.finalizedRaw, width)
	b.finalizedByWidth[width] = rendered
	return rendered
}

func (b *AssistantTextBlock) trailingRaw() string {
	raw := b.content.String()
	if b.finalizedRaw == "" {
		return raw
	}
	return strings.TrimPrefix(raw, b.finalizedRaw+"\n\n")
}

// hasUnclosedFence reports an odd number of "```" in s. Triple backticks
// inside inline code spans are miscounted; replies rarely contain them.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
