// Package goldmark renders markdown text to ANSI-styled terminal output
// using goldmark for parsing and lipgloss for styling.
//
// Assistant replies are rendered as GitHub-flavored markdown: tables,
// strikethrough and task lists are recognised in addition to CommonMark.
package goldmark

import (
	"github.com/fwojciec/parley"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

const defaultWidth = 80

// Renderer renders markdown with a fixed theme. It is safe for concurrent
// use.
type Renderer struct {
	parser parser.Parser
	styles styles
}

// New creates a [Renderer] for theme.
func New(theme parley.Theme) *Renderer {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	return &Renderer{
		parser: md.Parser(),
		styles: newStyles(theme),
	}
}

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs, quotes and list items are word-wrapped to width; width <= 0
// means 80 columns. Code blocks are rendered without reflow.
func (r *Renderer) Render(source string, width int) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	return r.render([]byte(source), width)
}

// Render is a convenience for New(theme).Render(source, width).
func Render(source string, width int, theme parley.Theme) string {
	return New(theme).Render(source, width)
}
