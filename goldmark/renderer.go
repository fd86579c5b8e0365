package goldmark

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/parley"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

type styles struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
	code      lipgloss.Style
}

func newStyles(theme parley.Theme) styles {
	return styles{
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		heading:   lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		underline: lipgloss.NewStyle().Underline(true),
		code:      lipgloss.NewStyle().Background(ansiColor(theme.CodeBg)).Bold(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

func (r *Renderer) render(source []byte, width int) string {
	doc := r.parser.Parse(text.NewReader(source))

	var buf bytes.Buffer
	r.walkBlocks(doc, source, width, &buf)
	return strings.TrimRight(buf.String(), "\n")
}

func (r *Renderer) walkBlocks(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.renderBlock(c, source, width, buf)
		if c.NextSibling() != nil {
			buf.WriteString("\n")
		}
	}
}

func (r *Renderer) renderBlock(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.writeWrapped(buf, r.inline(n, source), width)

	case *ast.Heading:
		r.writeWrapped(buf, r.styles.heading.Render(r.inline(n, source)), width)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(source)); lang != "" {
			buf.WriteString(r.styles.muted.Render(lang))
			buf.WriteString("\n")
		}
		r.writeCode(buf, n.Lines(), source)

	case *ast.CodeBlock:
		r.writeCode(buf, n.Lines(), source)

	case *ast.Blockquote:
		var inner bytes.Buffer
		r.walkBlocks(n, source, max(width-2, 10), &inner)
		gutter := r.styles.muted.Render("┃") + " "
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			buf.WriteString(gutter + line + "\n")
		}

	case *ast.List:
		r.renderList(n, source, width, buf, 0)

	case *east.Table:
		r.renderTable(n, source, buf)

	case *ast.ThematicBreak:
		buf.WriteString(r.styles.muted.Render(strings.Repeat("─", min(width, 40))))
		buf.WriteString("\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(source))
		}

	default:
		r.walkBlocks(node, source, width, buf)
	}
}

func (r *Renderer) writeWrapped(buf *bytes.Buffer, s string, width int) {
	buf.WriteString(lipgloss.NewStyle().Width(width).Render(s))
	buf.WriteString("\n")
}

func (r *Renderer) writeCode(buf *bytes.Buffer, lines *text.Segments, source []byte) {
	gutter := r.styles.muted.Render("│") + " "
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.WriteString(gutter + strings.TrimRight(string(line.Value(source)), "\n"))
		buf.WriteString("\n")
	}
}

func (r *Renderer) renderList(node *ast.List, source []byte, width int, buf *bytes.Buffer, depth int) {
	indent := strings.Repeat("  ", depth)
	n := node.Start
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if node.IsOrdered() {
			marker = fmt.Sprintf("%d. ", n)
			n++
		}

		var content bytes.Buffer
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				content.WriteString(r.inline(in, source))
			case *ast.List:
				if content.Len() > 0 {
					r.writeListItem(buf, indent+marker, content.String(), width)
					content.Reset()
				}
				r.renderList(in, source, width, buf, depth+1)
				marker = strings.Repeat(" ", len(marker))
			default:
				r.renderBlock(ic, source, width, &content)
			}
		}
		if content.Len() > 0 {
			r.writeListItem(buf, indent+marker, content.String(), width)
		}
	}
}

// writeListItem writes a list item, indenting continuation lines under the
// item's text.
func (r *Renderer) writeListItem(buf *bytes.Buffer, prefix, content string, width int) {
	wrapped := lipgloss.NewStyle().Width(max(width-len(prefix), 10)).Render(content)
	continuation := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			buf.WriteString(prefix + line + "\n")
		} else {
			buf.WriteString(continuation + line + "\n")
		}
	}
}

// renderTable lays cells out in columns padded to the widest cell. Tables
// are not wrapped.
func (r *Renderer) renderTable(table *east.Table, source []byte, buf *bytes.Buffer) {
	var rows [][]string
	header := -1
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		if _, ok := row.(*east.TableHeader); ok {
			header = len(rows)
		}
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, r.inline(cell, source))
		}
		rows = append(rows, cells)
	}

	var widths []int
	for _, cells := range rows {
		for i, cell := range cells {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	sep := " " + r.styles.muted.Render("│") + " "
	for i, cells := range rows {
		padded := make([]string, len(cells))
		for j, cell := range cells {
			if i == header {
				cell = r.styles.bold.Render(cell)
			}
			padded[j] = cell + strings.Repeat(" ", widths[j]-lipgloss.Width(cell))
		}
		buf.WriteString(strings.TrimRight(strings.Join(padded, sep), " "))
		buf.WriteString("\n")
		if i == header {
			rules := make([]string, len(widths))
			for j, w := range widths {
				rules[j] = strings.Repeat("─", w)
			}
			buf.WriteString(r.styles.muted.Render(strings.Join(rules, "─┼─")))
			buf.WriteString("\n")
		}
	}
}

// inline collects the styled inline text of a node's children.
func (r *Renderer) inline(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.renderInline(c, source, &buf)
	}
	return buf.String()
}

func (r *Renderer) renderInline(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.HardLineBreak() {
			buf.WriteByte('\n')
		} else if n.SoftLineBreak() {
			buf.WriteByte(' ')
		}

	case *ast.String:
		buf.Write(n.Value)

	case *ast.Emphasis:
		inner := r.inline(n, source)
		if n.Level == 1 {
			buf.WriteString(r.styles.italic.Render(inner))
		} else {
			buf.WriteString(r.styles.bold.Render(inner))
		}

	case *east.Strikethrough:
		buf.WriteString(r.styles.strike.Render(r.inline(n, source)))

	case *east.TaskCheckBox:
		if n.IsChecked {
			buf.WriteString("[x] ")
		} else {
			buf.WriteString("[ ] ")
		}

	case *ast.CodeSpan:
		buf.WriteString(r.styles.code.Render(r.inline(n, source)))

	case *ast.Link:
		buf.WriteString(r.styles.underline.Render(r.inline(n, source)))
		buf.WriteString(" ")
		buf.WriteString(r.styles.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		buf.WriteString(r.styles.underline.Render(string(n.URL(source))))

	case *ast.Image:
		buf.WriteString(r.styles.underline.Render(r.inline(n, source)))
		buf.WriteString(" ")
		buf.WriteString(r.styles.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			buf.Write(seg.Value(source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.renderInline(c, source, buf)
		}
	}
}
