package goldmark_test

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/parley"
	"github.com/fwojciec/parley/goldmark"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func stripANSI(s string) string {
	// Matches SGR, cursor movement, and other CSI sequences.
	re := regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	return re.ReplaceAllString(s, "")
}

func TestMain(m *testing.M) {
	// Force ANSI color output so styled elements (headings, links) produce
	// visible escape codes that we can assert against.
	lipgloss.SetColorProfile(termenv.ANSI)
	os.Exit(m.Run())
}

func TestRender(t *testing.T) {
	t.Parallel()

	theme := parley.DefaultTheme()

	assert.Empty(t, goldmark.Render("", 80, theme))

	// Each case is a reply shape an agent commonly streams back; the
	// rendered text must keep every listed fragment visible.
	cases := []struct {
		name  string
		src   string
		width int
		want  []string
	}{
		{"plain reply", "Sure, here you go.", 80, []string{"Sure, here you go."}},
		{"emphasis", "This is **important** and *subtle*, ***both***.", 80, []string{"important", "subtle", "both"}},
		{"inline code", "Run `make test` first.", 80, []string{"make test"}},
		{"fenced code keeps long lines", "```go\nfmt.Println(\"hello world\")\n```", 20, []string{`fmt.Println("hello world")`}},
		{"fenced code label", "```python\nprint('hi')\n```", 80, []string{"python", "print('hi')"}},
		{"fence without label", "```\nsome code\n```", 80, []string{"some code"}},
		{"indented code", "Steps:\n\n    step one\n    step two", 80, []string{"step one", "step two"}},
		{"bullet list", "- one\n- two\n- three", 80, []string{"- one", "- two", "- three"}},
		{"ordered list", "1. first\n2. second", 80, []string{"first", "second"}},
		{"nested list", "- outer\n  - inner one\n  - inner two", 80, []string{"outer", "inner one", "inner two"}},
		{"link shows target", "See [the docs](https://example.com).", 80, []string{"the docs", "example.com"}},
		{"image shows alt and target", "![diagram](https://example.com/img.png)", 80, []string{"diagram", "example.com/img.png"}},
		{"paragraphs", "first paragraph\n\nsecond paragraph", 80, []string{"first paragraph", "second paragraph"}},
		{"subheading", "## Summary", 80, []string{"Summary"}},
		{"thematic break", "above\n\n---\n\nbelow", 80, []string{"above", "───", "below"}},
		{"zero width falls back", "hello world", 0, []string{"hello world"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := stripANSI(goldmark.Render(tc.src, tc.width, theme))
			for _, w := range tc.want {
				assert.Contains(t, got, w)
			}
		})
	}

	t.Run("heading is styled apart from body text", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, goldmark.Render("Title", 80, theme), goldmark.Render("# Title", 80, theme))
	})

	t.Run("long reply wraps", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("token ", 20)
		lines := strings.Split(stripANSI(goldmark.Render(long, 30, theme)), "\n")
		assert.Greater(t, len(lines), 1)
	})

	t.Run("wrapped list items hang under their marker", func(t *testing.T) {
		t.Parallel()
		src := "- this is a very long list item that should wrap and have continuation lines properly indented"
		lines := strings.Split(stripANSI(goldmark.Render(src, 30, theme)), "\n")
		assert.True(t, strings.HasPrefix(lines[0], "- "))
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				assert.True(t, strings.HasPrefix(line, "  "), "continuation line: %q", line)
			}
		}
	})

	t.Run("blockquote has a gutter", func(t *testing.T) {
		t.Parallel()
		result := stripANSI(goldmark.Render("> quoted words", 80, theme))
		assert.True(t, strings.HasPrefix(result, "┃ "), "got %q", result)
		assert.Contains(t, result, "quoted words")
	})

	t.Run("strikethrough", func(t *testing.T) {
		t.Parallel()
		result := goldmark.Render("~~gone~~", 80, theme)
		assert.Equal(t, "gone", strings.TrimSpace(stripANSI(result)))
		assert.NotEqual(t, "gone", strings.TrimSpace(result))
	})

	t.Run("task list", func(t *testing.T) {
		t.Parallel()
		result := stripANSI(goldmark.Render("- [x] done\n- [ ] todo", 80, theme))
		assert.Contains(t, result, "- [x] done")
		assert.Contains(t, result, "- [ ] todo")
	})

	t.Run("table columns are aligned", func(t *testing.T) {
		t.Parallel()
		src := "| name | value |\n|---|---|\n| a | 1 |\n| longer | 22 |"
		lines := strings.Split(stripANSI(goldmark.Render(src, 80, theme)), "\n")
		assert.Len(t, lines, 4)
		assert.Equal(t, strings.Index(lines[0], "│"), strings.Index(lines[2], "│"))
		assert.Equal(t, strings.Index(lines[2], "│"), strings.Index(lines[3], "│"))
		assert.Contains(t, lines[1], "┼")
	})
}

func TestRenderer_Reuse(t *testing.T) {
	t.Parallel()

	r := goldmark.New(parley.DefaultTheme())
	first := r.Render("**one**", 40)
	second := r.Render("**one**", 40)
	assert.Equal(t, first, second)
	assert.Equal(t, goldmark.Render("**one**", 40, parley.DefaultTheme()), first)
	assert.Empty(t, r.Render("", 40))
}
