package source

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/miosa/osa-scroller/style"
	"github.com/miosa/osa-scroller/ui/vlist"
)

// Section is one heading of a markdown document and the text under it.
// Its height is only known after glamour renders it at a width.
type Section struct {
	Index   int
	Heading string
	Text    string
}

func (s Section) ID() string          { return fmt.Sprintf("md-%d", s.Index) }
func (s Section) ContentVersion() int { return 1 }
func (s Section) Type() string        { return "markdown" }

// Render shows the heading; expanded sections render the whole markdown.
func (s Section) Render(width int, expanded bool) string {
	if !expanded {
		return fit(style.Title.Render(s.Heading), width)
	}
	return renderMarkdown(s.Text, width)
}

// Markdown splits the markdown file at path into one section per heading.
func Markdown(path string) ([]vlist.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	return SplitMarkdown(string(data)), nil
}

// SplitMarkdown splits a markdown document before every ATX heading. Text
// ahead of the first heading becomes an untitled section.
func SplitMarkdown(doc string) []vlist.Item {
	var (
		items []vlist.Item
		cur   *Section
		fence bool
	)
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			cur.Text = strings.TrimRight(cur.Text, "\n")
			items = append(items, *cur)
		}
	}
	for line := range strings.Lines(doc) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			fence = !fence
		}
		if !fence && strings.HasPrefix(trimmed, "#") {
			flush()
			cur = &Section{Index: len(items), Heading: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))}
		}
		if cur == nil {
			cur = &Section{Index: 0, Heading: "(untitled)"}
		}
		cur.Text += line
	}
	flush()
	return items
}

// ---------------------------------------------------------------------------
// Markdown rendering
// ---------------------------------------------------------------------------

var (
	renderersMu sync.Mutex
	renderers   = map[rendererKey]*glamour.TermRenderer{}
)

type rendererKey struct {
	width int
	dark  bool
}

// renderMarkdown renders markdown text using glamour, falling back to plain
// text on error. Renderers are kept per width.
func renderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := renderer(width)
	if err != nil {
		return fit(md, width)
	}
	out, err := r.Render(md)
	if err != nil {
		return fit(md, width)
	}
	return strings.Trim(out, "\n")
}

func renderer(width int) (*glamour.TermRenderer, error) {
	key := rendererKey{width: width, dark: style.IsDark()}

	renderersMu.Lock()
	defer renderersMu.Unlock()
	if r, ok := renderers[key]; ok {
		return r, nil
	}
	standard := "light"
	if key.dark {
		standard = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(standard),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers[key] = r
	return r, nil
}
