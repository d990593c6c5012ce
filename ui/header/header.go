// Package header renders the one-line title bar of the scroller TUI.
package header

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/miosa/osa-scroller/style"
)

const title = "osa scroller"

// Model holds the state for the header.
type Model struct {
	source  string
	path    string
	version string
	width   int
}

// New returns a header for the given version string.
func New(version string) Model {
	return Model{version: version}
}

// SetSource updates the displayed source kind and path.
func (m *Model) SetSource(kind, path string) {
	m.source = kind
	m.path = path
}

// SetWidth updates the terminal width used for the separator.
func (m *Model) SetWidth(w int) { m.width = w }

// Height is the number of lines View returns.
func (m Model) Height() int { return 2 }

// View renders "osa scroller · git ~/src/repo      v1.0" and a separator.
func (m Model) View() string {
	left := style.ApplyBoldForegroundGrad(title)
	if m.source != "" {
		left += style.Faint.Render(" · ") + style.Detail.Render(m.source)
		if m.path != "" && m.path != "." {
			left += " " + style.Hint.Render(m.path)
		}
	}
	right := style.Faint.Render(m.version)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	line := left
	if gap > 0 {
		line += strings.Repeat(" ", gap) + right
	}
	sep := style.Hint.Render(strings.Repeat("─", max(m.width, 0)))
	return fmt.Sprintf("%s\n%s", line, sep)
}
