// Package status provides the bottom status bar of the scroller TUI. It
// renders the window range, slot pool usage and measurement progress.
package status

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/miosa/osa-scroller/style"
	"github.com/miosa/osa-scroller/ui/vlist"
)

// Model is the status bar state. Drive it via setter methods; it has no
// Update loop.
type Model struct {
	stats  vlist.Stats
	notice string
	warn   bool
	keys   string
	width  int
}

// New returns a zero-value Model.
func New() Model {
	return Model{}
}

// SetStats stores the list statistics to display.
func (m *Model) SetStats(s vlist.Stats) { m.stats = s }

// SetNotice shows a transient message in place of the key hints.
func (m *Model) SetNotice(text string, warn bool) {
	m.notice = text
	m.warn = warn
}

// ClearNotice removes the notice.
func (m *Model) ClearNotice() { m.notice = "" }

// SetKeys sets the key hint line.
func (m *Model) SetKeys(hints string) { m.keys = hints }

// SetWidth updates the bar width.
func (m *Model) SetWidth(w int) { m.width = w }

// View renders "items 12,000 · window 40–62 · slots ████░░ 22/32 · 35%".
func (m Model) View() string {
	s := m.stats
	parts := []string{
		"items " + humanize.Comma(int64(s.Items)),
		fmt.Sprintf("window %d–%d", s.Window.Start, s.Window.End),
		"slots " + m.poolLine(),
	}
	if s.Unmeasured > 0 {
		parts = append(parts, style.StatusWarn.Render(fmt.Sprintf("measuring %d", s.Unmeasured)))
	}
	if s.Following {
		parts = append(parts, style.StatusSignal.Render("following"))
	}
	parts = append(parts, percent(s))
	left := style.StatusBar.Render(strings.Join(parts, style.Faint.Render(" · ")))

	var right string
	switch {
	case m.notice != "" && m.warn:
		right = style.ErrorText.Render(m.notice)
	case m.notice != "":
		right = style.StatusSignal.Render(m.notice)
	default:
		right = style.Hint.Render(m.keys)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

// poolLine renders used over allocated slots as a usage bar.
func (m Model) poolLine() string {
	s := m.stats
	if s.Allocated == 0 {
		return "0/0"
	}
	util := float64(s.Used) / float64(s.Allocated)
	return style.UsageBar(util, 6) + fmt.Sprintf(" %d/%d", s.Used, s.Allocated)
}

// percent is the scroll position as a share of the scrollable range.
func percent(s vlist.Stats) string {
	viewport := float64(s.Window.VisibleEnd - s.Window.VisibleStart)
	scrollable := s.Content - viewport
	if scrollable <= 0 {
		return "all"
	}
	return fmt.Sprintf("%d%%", int(min(max(s.Scroll/scrollable, 0), 1)*100))
}
