// Package style holds the palette and lipgloss styles of the scroller UI.
// Styles are package variables rebuilt by SetTheme; read them from the
// update loop only.
package style

import (
	"image/color"
	"strings"

	"charm.land/lipgloss/v2"
)

// active is the palette the styles below were built from.
var active = Themes["dark"]

var (
	Faint     lipgloss.Style
	ErrorText lipgloss.Style

	// Header
	Title  lipgloss.Style
	Detail lipgloss.Style

	// Rows
	RowIndex    lipgloss.Style
	RowPadding  lipgloss.Style
	RowExpanded lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusSignal lipgloss.Style
	StatusWarn   lipgloss.Style

	Hint lipgloss.Style

	// Scrollbar
	ScrollbarThumb lipgloss.Style
	ScrollbarTrack lipgloss.Style
)

func init() {
	build(active)
}

// SetTheme switches to a named theme. It reports false for unknown names
// and leaves the current theme in place.
func SetTheme(name string) bool {
	t, ok := Themes[name]
	if !ok {
		return false
	}
	active = t
	CurrentThemeName = name
	build(t)
	return true
}

// Active returns the current palette.
func Active() Theme { return active }

// IsDark reports whether the current theme has a dark background.
func IsDark() bool {
	return CurrentThemeName != "light"
}

func build(t Theme) {
	Faint = fg(t.Muted)
	ErrorText = fg(t.Bad).Bold(true)

	Title = fg(t.Accent).Bold(true)
	Detail = fg(t.Muted)

	RowIndex = fg(t.Dim)
	RowPadding = fg(t.Dim).Faint(true)
	RowExpanded = fg(t.Info)

	StatusBar = fg(t.Muted).PaddingLeft(1)
	StatusSignal = fg(t.Info)
	StatusWarn = fg(t.Warn)

	Hint = fg(t.Dim)

	ScrollbarThumb = fg(t.Accent)
	ScrollbarTrack = fg(t.Dim)
}

func fg(c color.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// UsageBar renders a pool usage bar like ████░░. The filled part turns
// from OK to Warn to Bad as utilization rises.
func UsageBar(utilization float64, width int) string {
	filled := max(0, min(int(utilization*float64(width)), width))

	c := active.OK
	switch {
	case utilization >= 0.90:
		c = active.Bad
	case utilization >= 0.75:
		c = active.Warn
	}

	return lipgloss.NewStyle().Foreground(c).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(active.Dim).Render(strings.Repeat("░", width-filled))
}
