package style

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Theme is a named palette. The header gradient runs from Accent to Info.
type Theme struct {
	Name string

	Accent color.Color // cursor marker, scrollbar thumb, title
	Info   color.Color // expanded detail, notices
	OK     color.Color // low pool usage
	Warn   color.Color // pending measurements, high pool usage
	Bad    color.Color // errors, saturated pool
	Muted  color.Color // status text
	Dim    color.Color // padding rows, scrollbar track, hints
}

// Themes maps theme names to their definitions.
var Themes = map[string]Theme{
	"dark": {
		Name:   "dark",
		Accent: lipgloss.Color("#7C3AED"),
		Info:   lipgloss.Color("#06B6D4"),
		OK:     lipgloss.Color("#22C55E"),
		Warn:   lipgloss.Color("#F59E0B"),
		Bad:    lipgloss.Color("#EF4444"),
		Muted:  lipgloss.Color("#6B7280"),
		Dim:    lipgloss.Color("#374151"),
	},
	"light": {
		Name:   "light",
		Accent: lipgloss.Color("#6D28D9"),
		Info:   lipgloss.Color("#0891B2"),
		OK:     lipgloss.Color("#16A34A"),
		Warn:   lipgloss.Color("#D97706"),
		Bad:    lipgloss.Color("#DC2626"),
		Muted:  lipgloss.Color("#9CA3AF"),
		Dim:    lipgloss.Color("#D1D5DB"),
	},
	"catppuccin": {
		Name:   "catppuccin",
		Accent: lipgloss.Color("#CBA6F7"),
		Info:   lipgloss.Color("#89DCEB"),
		OK:     lipgloss.Color("#A6E3A1"),
		Warn:   lipgloss.Color("#F9E2AF"),
		Bad:    lipgloss.Color("#F38BA8"),
		Muted:  lipgloss.Color("#6C7086"),
		Dim:    lipgloss.Color("#45475A"),
	},
	"tokyo-night": {
		Name:   "tokyo-night",
		Accent: lipgloss.Color("#7AA2F7"),
		Info:   lipgloss.Color("#7DCFFF"),
		OK:     lipgloss.Color("#9ECE6A"),
		Warn:   lipgloss.Color("#E0AF68"),
		Bad:    lipgloss.Color("#F7768E"),
		Muted:  lipgloss.Color("#565F89"),
		Dim:    lipgloss.Color("#3B4261"),
	},
}

// ThemeNames lists the themes in cycling order.
var ThemeNames = []string{"dark", "light", "catppuccin", "tokyo-night"}

// CurrentThemeName is the name of the active theme.
var CurrentThemeName = "dark"
