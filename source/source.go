// Package source produces the items the list scrolls through.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/miosa/osa-scroller/config"
	"github.com/miosa/osa-scroller/ui/vlist"
)

// ErrUnknownKind is returned by Load for an unknown source kind.
var ErrUnknownKind = errors.New("unknown source kind")

// Load loads the items of the configured source.
func Load(ctx context.Context, cfg config.SourceConfig) ([]vlist.Item, error) {
	switch cfg.Kind {
	case config.SourceSynthetic:
		return Synthetic(cfg.Count), nil
	case config.SourceMarkdown:
		return Markdown(cfg.Path)
	case config.SourceGit:
		return GitLog(ctx, cfg.Path, cfg.Count)
	case config.SourceProcesses:
		return Processes(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// fit truncates every line of s to width cells.
func fit(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = lipgloss.NewStyle().MaxWidth(width).Render(l)
	}
	return strings.Join(lines, "\n")
}

// wrap word-wraps s to width cells.
func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
