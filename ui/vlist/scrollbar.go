package vlist

import (
	"strings"

	"github.com/miosa/osa-scroller/style"
)

const (
	scrollTrackChar = "│"
	scrollThumbChar = "█"
)

// Scrollbar renders a vertical scrollbar as a single column of viewport
// rows. The thumb is sized and positioned by the visible share of the
// content. When the content fits the viewport the result is empty.
func Scrollbar(viewport, content, offset int) string {
	if viewport <= 0 || content <= viewport {
		return ""
	}

	thumbH := max(1, min(viewport*viewport/content, viewport))

	scrollable := content - viewport
	thumbTop := offset * (viewport - thumbH) / scrollable
	thumbTop = max(0, min(thumbTop, viewport-thumbH))

	rows := make([]string, viewport)
	for i := range rows {
		if i >= thumbTop && i < thumbTop+thumbH {
			rows[i] = style.ScrollbarThumb.Render(scrollThumbChar)
		} else {
			rows[i] = style.ScrollbarTrack.Render(scrollTrackChar)
		}
	}
	return strings.Join(rows, "\n")
}
