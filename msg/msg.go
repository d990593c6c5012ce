// Package msg defines the tea.Msg types dispatched within the scroller TUI.
// It has no upstream imports besides the item interface to avoid import
// cycles.
package msg

import (
	"time"

	"github.com/miosa/osa-scroller/ui/vlist"
)

// -- Sources --

// SourceLoaded carries the result of loading an item source.
type SourceLoaded struct {
	Kind  string
	Items []vlist.Item
	Took  time.Duration
	Err   error
}

// ReloadTick asks the app to reload a live source, e.g. processes.
type ReloadTick struct {
	Gen int
}

// -- Status --

// Notice is a transient status line message.
type Notice struct {
	Text string
	Warn bool
}

// ClearNotice removes the notice with the same generation.
type ClearNotice struct {
	Gen int
}
