// Package scroller assembles the windowing engine, the slot pool and the
// size tracker into the two scroller flavours:
//
//   - Recycle renders items whose sizes are fixed or known up front.
//   - Dynamic measures items after they are rendered and keeps the scroll
//     position stable while sizes settle.
//
// Both are driven from a single event loop. They never block and never
// start goroutines; timing (frames, debounces, polling) belongs to the
// bridge package.
package scroller

import (
	"errors"
	"log/slog"
	"time"

	"github.com/miosa/osa-scroller/window"
)

// Direction is the scroll axis.
type Direction string

const (
	Vertical   Direction = "vertical"
	Horizontal Direction = "horizontal"
)

// Defaults.
const (
	DefaultKeyField    = "id"
	DefaultSizeField   = "size"
	DefaultTypeField   = "type"
	DefaultSortDelay   = 300 * time.Millisecond
	DefaultMaxEndPolls = 120
)

// Sentinel errors.
var (
	ErrMinItemSize = errors.New("variable size mode requires a positive min item size")
	ErrDirection   = errors.New("direction must be vertical or horizontal")
)

// Options configures a scroller.
type Options struct {
	KeyField  string
	SizeField string
	TypeField string

	// Buffer is the distance rendered beyond each edge of the viewport.
	Buffer float64

	// ItemsLimit caps the number of items in one window.
	ItemsLimit int

	// ItemSize > 0 selects fixed-size mode.
	ItemSize float64

	// MinItemSize is the size assumed for items whose size is unknown.
	MinItemSize float64

	GridItems         int
	ItemSecondarySize float64

	// NumItemsAbove and NumItemsBelow add synthetic padding items of
	// EmptyItemSize around the real ones.
	NumItemsAbove int
	NumItemsBelow int
	EmptyItemSize float64

	// PageMode takes the scroll range from SetPageBounds instead of the
	// scroller's own scroll position.
	PageMode bool

	// Prerender is the size of the first, non-interactive window.
	Prerender int

	SortDelay   time.Duration
	MaxEndPolls int
	Direction   Direction

	// OnUpdate, when set, is called after every computed pass with the
	// materialized and visible index ranges.
	OnUpdate func(start, end, visibleStart, visibleEnd int)

	Logger   *slog.Logger
	Recorder Recorder
}

// DefaultOptions returns the defaults of every option.
func DefaultOptions() Options {
	return Options{
		KeyField:    DefaultKeyField,
		SizeField:   DefaultSizeField,
		TypeField:   DefaultTypeField,
		Buffer:      window.DefaultBuffer,
		ItemsLimit:  window.DefaultItemsLimit,
		SortDelay:   DefaultSortDelay,
		MaxEndPolls: DefaultMaxEndPolls,
		Direction:   Vertical,
	}
}

func (o Options) validate() error {
	if o.ItemSize <= 0 && o.MinItemSize <= 0 {
		return ErrMinItemSize
	}
	switch o.Direction {
	case "", Vertical, Horizontal:
	default:
		return ErrDirection
	}
	return nil
}

// emptySize is the size of one synthetic padding item.
func (o Options) emptySize() float64 {
	switch {
	case o.ItemSize > 0:
		return o.ItemSize
	case o.EmptyItemSize > 0:
		return o.EmptyItemSize
	default:
		return o.MinItemSize
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Recorder receives per-pass statistics, typically to export them as
// metrics.
type Recorder interface {
	RecordPass(PassStats)
	RecordMeasure(MeasureStats)
}

// PassStats describes one windowing pass.
type PassStats struct {
	Skipped    bool
	Continuous bool
	Window     int
	Bound      int
	Released   int
	Used       int
	Allocated  int
}

// MeasureStats describes the measurements committed in one flush.
type MeasureStats struct {
	Committed  int
	Stale      int
	Unmeasured int
}

type nopRecorder struct{}

func (nopRecorder) RecordPass(PassStats)       {}
func (nopRecorder) RecordMeasure(MeasureStats) {}
