// Package window computes which slice of a long list has to be materialized
// for a given scroll position.
//
// Two sizing modes are supported:
//   - fixed: every item has the same primary size, optionally laid out in a
//     grid of GridItems columns. Offsets are pure arithmetic.
//   - variable: sizes come from a sizes.Table and the start index is found by
//     binary search over cumulative offsets.
//
// The engine keeps only the state needed between passes: the last window
// bounds (to decide continuity) and the last processed scroll position (to
// skip sub-item scroll samples).
package window

import (
	"errors"
	"fmt"
	"math"

	"github.com/miosa/osa-scroller/sizes"
)

// Defaults for callers building a Config. New only applies DefaultItemsLimit.
const (
	DefaultBuffer     = 200
	DefaultItemsLimit = 1000
)

// Sentinel errors.
var (
	ErrItemsLimit          = errors.New("rendered items limit reached")
	ErrGridWithoutItemSize = errors.New("grid layout requires a fixed item size")
	ErrNoSizeTable         = errors.New("variable size mode requires a size table")
)

const itemsLimitHint = "the scroller does not seem to scroll, so it tries to render every item at once; " +
	"give the scroll container a bounded size and let it scroll its overflow"

// Range is a span on the primary axis in content coordinates.
type Range struct {
	Start float64
	End   float64
}

// Size returns End-Start.
func (r Range) Size() float64 { return r.End - r.Start }

// Config holds the sizing parameters of an engine.
type Config struct {
	// ItemSize > 0 selects fixed mode.
	ItemSize float64

	// GridItems is the number of items per row in fixed mode.
	GridItems int

	// SecondarySize is the cross-axis size of a grid cell. Defaults to
	// ItemSize.
	SecondarySize float64

	// Buffer extends the scroll range on both sides before searching.
	Buffer float64

	// ItemsLimit caps End-Start. Exceeding it is a fatal error.
	ItemsLimit int

	// Prerender is the number of items of the first, non-interactive pass.
	Prerender int
}

// Request is the input of one windowing pass.
type Request struct {
	Scroll Range

	// Before and After are the sizes of out-of-band content rendered ahead
	// of and behind the items inside the scroll container.
	Before float64
	After  float64

	// Count is the padded item count.
	Count int

	// Table is required in variable mode and ignored in fixed mode.
	Table *sizes.Table

	// FromScroll marks passes triggered by a scroll sample. Only those are
	// eligible for the small-delta skip.
	FromScroll bool
}

// State is the result of a windowing pass. Indices are half-open.
type State struct {
	Start        int
	End          int
	VisibleStart int
	VisibleEnd   int

	// Continuous reports whether [Start,End) overlaps the previous window.
	Continuous bool

	// Total is the content size. TotalKnown is false during prerender.
	Total      float64
	TotalKnown bool

	// Skipped is set when the pass was elided by the scroll threshold.
	Skipped bool
}

// Len returns the materialized item count.
func (s State) Len() int { return s.End - s.Start }

// Engine computes window states. It is not safe for concurrent use.
type Engine struct {
	cfg Config

	lastStart  int
	lastEnd    int
	lastScroll float64
	prev       State
	computed   bool
	prerender  bool
}

// New validates cfg and returns an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.GridItems > 1 && cfg.ItemSize <= 0 {
		return nil, ErrGridWithoutItemSize
	}
	if cfg.GridItems < 1 {
		cfg.GridItems = 1
	}
	if cfg.SecondarySize <= 0 {
		cfg.SecondarySize = cfg.ItemSize
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.ItemsLimit <= 0 {
		cfg.ItemsLimit = DefaultItemsLimit
	}
	return &Engine{cfg: cfg, prerender: cfg.Prerender > 0}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Fixed reports whether the engine runs in fixed-size mode.
func (e *Engine) Fixed() bool { return e.cfg.ItemSize > 0 }

// Prerendering reports whether the next pass is the prerender pass.
func (e *Engine) Prerendering() bool { return e.prerender }

// EndPrerender switches the engine to real windowing.
func (e *Engine) EndPrerender() { e.prerender = false }

// LastScroll returns the scroll start of the last computed pass.
func (e *Engine) LastScroll() float64 { return e.lastScroll }

// Last returns the last computed state.
func (e *Engine) Last() State { return e.prev }

// Reset forgets the previous window so the next pass is discontinuous
// unless it starts at index 0.
func (e *Engine) Reset() {
	e.lastStart, e.lastEnd = 0, 0
	e.prev = State{}
	e.computed = false
}

// Compute runs one windowing pass.
func (e *Engine) Compute(req Request) (State, error) {
	var st State

	switch {
	case req.Count <= 0:
		st = State{TotalKnown: true}

	case e.prerender:
		end := min(e.cfg.Prerender, req.Count)
		st = State{End: end, VisibleEnd: end}

	default:
		if !e.Fixed() && req.Table == nil {
			return State{}, ErrNoSizeTable
		}

		if req.FromScroll && e.computed {
			diff := math.Abs(req.Scroll.Start - e.lastScroll)
			if diff < e.threshold(req.Table) {
				skipped := e.prev
				skipped.Continuous = true
				skipped.Skipped = true
				return skipped, nil
			}
		}
		e.lastScroll = req.Scroll.Start

		buffered := Range{
			Start: req.Scroll.Start - e.cfg.Buffer - req.Before,
			End:   req.Scroll.End + e.cfg.Buffer + req.After,
		}
		visible := Range{
			Start: req.Scroll.Start - req.Before,
			End:   req.Scroll.End - req.Before,
		}

		if e.Fixed() {
			st = e.fixed(req.Count, buffered, visible)
		} else {
			st = variable(req.Table, req.Count, buffered, visible)
		}
		st.TotalKnown = true
	}

	if st.Len() > e.cfg.ItemsLimit {
		return State{}, fmt.Errorf("%w: %d items in window, limit is %d: %s",
			ErrItemsLimit, st.Len(), e.cfg.ItemsLimit, itemsLimitHint)
	}

	st.Continuous = st.Start <= e.lastEnd && st.End >= e.lastStart
	e.lastStart, e.lastEnd = st.Start, st.End
	e.prev = st
	e.computed = true

	return st, nil
}

// Position returns the primary and secondary offsets of padded index i.
func (e *Engine) Position(i int, tbl *sizes.Table) (primary, secondary float64) {
	if e.Fixed() {
		g := e.cfg.GridItems
		return float64(i/g) * e.cfg.ItemSize, float64(i%g) * e.cfg.SecondarySize
	}
	return tbl.Start(i), 0
}

// threshold is the minimum scroll delta worth a new pass.
func (e *Engine) threshold(tbl *sizes.Table) float64 {
	if e.Fixed() {
		return e.cfg.ItemSize
	}
	return tbl.MinSize()
}

func (e *Engine) fixed(count int, buffered, visible Range) State {
	g := e.cfg.GridItems
	perPixel := float64(g) / e.cfg.ItemSize

	start := clamp(int(math.Floor(buffered.Start*perPixel)), 0, count)
	start -= start % g
	end := clamp(int(math.Ceil(buffered.End*perPixel)), start, count)

	vStart := clamp(int(math.Floor(visible.Start*perPixel)), start, end)
	vEnd := clamp(int(math.Ceil(visible.End*perPixel)), vStart, end)

	rows := (count + g - 1) / g

	return State{
		Start:        start,
		End:          end,
		VisibleStart: vStart,
		VisibleEnd:   vEnd,
		Total:        float64(rows) * e.cfg.ItemSize,
	}
}

func variable(tbl *sizes.Table, count int, buffered, visible Range) State {
	count = min(count, tbl.Len())

	start := max(tbl.Search(buffered.Start), 0)
	end := min(tbl.Scan(start, buffered.End)+1, count)
	end = max(end, start)

	vStart := start
	for vStart < end && tbl.End(vStart) <= visible.Start {
		vStart++
	}
	vEnd := vStart
	for vEnd < end && tbl.Start(vEnd) < visible.End {
		vEnd++
	}

	return State{
		Start:        start,
		End:          end,
		VisibleStart: vStart,
		VisibleEnd:   vEnd,
		Total:        tbl.Total(),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
