package scroller

import (
	"log/slog"
	"math"

	"github.com/miosa/osa-scroller/fields"
	"github.com/miosa/osa-scroller/pool"
	"github.com/miosa/osa-scroller/sizes"
	"github.com/miosa/osa-scroller/window"
)

// Accessors read keys, sizes and type tags from items. Nil functions fall
// back to the field names of Options.
type Accessors[T any] struct {
	Key  func(T) (any, bool)
	Size func(T) (float64, bool)
	Type func(T) string
}

// paddingKey keys synthetic padding items. It cannot collide with item keys.
type paddingKey int

// Pass is the result of one windowing pass.
type Pass[T any] struct {
	window.State

	Views []*pool.Slot[T, any]

	// ReachedStart and ReachedEnd are set when the first or last item got a
	// slot in this pass.
	ReachedStart bool
	ReachedEnd   bool

	Bound    int
	Released int

	// Shift is the scroll adjustment applied before the pass to keep
	// visible content in place.
	Shift float64
}

// Recycle is a scroller over items of known size. It is not safe for
// concurrent use.
type Recycle[T any] struct {
	opts   Options
	acc    Accessors[T]
	engine *window.Engine
	pool   *pool.Pool[T, any]

	items []T
	table *sizes.Table
	index map[any]int

	scroll   float64
	viewport float64
	page     window.Range
	before   float64
	after    float64

	state   window.State
	reindex bool
	active  bool

	log *slog.Logger
	rec Recorder
}

// NewRecycle returns a scroller with no items.
func NewRecycle[T any](opts Options, acc Accessors[T]) (*Recycle[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	eng, err := window.New(window.Config{
		ItemSize:      opts.ItemSize,
		GridItems:     opts.GridItems,
		SecondarySize: opts.ItemSecondarySize,
		Buffer:        opts.Buffer,
		ItemsLimit:    opts.ItemsLimit,
		Prerender:     opts.Prerender,
	})
	if err != nil {
		return nil, err
	}

	res := fields.Resolver{KeyField: opts.KeyField, SizeField: opts.SizeField, TypeField: opts.TypeField}
	if acc.Key == nil {
		acc.Key = func(it T) (any, bool) { return res.Key(it) }
	}
	if acc.Size == nil {
		acc.Size = func(it T) (float64, bool) { return res.Size(it) }
	}
	if acc.Type == nil {
		acc.Type = func(it T) string { return res.Type(it) }
	}

	log := opts.logger()
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	return &Recycle[T]{
		opts:    opts,
		acc:     acc,
		engine:  eng,
		pool:    pool.New[T, any](pool.WithLogger(log)),
		reindex: true,
		active:  true,
		log:     log,
		rec:     rec,
	}, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Options returns the scroller options.
func (r *Recycle[T]) Options() Options { return r.opts }

// Items returns the current items.
func (r *Recycle[T]) Items() []T { return r.items }

// Views returns every slot in render order.
func (r *Recycle[T]) Views() []*pool.Slot[T, any] { return r.pool.Views() }

// State returns the last computed window.
func (r *Recycle[T]) State() window.State { return r.state }

// Stats returns per-type slot counters.
func (r *Recycle[T]) Stats() map[string]pool.TypeStats { return r.pool.Stats() }

// Scroll returns the scroll position.
func (r *Recycle[T]) Scroll() float64 { return r.scroll }

// Viewport returns the viewport size on the primary axis.
func (r *Recycle[T]) Viewport() float64 { return r.viewport }

// Before returns the size of the content rendered ahead of the items.
func (r *Recycle[T]) Before() float64 { return r.before }

// Prerendering reports whether the scroller still shows the prerender
// window.
func (r *Recycle[T]) Prerendering() bool { return r.engine.Prerendering() }

// TotalSize returns the size of all items including padding. ok is false
// while prerendering.
func (r *Recycle[T]) TotalSize() (size float64, ok bool) {
	if r.engine.Prerendering() {
		return 0, false
	}
	return r.total(), true
}

// ContentSize returns the scrollable size: leading content, items and
// trailing content.
func (r *Recycle[T]) ContentSize() float64 {
	return r.before + r.total() + r.after
}

// MaxScroll returns the largest valid scroll position.
func (r *Recycle[T]) MaxScroll() float64 {
	return math.Max(r.ContentSize()-r.viewport, 0)
}

// ItemOffset returns the scroll position that puts item i at the top of
// the viewport.
func (r *Recycle[T]) ItemOffset(i int) float64 {
	p, _ := r.engine.Position(i+r.opts.NumItemsAbove, r.table)
	return r.before + p
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// SetItems replaces the items and re-windows. Bound slots follow their keys
// to the new indices.
func (r *Recycle[T]) SetItems(items []T) (Pass[T], error) {
	r.items = items
	r.index = nil
	r.reindex = true
	r.rebuild()
	return r.Update(false)
}

// replaceItems swaps in items with unchanged keys and positions.
func (r *Recycle[T]) replaceItems(items []T) {
	r.items = items
	r.index = nil
	r.rebuild()
}

// SetViewport sets the viewport size and re-windows.
func (r *Recycle[T]) SetViewport(size float64) (Pass[T], error) {
	r.viewport = math.Max(size, 0)
	r.scroll = r.clamp(r.scroll)
	return r.Update(false)
}

// SetBefore sets the size of the content rendered ahead of the items.
func (r *Recycle[T]) SetBefore(size float64) (Pass[T], error) {
	r.before = math.Max(size, 0)
	return r.Update(false)
}

// SetAfter sets the size of the content rendered behind the items.
func (r *Recycle[T]) SetAfter(size float64) (Pass[T], error) {
	r.after = math.Max(size, 0)
	return r.Update(false)
}

// SetPageBounds sets the scroll range in page mode, usually computed by
// bridge.PageRange.
func (r *Recycle[T]) SetPageBounds(rng window.Range) (Pass[T], error) {
	r.page = rng
	return r.Update(true)
}

// SetScroll moves the scroll position as a scroll sample would.
func (r *Recycle[T]) SetScroll(pos float64) (Pass[T], error) {
	r.scroll = r.clamp(pos)
	return r.Update(true)
}

// ScrollBy moves the scroll position by delta.
func (r *Recycle[T]) ScrollBy(delta float64) (Pass[T], error) {
	return r.SetScroll(r.scroll + delta)
}

// ScrollToPosition scrolls to an absolute content position.
func (r *Recycle[T]) ScrollToPosition(pos float64) (Pass[T], error) {
	return r.SetScroll(pos)
}

// ScrollToItem scrolls item i to the top of the viewport.
func (r *Recycle[T]) ScrollToItem(i int) (Pass[T], error) {
	i = max(0, min(i, len(r.items)-1))
	return r.SetScroll(r.ItemOffset(i))
}

// ScrollToEnd scrolls to the end of the content.
func (r *Recycle[T]) ScrollToEnd() (Pass[T], error) {
	return r.SetScroll(r.MaxScroll())
}

// Refresh re-windows from scratch, re-resolving every bound key.
func (r *Recycle[T]) Refresh() (Pass[T], error) {
	r.reindex = true
	r.index = nil
	r.rebuild()
	return r.Update(false)
}

// EndPrerender switches from the prerender window to real windowing.
func (r *Recycle[T]) EndPrerender() (Pass[T], error) {
	if !r.engine.Prerendering() {
		return r.current(), nil
	}
	r.engine.EndPrerender()
	r.reindex = true
	return r.Update(false)
}

// SetActive pauses or resumes the scroller. On resume the last processed
// scroll position is restored.
func (r *Recycle[T]) SetActive(active bool) (Pass[T], error) {
	was := r.active
	r.active = active
	if !active || was {
		return r.current(), nil
	}
	r.scroll = r.clamp(r.engine.LastScroll())
	return r.Update(false)
}

// Active reports whether the scroller is active.
func (r *Recycle[T]) Active() bool { return r.active }

// Sort orders the views by index.
func (r *Recycle[T]) Sort() { r.pool.Sort() }

// Update runs one windowing pass. fromScroll marks passes triggered by a
// scroll sample, which may be skipped when the scroll delta is smaller
// than an item. An inactive scroller keeps its last window.
func (r *Recycle[T]) Update(fromScroll bool) (Pass[T], error) {
	if !r.active {
		return r.current(), nil
	}

	st, err := r.engine.Compute(window.Request{
		Scroll:     r.scrollRange(),
		Before:     r.before,
		After:      r.after,
		Count:      r.count(),
		Table:      r.table,
		FromScroll: fromScroll,
	})
	if err != nil {
		return Pass[T]{}, err
	}

	if st.Skipped {
		r.rec.RecordPass(PassStats{Skipped: true, Continuous: true, Window: st.Len()})
		return Pass[T]{State: st, Views: r.pool.Views()}, nil
	}

	res, err := r.pool.Reconcile(st, source[T]{r}, r.reindex)
	if err != nil {
		return Pass[T]{}, err
	}
	r.reindex = false
	r.state = st

	if r.opts.OnUpdate != nil {
		r.opts.OnUpdate(st.Start, st.End, st.VisibleStart, st.VisibleEnd)
	}

	used, allocated := r.pool.Used(), len(res.Views)
	r.rec.RecordPass(PassStats{
		Continuous: st.Continuous,
		Window:     st.Len(),
		Bound:      res.Bound,
		Released:   res.Released,
		Used:       used,
		Allocated:  allocated,
	})
	if !st.Continuous {
		r.log.Debug("scroller: discontinuous pass",
			"start", st.Start, "end", st.End, "scroll", r.scroll)
	}

	return Pass[T]{
		State:        st,
		Views:        res.Views,
		ReachedStart: res.ReachedStart,
		ReachedEnd:   res.ReachedEnd,
		Bound:        res.Bound,
		Released:     res.Released,
	}, nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (r *Recycle[T]) current() Pass[T] {
	return Pass[T]{State: r.state, Views: r.pool.Views()}
}

func (r *Recycle[T]) count() int {
	if len(r.items) == 0 {
		return 0
	}
	return r.opts.NumItemsAbove + len(r.items) + r.opts.NumItemsBelow
}

func (r *Recycle[T]) rebuild() {
	if r.engine.Fixed() {
		r.table = nil
		return
	}
	items := r.items
	r.table = sizes.Build(len(items), func(i int) (float64, bool) {
		return r.acc.Size(items[i])
	}, r.opts.MinItemSize, sizes.Padding{
		Above: r.opts.NumItemsAbove,
		Below: r.opts.NumItemsBelow,
		Size:  r.opts.emptySize(),
	})
}

func (r *Recycle[T]) total() float64 {
	if r.engine.Fixed() {
		g := max(r.opts.GridItems, 1)
		rows := (r.count() + g - 1) / g
		return float64(rows) * r.opts.ItemSize
	}
	if len(r.items) == 0 {
		return 0
	}
	return r.table.Total()
}

// leading is the size of the padding above the first real item.
func (r *Recycle[T]) leading() float64 {
	return r.before + float64(r.opts.NumItemsAbove)*r.opts.emptySize()
}

func (r *Recycle[T]) scrollRange() window.Range {
	if r.opts.PageMode {
		return r.page
	}
	return window.Range{Start: r.scroll, End: r.scroll + r.viewport}
}

func (r *Recycle[T]) clamp(pos float64) float64 {
	if r.engine.Prerendering() {
		return math.Max(pos, 0)
	}
	return math.Max(0, math.Min(pos, r.MaxScroll()))
}

// moveScroll shifts the scroll position without re-windowing.
func (r *Recycle[T]) moveScroll(delta float64) {
	r.scroll = r.clamp(r.scroll + delta)
}

func (r *Recycle[T]) indexOf(key any) (int, bool) {
	if r.index == nil {
		r.index = make(map[any]int, len(r.items))
		for i, it := range r.items {
			if k, ok := r.acc.Key(it); ok {
				if _, dup := r.index[k]; !dup {
					r.index[k] = i
				}
			}
		}
	}
	i, ok := r.index[key]
	return i + r.opts.NumItemsAbove, ok
}

// source adapts a Recycle to pool.Source.
type source[T any] struct {
	r *Recycle[T]
}

func (s source[T]) real(i int) (int, bool) {
	j := i - s.r.opts.NumItemsAbove
	return j, j >= 0 && j < len(s.r.items)
}

func (s source[T]) Len() int { return s.r.count() }

func (s source[T]) Item(i int) T {
	if j, ok := s.real(i); ok {
		return s.r.items[j]
	}
	var zero T
	return zero
}

func (s source[T]) Key(i int) (any, bool) {
	if j, ok := s.real(i); ok {
		return s.r.acc.Key(s.r.items[j])
	}
	return paddingKey(i), true
}

func (s source[T]) Type(i int) string {
	if j, ok := s.real(i); ok {
		return s.r.acc.Type(s.r.items[j])
	}
	return ""
}

func (s source[T]) Collapsed(i int) bool {
	return s.r.table != nil && s.r.table.Entry(i).Collapsed
}

func (s source[T]) Synthetic(i int) bool {
	_, ok := s.real(i)
	return !ok
}

func (s source[T]) IndexOf(key any) (int, bool) {
	if pk, ok := key.(paddingKey); ok {
		i := int(pk)
		return i, i >= 0 && i < s.Len()
	}
	return s.r.indexOf(key)
}

func (s source[T]) Position(i int) (float64, float64) {
	return s.r.engine.Position(i, s.r.table)
}
