package scroller

import (
	"github.com/miosa/osa-scroller/fields"
	"github.com/miosa/osa-scroller/measure"
	"github.com/miosa/osa-scroller/pool"
	"github.com/miosa/osa-scroller/window"
)

// Sized is an item paired with its measured size, the element type of the
// Recycle scroller underneath a Dynamic scroller.
type Sized[T any] struct {
	Item  T
	Key   any
	Index int

	// Size is the last measured size. Known is false before the first
	// measurement.
	Size  float64
	Known bool

	// Version is the content version of Item. A change re-measures it.
	Version int
}

// DynamicAccessors read keys, type tags and content versions from items.
// With no Key function and no KeyField, items are keyed by index.
type DynamicAccessors[T any] struct {
	Key     func(T) (any, bool)
	Type    func(T) string
	Version func(T) int
}

// Measurement is one renderer measurement of a job's slot.
type Measurement struct {
	Job    measure.Job[any]
	Width  float64
	Height float64
}

// Dynamic is a scroller over items whose sizes are only known once they
// are rendered. It is not safe for concurrent use.
type Dynamic[T any] struct {
	rec     *Recycle[Sized[T]]
	opts    Options
	acc     DynamicAccessors[T]
	byIndex bool

	items    []T
	snapshot []Sized[T]

	store   *measure.Store[any]
	bus     *measure.Bus
	tracker *measure.Tracker[any]
	unsub   func()

	// dirty is set when sizes changed or an update was published since the
	// last flush.
	dirty bool

	polling bool
	polls   int

	// flushed is the tracker activity at the last flush.
	flushed measure.Stats
}

// NewDynamic returns a dynamic scroller with no items. Options.MinItemSize
// is required; ItemSize and GridItems are ignored.
func NewDynamic[T any](opts Options, acc DynamicAccessors[T]) (*Dynamic[T], error) {
	if opts.MinItemSize <= 0 {
		return nil, ErrMinItemSize
	}
	opts.ItemSize = 0
	opts.GridItems = 0
	if opts.MaxEndPolls <= 0 {
		opts.MaxEndPolls = DefaultMaxEndPolls
	}

	res := fields.Resolver{KeyField: opts.KeyField, TypeField: opts.TypeField}
	byIndex := acc.Key == nil && opts.KeyField == ""
	if acc.Key == nil && !byIndex {
		acc.Key = func(it T) (any, bool) { return res.Key(it) }
	}
	if acc.Type == nil {
		acc.Type = func(it T) string { return res.Type(it) }
	}

	rec, err := NewRecycle(opts, Accessors[Sized[T]]{
		Key:  func(s Sized[T]) (any, bool) { return s.Key, s.Key != nil },
		Size: func(s Sized[T]) (float64, bool) { return s.Size, s.Known },
		Type: func(s Sized[T]) string { return acc.Type(s.Item) },
	})
	if err != nil {
		return nil, err
	}

	store := measure.NewStore[any]()
	bus := measure.NewBus()
	d := &Dynamic[T]{
		rec:     rec,
		opts:    opts,
		acc:     acc,
		byIndex: byIndex,
		store:   store,
		bus:     bus,
		tracker: measure.NewTracker(store, bus,
			measure.WithLogger(rec.log),
			measure.WithHorizontal(opts.Direction == Horizontal)),
	}
	d.unsub = bus.Subscribe(func(measure.Update) { d.dirty = true })
	return d, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Recycle returns the underlying scroller.
func (d *Dynamic[T]) Recycle() *Recycle[Sized[T]] { return d.rec }

// Tracker returns the size tracker.
func (d *Dynamic[T]) Tracker() *measure.Tracker[any] { return d.tracker }

// Items returns the current items.
func (d *Dynamic[T]) Items() []T { return d.items }

// Views returns every slot in render order.
func (d *Dynamic[T]) Views() []*pool.Slot[Sized[T], any] { return d.rec.Views() }

// State returns the last computed window.
func (d *Dynamic[T]) State() window.State { return d.rec.State() }

// Scroll returns the scroll position.
func (d *Dynamic[T]) Scroll() float64 { return d.rec.Scroll() }

// ContentSize returns the scrollable size.
func (d *Dynamic[T]) ContentSize() float64 { return d.rec.ContentSize() }

// TotalSize returns the size of all items. ok is false while prerendering.
func (d *Dynamic[T]) TotalSize() (float64, bool) { return d.rec.TotalSize() }

// ScrollingToBottom reports whether a scroll-to-bottom is being polled.
func (d *Dynamic[T]) ScrollingToBottom() bool { return d.polling }

// ItemSize returns the last measured size of item, 0 when unmeasured.
// index is only used when items are keyed by index.
func (d *Dynamic[T]) ItemSize(item T, index int) float64 {
	key, ok := d.keyOf(item, index)
	if !ok {
		return 0
	}
	v, _ := d.store.Value(key)
	return v
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// SetItems replaces the items, keeps the visible content in place and
// requests measurement of every bound item.
func (d *Dynamic[T]) SetItems(items []T) (Pass[Sized[T]], error) {
	prev := sizesOf(d.snapshot)
	d.items = items
	d.snapshot = d.build()
	d.rec.replaceItems(d.snapshot)
	d.rec.reindex = true
	shift := d.compensate(prev, sizesOf(d.snapshot))

	p, err := d.after(d.rec.Update(false))
	if err != nil {
		return p, err
	}
	p.Shift = shift
	d.tracker.ForceUpdate(d.byIndex)
	return p, nil
}

// ForceUpdate re-measures every active item, invalidating stored sizes
// first when clear is set, and re-windows.
func (d *Dynamic[T]) ForceUpdate(clear bool) (Pass[Sized[T]], error) {
	d.tracker.ForceUpdate(clear || d.byIndex)
	return d.after(d.rec.Refresh())
}

// Jobs returns the pending measurement jobs. The renderer measures each
// job's slot after the frame is laid out and reports back with Measured.
func (d *Dynamic[T]) Jobs() []measure.Job[any] { return d.tracker.Drain() }

// HasJobs reports whether measurement jobs are waiting.
func (d *Dynamic[T]) HasJobs() bool { return d.tracker.Queued() > 0 }

// MaxScroll returns the largest valid scroll position.
func (d *Dynamic[T]) MaxScroll() float64 { return d.rec.MaxScroll() }

// ItemOffset returns the scroll position that puts item i at the top of
// the viewport.
func (d *Dynamic[T]) ItemOffset(i int) float64 { return d.rec.ItemOffset(i) }

// JobItem returns the item a job asks to measure. ok is false when the
// job's slot no longer renders it.
func (d *Dynamic[T]) JobItem(job measure.Job[any]) (Sized[T], bool) {
	for _, v := range d.rec.Views() {
		if v.ID == job.SlotID {
			if v.Used && v.Key == job.Key {
				return v.Item, true
			}
			break
		}
	}
	return Sized[T]{}, false
}

// Measured commits one measurement and reports whether the stored size
// changed. Call Flush once the frame's measurements are committed.
func (d *Dynamic[T]) Measured(job measure.Job[any], width, height float64) bool {
	if d.tracker.Commit(job, width, height) {
		d.dirty = true
		return true
	}
	return false
}

// Flush applies the measurements committed since the last flush: it
// compensates the scroll position for size changes above the viewport and
// re-windows. ok is false when there was nothing to apply.
func (d *Dynamic[T]) Flush() (p Pass[Sized[T]], ok bool, err error) {
	if !d.dirty {
		return Pass[Sized[T]]{}, false, nil
	}
	d.dirty = false

	prev := sizesOf(d.snapshot)
	d.snapshot = d.build()
	d.rec.replaceItems(d.snapshot)
	shift := d.compensate(prev, sizesOf(d.snapshot))

	p, err = d.after(d.rec.Update(false))
	if err != nil {
		return p, false, err
	}
	p.Shift = shift

	now := d.tracker.Stats()
	d.rec.rec.RecordMeasure(MeasureStats{
		Committed:  now.Committed - d.flushed.Committed,
		Stale:      now.Stale - d.flushed.Stale,
		Unmeasured: d.tracker.Unmeasured(),
	})
	d.flushed = now
	return p, true, nil
}

// Commit is Measured for a batch followed by Flush.
func (d *Dynamic[T]) Commit(ms []Measurement) (Pass[Sized[T]], bool, error) {
	before := d.tracker.Stats()
	for _, m := range ms {
		d.Measured(m.Job, m.Width, m.Height)
	}
	stale := d.tracker.Stats().Stale - before.Stale
	if stale > 0 {
		d.rec.log.Debug("scroller: dropped stale measurements", "count", stale)
	}
	return d.Flush()
}

// Update runs one windowing pass at the current scroll position.
func (d *Dynamic[T]) Update(fromScroll bool) (Pass[Sized[T]], error) {
	return d.after(d.rec.Update(fromScroll))
}

// SetViewport sets the viewport size on the primary axis.
func (d *Dynamic[T]) SetViewport(size float64) (Pass[Sized[T]], error) {
	return d.after(d.rec.SetViewport(size))
}

// Resize handles a resize of the scroller. A cross-axis change reflows
// every item, so stored sizes are invalidated.
func (d *Dynamic[T]) Resize(primary float64, crossChanged bool) (Pass[Sized[T]], error) {
	if crossChanged {
		d.tracker.ForceUpdate(true)
	}
	return d.after(d.rec.SetViewport(primary))
}

// SetBefore sets the size of the content rendered ahead of the items.
func (d *Dynamic[T]) SetBefore(size float64) (Pass[Sized[T]], error) {
	return d.after(d.rec.SetBefore(size))
}

// SetAfter sets the size of the content rendered behind the items.
func (d *Dynamic[T]) SetAfter(size float64) (Pass[Sized[T]], error) {
	return d.after(d.rec.SetAfter(size))
}

// SetPageBounds sets the scroll range in page mode.
func (d *Dynamic[T]) SetPageBounds(rng window.Range) (Pass[Sized[T]], error) {
	return d.after(d.rec.SetPageBounds(rng))
}

// SetScroll moves the scroll position as a scroll sample would.
func (d *Dynamic[T]) SetScroll(pos float64) (Pass[Sized[T]], error) {
	return d.after(d.rec.SetScroll(pos))
}

// ScrollBy moves the scroll position by delta.
func (d *Dynamic[T]) ScrollBy(delta float64) (Pass[Sized[T]], error) {
	return d.after(d.rec.ScrollBy(delta))
}

// ScrollToPosition scrolls to an absolute content position.
func (d *Dynamic[T]) ScrollToPosition(pos float64) (Pass[Sized[T]], error) {
	return d.after(d.rec.ScrollToPosition(pos))
}

// ScrollToItem scrolls item i to the top of the viewport.
func (d *Dynamic[T]) ScrollToItem(i int) (Pass[Sized[T]], error) {
	return d.after(d.rec.ScrollToItem(i))
}

// ScrollToBottom scrolls to the end and starts polling until every bound
// item is measured. started is false when a poll is already running.
func (d *Dynamic[T]) ScrollToBottom() (started bool, err error) {
	if d.polling {
		return false, nil
	}
	d.polling = true
	d.polls = 0
	if _, err := d.after(d.rec.ScrollToEnd()); err != nil {
		d.polling = false
		return false, err
	}
	return true, nil
}

// PollBottom runs one frame of a scroll-to-bottom: it scrolls to the end
// again and reports done once no bound item is unmeasured or the poll
// budget is spent.
func (d *Dynamic[T]) PollBottom() (done bool, err error) {
	if !d.polling {
		return true, nil
	}
	d.polls++
	if _, err := d.after(d.rec.ScrollToEnd()); err != nil {
		d.polling = false
		return true, err
	}
	if d.tracker.Unmeasured() == 0 {
		d.polling = false
		return true, nil
	}
	if d.polls >= d.opts.MaxEndPolls {
		d.polling = false
		d.rec.log.Warn("scroller: scroll to bottom gave up with unmeasured items",
			"unmeasured", d.tracker.Unmeasured(), "polls", d.polls)
		return true, nil
	}
	return false, nil
}

// SetActive pauses or resumes measurement and windowing.
func (d *Dynamic[T]) SetActive(active bool) (Pass[Sized[T]], error) {
	d.tracker.SetActive(active)
	return d.after(d.rec.SetActive(active))
}

// Visible handles the scroller becoming visible: items without a valid
// size are measured again and the window is recomputed.
func (d *Dynamic[T]) Visible() (Pass[Sized[T]], error) {
	d.bus.Publish(measure.Update{})
	return d.after(d.rec.Update(false))
}

// EndPrerender switches from the prerender window to real windowing.
func (d *Dynamic[T]) EndPrerender() (Pass[Sized[T]], error) {
	return d.after(d.rec.EndPrerender())
}

// Sort orders the views by index.
func (d *Dynamic[T]) Sort() { d.rec.Sort() }

// Close detaches the tracker and drops every bus subscriber.
func (d *Dynamic[T]) Close() {
	d.tracker.Close()
	if d.unsub != nil {
		d.unsub()
	}
	d.bus.Close()
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (d *Dynamic[T]) keyOf(item T, index int) (any, bool) {
	if d.byIndex {
		return index, true
	}
	return d.acc.Key(item)
}

func (d *Dynamic[T]) build() []Sized[T] {
	out := make([]Sized[T], len(d.items))
	for i, it := range d.items {
		s := Sized[T]{Item: it, Index: i}
		if k, ok := d.keyOf(it, i); ok {
			s.Key = k
			s.Size, s.Known = d.store.Value(k)
		}
		if d.acc.Version != nil {
			s.Version = d.acc.Version(it)
		}
		out[i] = s
	}
	return out
}

// compensate moves the scroll position by the change of item sizes above
// the viewport and returns the applied delta.
func (d *Dynamic[T]) compensate(prev, next []float64) float64 {
	if d.opts.PageMode || len(prev) == 0 {
		return 0
	}
	top := d.rec.Scroll() - d.rec.leading()
	if top <= 0 {
		return 0
	}
	delta := measure.Compensate(prev, next, top, d.opts.MinItemSize)
	if delta != 0 {
		d.rec.moveScroll(delta)
	}
	return delta
}

// bind mirrors the pool bindings into the tracker.
func (d *Dynamic[T]) bind() {
	views := d.rec.Views()
	for _, v := range views {
		if !v.Used || v.Synthetic {
			d.tracker.Unbind(v.ID)
		}
	}
	for _, v := range views {
		if v.Used && !v.Synthetic {
			d.tracker.Bind(v.ID, v.Key, v.Item.Version, true)
		}
	}
}

func (d *Dynamic[T]) after(p Pass[Sized[T]], err error) (Pass[Sized[T]], error) {
	if err != nil {
		return p, err
	}
	if !p.Skipped {
		d.bind()
	}
	return p, nil
}

func sizesOf[T any](items []Sized[T]) []float64 {
	out := make([]float64, len(items))
	for i, s := range items {
		if s.Known {
			out[i] = s.Size
		}
	}
	return out
}
