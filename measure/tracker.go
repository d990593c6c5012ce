package measure

import (
	"log/slog"
	"maps"
	"math"
	"slices"
)

// State is the measurement state of one item key.
type State int

const (
	Unmeasured State = iota
	Pending
	Valid
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Valid:
		return "valid"
	default:
		return "unmeasured"
	}
}

// Job asks the renderer to measure the slot SlotID once the current frame
// is laid out. Gen identifies the binding the job was issued for.
type Job[K comparable] struct {
	SlotID int
	Key    K
	Gen    uint64
}

// Stats counts tracker activity since creation.
type Stats struct {
	Queued    int
	Committed int
	Stale     int
	Deferred  int
}

// cell is the per-slot binding state.
type cell[K comparable] struct {
	id      int
	key     K
	version int
	bound   bool
	active  bool

	// gen is the generation of the in-flight job, 0 when none.
	gen uint64

	// forceNext records an update requested while the slot was inactive.
	forceNext bool

	// pendingForce records a forced update missed while inactive.
	pendingForce bool
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Option configures a Tracker.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	horizontal bool
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHorizontal measures widths instead of heights.
func WithHorizontal(h bool) Option {
	return func(o *options) { o.horizontal = h }
}

// ---------------------------------------------------------------------------
// Tracker
// ---------------------------------------------------------------------------

// Tracker drives the Unmeasured → Pending → Valid state machine of the
// items bound to rendered slots. It is not safe for concurrent use.
type Tracker[K comparable] struct {
	store *Store[K]
	bus   *Bus
	cells map[int]*cell[K]
	queue []Job[K]
	gen   uint64

	active     bool
	horizontal bool

	unmeasured map[K]struct{}
	pending    map[K]struct{}

	// deferred holds keys whose measurement was interrupted by their slot
	// being released. It is replayed when the key is bound again.
	deferred map[K]struct{}

	// owner maps a bound key to its slot.
	owner map[K]int

	stats Stats
	log   *slog.Logger
	unsub func()
}

// NewTracker returns an active tracker writing to store and listening on
// bus.
func NewTracker[K comparable](store *Store[K], bus *Bus, opts ...Option) *Tracker[K] {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range opts {
		fn(&o)
	}
	t := &Tracker[K]{
		store:      store,
		bus:        bus,
		cells:      make(map[int]*cell[K]),
		active:     true,
		horizontal: o.horizontal,
		unmeasured: make(map[K]struct{}),
		pending:    make(map[K]struct{}),
		owner:      make(map[K]int),
		deferred:   make(map[K]struct{}),
		log:        o.logger,
	}
	t.unsub = bus.Subscribe(t.onUpdate)
	return t
}

// Store returns the size store.
func (t *Tracker[K]) Store() *Store[K] { return t.store }

// Bus returns the update bus.
func (t *Tracker[K]) Bus() *Bus { return t.bus }

// Active reports whether measurement is enabled.
func (t *Tracker[K]) Active() bool { return t.active }

// Unmeasured returns the number of active bound items without a valid
// size.
func (t *Tracker[K]) Unmeasured() int { return len(t.unmeasured) }

// Stats returns the activity counters.
func (t *Tracker[K]) Stats() Stats { return t.stats }

// State returns the measurement state of key.
func (t *Tracker[K]) State(key K) State {
	if _, ok := t.pending[key]; ok {
		return Pending
	}
	if t.store.Get(key).Valid {
		return Valid
	}
	return Unmeasured
}

// Bind records that slotID renders key at content version version.
//
// A new binding without a valid size, or a content version change on the
// same key, requests a measurement. A slot becoming active again replays
// any update it missed while inactive.
func (t *Tracker[K]) Bind(slotID int, key K, version int, active bool) {
	c, existed := t.cells[slotID]
	if !existed {
		c = &cell[K]{id: slotID}
		t.cells[slotID] = c
	}

	identity := !c.bound || c.key != key
	content := !identity && c.version != version
	reactivated := !identity && !c.active && active

	if identity && c.bound {
		t.forget(c)
	}
	if identity {
		c.gen = 0
		c.forceNext = false
		c.pendingForce = false
	}

	c.key = key
	c.version = version
	c.bound = true
	c.active = active
	t.owner[key] = slotID
	t.track(c)

	replay := false
	if identity {
		_, replay = t.deferred[key]
		delete(t.deferred, key)
	}

	switch {
	case !existed, replay:
		t.update(c)
	case identity && !t.store.Get(key).Valid:
		t.update(c)
	case content:
		t.update(c)
	case reactivated && (c.forceNext || c.pendingForce):
		t.update(c)
	}
}

// Unbind drops the binding of slotID. In-flight jobs for it become stale;
// an interrupted or deferred measurement is replayed when the key is bound
// again.
func (t *Tracker[K]) Unbind(slotID int) {
	c, ok := t.cells[slotID]
	if !ok || !c.bound {
		return
	}
	interrupted := t.owns(c) && (c.gen != 0 || c.forceNext || c.pendingForce)
	t.forget(c)
	if interrupted {
		t.deferred[c.key] = struct{}{}
		t.pending[c.key] = struct{}{}
		t.stats.Deferred++
	}
	c.bound = false
	c.active = false
	c.gen = 0
	c.forceNext = false
	c.pendingForce = false
}

// SetActive enables or disables measurement for the whole tracker. While
// inactive, updates are deferred per slot and replayed on reactivation.
func (t *Tracker[K]) SetActive(active bool) {
	if t.active == active {
		return
	}
	t.active = active
	for _, id := range t.slotIDs() {
		c := t.cells[id]
		if !c.bound {
			continue
		}
		t.track(c)
		if active && (c.forceNext || c.pendingForce) {
			t.update(c)
		}
	}
}

// ForceUpdate publishes a forced update. With clear, stored sizes are
// invalidated first so every item is measured again.
func (t *Tracker[K]) ForceUpdate(clear bool) {
	if clear {
		t.store.InvalidateAll()
		for _, c := range t.cells {
			if c.bound {
				t.track(c)
			}
		}
	}
	t.bus.Publish(Update{Force: true})
}

// Queued returns the number of jobs waiting to be drained.
func (t *Tracker[K]) Queued() int { return len(t.queue) }

// Drain returns and clears the queued measurement jobs.
func (t *Tracker[K]) Drain() []Job[K] {
	jobs := t.queue
	t.queue = nil
	return jobs
}

// Commit applies the measurement of job. It reports whether the stored
// size changed. Jobs whose slot was rebound, unbound or re-requested since
// they were issued are dropped.
func (t *Tracker[K]) Commit(job Job[K], width, height float64) bool {
	c, ok := t.cells[job.SlotID]
	if !ok || !c.bound || c.key != job.Key || c.gen != job.Gen {
		t.stats.Stale++
		t.log.Debug("measure: dropping stale job", "slot", job.SlotID, "gen", job.Gen)
		return false
	}
	c.gen = 0
	if !c.forceNext {
		delete(t.pending, c.key)
	}

	size := height
	if t.horizontal {
		size = width
	}
	size = math.Trunc(size)

	cur := t.store.Get(c.key)
	if size <= 0 || (cur.Valid && cur.Value == size) {
		return false
	}

	t.store.Set(c.key, size)
	delete(t.unmeasured, c.key)
	t.stats.Committed++
	return true
}

// Close detaches the tracker from its bus.
func (t *Tracker[K]) Close() {
	if t.unsub != nil {
		t.unsub()
		t.unsub = nil
	}
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (t *Tracker[K]) onUpdate(u Update) {
	for _, id := range t.slotIDs() {
		c := t.cells[id]
		if !c.bound {
			continue
		}
		if u.Force && !t.finalActive(c) {
			c.pendingForce = true
		}
		if c.forceNext || u.Force || !t.store.Get(c.key).Valid {
			t.update(c)
		}
	}
}

func (t *Tracker[K]) finalActive(c *cell[K]) bool {
	return t.active && c.active
}

// update queues a measurement for c, or defers it while c is inactive.
func (t *Tracker[K]) update(c *cell[K]) {
	t.pending[c.key] = struct{}{}
	if !t.finalActive(c) {
		if !c.forceNext {
			t.stats.Deferred++
		}
		c.forceNext = true
		return
	}
	if c.gen != 0 {
		return
	}
	t.gen++
	c.gen = t.gen
	c.forceNext = false
	c.pendingForce = false
	t.queue = append(t.queue, Job[K]{SlotID: c.id, Key: c.key, Gen: c.gen})
	t.stats.Queued++
}

// track keeps the unmeasured set in line with c's binding.
func (t *Tracker[K]) track(c *cell[K]) {
	if !t.owns(c) {
		return
	}
	if t.finalActive(c) && !t.store.Get(c.key).Valid {
		t.unmeasured[c.key] = struct{}{}
	} else {
		delete(t.unmeasured, c.key)
	}
}

// forget drops the markers of c's key unless another slot took it over.
func (t *Tracker[K]) forget(c *cell[K]) {
	if !t.owns(c) {
		return
	}
	delete(t.owner, c.key)
	delete(t.unmeasured, c.key)
	delete(t.pending, c.key)
}

func (t *Tracker[K]) owns(c *cell[K]) bool {
	id, ok := t.owner[c.key]
	return c.bound && ok && id == c.id
}

func (t *Tracker[K]) slotIDs() []int {
	return slices.Sorted(maps.Keys(t.cells))
}
