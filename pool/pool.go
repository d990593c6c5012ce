// Package pool owns the reusable view slots of a scroller and binds the
// items of a window to them.
//
// Slots are created lazily and never destroyed. A slot released by one
// pass keeps its place in the view list and is parked at OffscreenOffset so
// the renderer does not have to diff a changing list. Free slots are
// bucketed by type tag; a slot only ever renders items of the type it was
// allocated for.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/miosa/osa-scroller/window"
)

// OffscreenOffset is the offset given to released slots.
const OffscreenOffset = -9999

// Sentinel errors.
var (
	ErrMissingKey   = errors.New("item has no usable key")
	ErrDuplicateKey = errors.New("duplicate key among visible items")
)

// ---------------------------------------------------------------------------
// Source
// ---------------------------------------------------------------------------

// Source exposes the padded item sequence to the pool.
type Source[T any, K comparable] interface {
	// Len returns the padded item count.
	Len() int

	// Item returns the item at padded index i.
	Item(i int) T

	// Key returns the key of index i. ok=false reports a missing key.
	Key(i int) (key K, ok bool)

	// Type returns the type tag of index i.
	Type(i int) string

	// Collapsed reports whether index i has a known size of zero.
	Collapsed(i int) bool

	// Synthetic reports whether index i is a padding item.
	Synthetic(i int) bool

	// IndexOf returns the current index of key, used when the item list
	// changed since the previous pass.
	IndexOf(key K) (int, bool)

	// Position returns the primary and secondary offsets of index i.
	Position(i int) (primary, secondary float64)
}

// ---------------------------------------------------------------------------
// Slot
// ---------------------------------------------------------------------------

// Slot is one reusable unit of rendering state.
type Slot[T any, K comparable] struct {
	// ID never changes once the slot is allocated. Renderers key their
	// per-slot state on it.
	ID int

	Item            T
	Used            bool
	Offset          float64
	SecondaryOffset float64
	Index           int
	Key             K
	Type            string
	Synthetic       bool
}

// TypeStats counts the slots of one type tag.
type TypeStats struct {
	Allocated int
	Used      int
	Peak      int
}

// Result is the outcome of a reconciliation.
type Result[T any, K comparable] struct {
	Views []*Slot[T, K]

	// ReachedStart is set when the first item got a slot in this pass.
	ReachedStart bool

	// ReachedEnd is set when the last item got a slot in this pass.
	ReachedEnd bool

	// Bound and Released count the slot transitions of this pass.
	Bound    int
	Released int
}

// ---------------------------------------------------------------------------
// Pool
// ---------------------------------------------------------------------------

// Option configures a Pool.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Pool binds items to slots. It is not safe for concurrent use.
type Pool[T any, K comparable] struct {
	views  []*Slot[T, K]
	byKey  map[K]*Slot[T, K]
	free   map[string][]*Slot[T, K]
	stats  map[string]*TypeStats
	nextID int
	log    *slog.Logger
}

// New returns an empty pool.
func New[T any, K comparable](opts ...Option) *Pool[T, K] {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range opts {
		fn(&o)
	}
	return &Pool[T, K]{
		byKey: make(map[K]*Slot[T, K]),
		free:  make(map[string][]*Slot[T, K]),
		stats: make(map[string]*TypeStats),
		log:   o.logger,
	}
}

// Views returns every allocated slot in render order.
func (p *Pool[T, K]) Views() []*Slot[T, K] { return p.views }

// Lookup returns the slot bound to key.
func (p *Pool[T, K]) Lookup(key K) (*Slot[T, K], bool) {
	s, ok := p.byKey[key]
	return s, ok
}

// Used returns the number of bound slots.
func (p *Pool[T, K]) Used() int { return len(p.byKey) }

// Stats returns a copy of the per-type counters.
func (p *Pool[T, K]) Stats() map[string]TypeStats {
	out := make(map[string]TypeStats, len(p.stats))
	for typ, s := range p.stats {
		out[typ] = *s
	}
	return out
}

// Reconcile binds the items of st to slots.
//
// Every key in [st.Start, st.End) is validated before any slot is touched,
// so a missing or duplicate key leaves the pool exactly as it was.
//
// reindex must be set when the item list changed since the previous pass:
// bound slots then look their key up again instead of trusting the index
// they were bound at.
func (p *Pool[T, K]) Reconcile(st window.State, src Source[T, K], reindex bool) (Result[T, K], error) {
	keys, err := resolveKeys(st, src)
	if err != nil {
		return Result[T, K]{}, err
	}

	var res Result[T, K]

	if st.Continuous {
		for _, v := range p.views {
			if !v.Used {
				continue
			}
			idx := v.Index
			if reindex {
				var ok bool
				if idx, ok = src.IndexOf(v.Key); !ok {
					idx = -1
				}
			}
			if idx < st.Start || idx >= st.End || keys[idx-st.Start] != v.Key || src.Type(idx) != v.Type {
				p.release(v)
				res.Released++
				continue
			}
			v.Index = idx
		}
	} else {
		released := p.ReleaseAll()
		res.Released += released
		if released > 0 {
			p.log.Debug("pool: discontinuous window, released all slots",
				"released", released, "start", st.Start, "end", st.End)
		}
	}

	first, last := realBounds(src)
	for i := st.Start; i < st.End; i++ {
		k := keys[i-st.Start]
		v := p.byKey[k]

		if src.Collapsed(i) {
			if v != nil {
				p.release(v)
				res.Released++
			}
			continue
		}

		if v == nil {
			typ := src.Type(i)
			v = p.acquire(typ)
			v.Key = k
			v.Type = typ
			p.byKey[k] = v
			res.Bound++

			if i == first {
				res.ReachedStart = true
			}
			if i == last {
				res.ReachedEnd = true
			}
		}

		v.Item = src.Item(i)
		v.Index = i
		v.Synthetic = src.Synthetic(i)
		v.Offset, v.SecondaryOffset = src.Position(i)
	}

	res.Views = p.views
	return res, nil
}

// ReleaseAll releases every bound slot and returns how many were released.
func (p *Pool[T, K]) ReleaseAll() int {
	n := 0
	for _, v := range p.views {
		if v.Used {
			p.release(v)
			n++
		}
	}
	return n
}

// Sort stable-sorts the view list by bound index. It only changes render
// order, never bindings.
func (p *Pool[T, K]) Sort() {
	slices.SortStableFunc(p.views, func(a, b *Slot[T, K]) int {
		return a.Index - b.Index
	})
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func resolveKeys[T any, K comparable](st window.State, src Source[T, K]) ([]K, error) {
	keys := make([]K, st.End-st.Start)
	seen := make(map[K]int, len(keys))
	for i := st.Start; i < st.End; i++ {
		k, ok := src.Key(i)
		if !ok {
			return nil, fmt.Errorf("%w: index %d", ErrMissingKey, i)
		}
		if j, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: %v at indices %d and %d", ErrDuplicateKey, k, j, i)
		}
		seen[k] = i
		keys[i-st.Start] = k
	}
	return keys, nil
}

func (p *Pool[T, K]) acquire(typ string) *Slot[T, K] {
	s := p.stats[typ]
	if s == nil {
		s = &TypeStats{}
		p.stats[typ] = s
	}

	var v *Slot[T, K]
	if free := p.free[typ]; len(free) > 0 {
		v = free[len(free)-1]
		p.free[typ] = free[:len(free)-1]
	} else {
		v = &Slot[T, K]{ID: p.nextID, Type: typ}
		p.nextID++
		p.views = append(p.views, v)
		s.Allocated++
	}

	v.Used = true
	s.Used++
	s.Peak = max(s.Peak, s.Used)
	return v
}

func (p *Pool[T, K]) release(v *Slot[T, K]) {
	var zeroItem T
	var zeroKey K

	delete(p.byKey, v.Key)
	v.Used = false
	v.Item = zeroItem
	v.Key = zeroKey
	v.Offset = OffscreenOffset
	v.SecondaryOffset = 0
	p.free[v.Type] = append(p.free[v.Type], v)
	if s := p.stats[v.Type]; s != nil {
		s.Used--
	}
}

// realBounds returns the indices of the first and last non-padding items.
// Padding only sits at either end, so both scans stop after the padding.
func realBounds[T any, K comparable](src Source[T, K]) (first, last int) {
	n := src.Len()
	first, last = 0, n-1
	for first < n && src.Synthetic(first) {
		first++
	}
	for last >= first && src.Synthetic(last) {
		last--
	}
	return first, last
}
