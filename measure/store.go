// Package measure tracks the rendered sizes of variable-height items.
//
// Sizes are measured after layout by the renderer, committed through a
// Tracker and stored per item key in a Store. A Bus carries update requests
// between the tracker and the owning scroller.
package measure

// Size is the stored size of one item. Valid=false means the item has not
// been measured since the last invalidation; Value may still hold the last
// measurement.
type Size struct {
	Value float64
	Valid bool
}

// Store maps item keys to sizes. The zero value is not usable; construct
// with NewStore.
type Store[K comparable] struct {
	sizes map[K]Size
}

// NewStore returns an empty store.
func NewStore[K comparable]() *Store[K] {
	return &Store[K]{sizes: make(map[K]Size)}
}

// Get returns the stored size of key.
func (s *Store[K]) Get(key K) Size { return s.sizes[key] }

// Value returns the last measured value of key. ok is false when the item
// has never been measured.
func (s *Store[K]) Value(key K) (float64, bool) {
	sz, ok := s.sizes[key]
	return sz.Value, ok && sz.Value > 0
}

// Set stores a valid measurement.
func (s *Store[K]) Set(key K, v float64) {
	s.sizes[key] = Size{Value: v, Valid: true}
}

// Invalidate marks key as needing a new measurement.
func (s *Store[K]) Invalidate(key K) {
	if sz, ok := s.sizes[key]; ok {
		sz.Valid = false
		s.sizes[key] = sz
	}
}

// InvalidateAll marks every stored size as needing a new measurement.
func (s *Store[K]) InvalidateAll() {
	for k, sz := range s.sizes {
		sz.Valid = false
		s.sizes[k] = sz
	}
}

// Delete forgets key.
func (s *Store[K]) Delete(key K) { delete(s.sizes, key) }

// Len returns the number of stored keys.
func (s *Store[K]) Len() int { return len(s.sizes) }
