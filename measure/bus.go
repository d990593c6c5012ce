package measure

import "slices"

// Update asks listeners to re-measure. Force re-measures every active item
// and marks inactive ones for re-measurement on reactivation; otherwise
// only items without a valid size or with a deferred update react.
type Update struct {
	Force bool
}

// Bus is an observer list owned by one scroller.
type Bus struct {
	subs   map[int]func(Update)
	order  []int
	nextID int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Update))}
}

// Subscribe registers fn and returns a function removing it.
func (b *Bus) Subscribe(fn func(Update)) (unsubscribe func()) {
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	return func() {
		delete(b.subs, id)
		b.order = slices.DeleteFunc(b.order, func(x int) bool { return x == id })
	}
}

// Publish delivers u to every subscriber in subscription order. Subscribers
// added during delivery only see later updates.
func (b *Bus) Publish(u Update) {
	for _, id := range slices.Clone(b.order) {
		if fn, ok := b.subs[id]; ok {
			fn(u)
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int { return len(b.subs) }

// Close drops every subscriber.
func (b *Bus) Close() {
	clear(b.subs)
	b.order = nil
}
