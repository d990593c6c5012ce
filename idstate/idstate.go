// Package idstate keeps auxiliary per-item state keyed by item key, so
// state survives the slot it was created in being recycled for another item.
package idstate

import (
	"errors"
	"fmt"
)

// ErrMissingFactory is returned when state is requested from a store built
// without a factory.
var ErrMissingFactory = errors.New("idstate: missing state factory")

// Factory creates the initial state of key.
type Factory[K comparable, S any] func(key K) S

// Store maps keys to state. It is owned by one component instance and is
// not safe for concurrent use.
type Store[K comparable, S any] struct {
	factory Factory[K, S]
	states  map[K]*S
}

// New returns a store creating state with factory.
func New[K comparable, S any](factory Factory[K, S]) *Store[K, S] {
	return &Store[K, S]{factory: factory, states: make(map[K]*S)}
}

// Get returns the state of key, creating it on first access.
func (s *Store[K, S]) Get(key K) (*S, error) {
	if st, ok := s.states[key]; ok {
		return st, nil
	}
	if s.factory == nil {
		return nil, fmt.Errorf("%w: key %v", ErrMissingFactory, key)
	}
	st := s.factory(key)
	s.states[key] = &st
	return &st, nil
}

// Peek returns the state of key without creating it.
func (s *Store[K, S]) Peek(key K) (*S, bool) {
	st, ok := s.states[key]
	return st, ok
}

// Invalidate drops the state of key. The next Get recreates it.
func (s *Store[K, S]) Invalidate(key K) { delete(s.states, key) }

// Len returns the number of keys with state.
func (s *Store[K, S]) Len() int { return len(s.states) }

// Handle follows the key of one rendered slot and resolves its state only
// when the key changes.
type Handle[K comparable, S any] struct {
	store *Store[K, S]
	key   K
	state *S
}

// Handle returns a handle bound to no key.
func (s *Store[K, S]) Handle() *Handle[K, S] {
	return &Handle[K, S]{store: s}
}

// Sync points the handle at key and returns its state. changed reports
// whether the key differs from the previous call.
func (h *Handle[K, S]) Sync(key K) (state *S, changed bool, err error) {
	if h.state != nil && h.key == key {
		return h.state, false, nil
	}
	st, err := h.store.Get(key)
	if err != nil {
		return nil, false, err
	}
	h.key, h.state = key, st
	return st, true, nil
}

// State returns the state of the current key, nil before the first Sync.
func (h *Handle[K, S]) State() *S { return h.state }
