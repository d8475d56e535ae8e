// Package util provides a collection of domain-agnostic utility functions and cross-platform helpers.
package util

// Ring is a bounded FIFO buffer. Pushing beyond capacity evicts the oldest element.
type Ring[T any] struct {
	items []T
	limit int
}

// NewRing creates a ring holding at most limit elements. A non-positive limit means one element.
func NewRing[T any](limit int) *Ring[T] {
	if limit <= 0 {
		limit = 1
	}
	return &Ring[T]{limit: limit}
}

// Push appends item and evicts from the front when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.items = append(r.items, item)
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append([]T(nil), r.items[over:]...)
	}
}

// Last returns the newest element.
func (r *Ring[T]) Last() (item T, ok bool) {
	if len(r.items) == 0 {
		return
	}
	return r.items[len(r.items)-1], true
}

// Items returns a copy of the buffer, oldest first.
func (r *Ring[T]) Items() []T {
	return append([]T(nil), r.items...)
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	return len(r.items)
}

// Limit returns the capacity.
func (r *Ring[T]) Limit() int {
	return r.limit
}

// Resize changes the capacity, trimming the oldest elements when shrinking.
func (r *Ring[T]) Resize(limit int) {
	if limit <= 0 {
		limit = 1
	}
	r.limit = limit
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append([]T(nil), r.items[over:]...)
	}
}

// Clear removes all elements.
func (r *Ring[T]) Clear() {
	r.items = nil
}
