// Package bus implements typed publish/subscribe topics, one per event category.
package bus

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/subloop-cli/subloop/log"
)

// Handler receives published values.
type Handler[T any] func(T)

type subscriber[T any] struct {
	id uint64
	fn Handler[T]
}

// Topic fans a value out to every subscriber.
//
// Dispatch iterates the subscriber list captured at publish time, so a
// subscriber removed during dispatch still receives the in-flight value and
// one added during dispatch does not. A panicking subscriber is recovered
// and the rest still run.
type Topic[T any] struct {
	name string

	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
	closed bool
}

// New creates a named topic. The name only appears in logs.
func New[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

// Subscribe registers fn and returns a function that removes it. The returned function is idempotent.
func (t *Topic[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || fn == nil {
		return func() {}
	}

	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.subs = lo.Reject(t.subs, func(s subscriber[T], _ int) bool {
		return s.id == id
	})
}

// Publish delivers v to the current subscribers in subscription order.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	snapshot := append([]subscriber[T](nil), t.subs...)
	t.mu.Unlock()

	for _, s := range snapshot {
		t.deliver(s, v)
	}
}

func (t *Topic[T]) deliver(s subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			log.For("bus").
				WithField("topic", t.name).
				WithField("subscriber", s.id).
				Error(fmt.Sprintf("subscriber panicked: %v", r))
		}
	}()

	s.fn(v)
}

// Len reports the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close drops all subscribers. Later publishes and subscriptions are ignored.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.subs = nil
}
