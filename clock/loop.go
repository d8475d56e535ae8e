package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const loopQueueSize = 256

// Loop is the real-time Clock. Callbacks are queued and executed in order on
// the goroutine that calls Run.
type Loop struct {
	queue chan func()

	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	running atomic.Bool
}

// NewLoop creates an idle loop. Nothing is dispatched until Run is called.
func NewLoop() *Loop {
	return &Loop{
		queue: make(chan func(), loopQueueSize),
		done:  make(chan struct{}),
	}
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post enqueues f. Posting to a closed loop is a no-op.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	select {
	case l.queue <- f:
	case <-l.done:
	}
}

// AfterFunc schedules f on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, f func()) Handle {
	h := &loopHandle{}
	h.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if h.stopped.Load() {
				return
			}
			f()
		})
	})
	return h
}

// Every schedules f on the loop at a fixed interval.
func (l *Loop) Every(d time.Duration, f func()) Handle {
	h := &loopHandle{stop: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(func() {
					if h.stopped.Load() {
						return
					}
					f()
				})
			}
		}
	}()

	return h
}

// Run dispatches queued callbacks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return nil
	}
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case f := <-l.queue:
			f()
		}
	}
}

// Close stops dispatching. Pending callbacks are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}

type loopHandle struct {
	timer   *time.Timer
	stop    chan struct{}
	stopped atomic.Bool
}

func (h *loopHandle) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.stop != nil {
		close(h.stop)
	}
}
