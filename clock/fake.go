package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Time only moves through Advance,
// and due callbacks fire synchronously in deadline order. Posted callbacks
// are queued, possibly from other goroutines, and run on the goroutine that
// calls Flush or Advance.
type Fake struct {
	now    time.Time
	seq    int
	timers []*fakeTimer

	mu     sync.Mutex
	posted []func()
}

// NewFake returns a fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	return f.now
}

// Post queues fn until the next Flush or Advance.
func (f *Fake) Post(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, fn)
}

// Flush runs queued callbacks, including any they post, until the queue is empty.
func (f *Fake) Flush() {
	for {
		f.mu.Lock()
		queue := f.posted
		f.posted = nil
		f.mu.Unlock()

		if len(queue) == 0 {
			return
		}
		for _, fn := range queue {
			fn()
		}
	}
}

// AfterFunc registers a one-shot timer.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Handle {
	return f.add(d, 0, fn)
}

// Every registers a repeating timer.
func (f *Fake) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		d = time.Millisecond
	}
	return f.add(d, d, fn)
}

// Pending reports how many timers are still scheduled.
func (f *Fake) Pending() int {
	count := 0
	for _, t := range f.timers {
		if !t.stopped {
			count++
		}
	}
	return count
}

// Advance moves time forward by d, firing every timer that falls due on the way.
// Timers scheduled by callbacks are honored if they fall inside the window.
func (f *Fake) Advance(d time.Duration) {
	target := f.now.Add(d)
	f.Flush()

	for {
		next := f.nextDue(target)
		if next == nil {
			break
		}

		f.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			next.stopped = true
		}
		next.fn()
		f.Flush()
		f.compact()
	}

	f.now = target
}

func (f *Fake) add(d, every time.Duration, fn func()) Handle {
	f.seq++
	t := &fakeTimer{
		at:    f.now.Add(d),
		every: every,
		fn:    fn,
		seq:   f.seq,
	}
	f.timers = append(f.timers, t)
	return t
}

func (f *Fake) nextDue(limit time.Time) *fakeTimer {
	live := make([]*fakeTimer, 0, len(f.timers))
	for _, t := range f.timers {
		if !t.stopped && !t.at.After(limit) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}

	sort.SliceStable(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})
	return live[0]
}

func (f *Fake) compact() {
	kept := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	f.timers = kept
}

type fakeTimer struct {
	at      time.Time
	every   time.Duration
	fn      func()
	seq     int
	stopped bool
}

func (t *fakeTimer) Stop() {
	t.stopped = true
}
