package recovery

import (
	"time"

	"github.com/subloop-cli/subloop/bus"
	"github.com/subloop-cli/subloop/clock"
)

// BreakerState is the circuit breaker position.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s BreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Breaker trips after sustained high-severity failures.
//
// Closed counts High and Critical failures seen within the window; reaching
// the threshold opens it. After the timeout it becomes half-open with the
// counter reset to zero. A success while half-open closes it, a failure
// reopens it.
type Breaker struct {
	clock     clock.Clock
	threshold int
	window    time.Duration
	timeout   time.Duration

	state    BreakerState
	failures []time.Time
	openedAt time.Time
	timer    clock.Handle
	changes  *bus.Topic[BreakerState]
}

// NewBreaker creates a closed breaker.
func NewBreaker(clk clock.Clock, threshold int, window, timeout time.Duration) *Breaker {
	return &Breaker{
		clock:     clk,
		threshold: threshold,
		window:    window,
		timeout:   timeout,
		changes:   bus.New[BreakerState]("breaker"),
	}
}

// State returns the current position.
func (b *Breaker) State() BreakerState {
	return b.state
}

// Failures returns the number of counted failures inside the window.
func (b *Breaker) Failures() int {
	b.prune(b.clock.Now())
	return len(b.failures)
}

// OpenedAt returns when the breaker last opened.
func (b *Breaker) OpenedAt() time.Time {
	return b.openedAt
}

// Changes publishes every state transition.
func (b *Breaker) Changes() *bus.Topic[BreakerState] {
	return b.changes
}

// Allow reports whether a guarded call may proceed.
func (b *Breaker) Allow() bool {
	return b.state != Open
}

// Failure counts a failure of the given severity and reports whether it opened the breaker.
func (b *Breaker) Failure(severity Severity) bool {
	if severity < High {
		return false
	}

	now := b.clock.Now()
	switch b.state {
	case Open:
		return false
	case HalfOpen:
		b.open(now)
		return true
	}

	b.prune(now)
	b.failures = append(b.failures, now)
	if len(b.failures) >= b.threshold {
		b.open(now)
		return true
	}
	return false
}

// Success closes a half-open breaker.
func (b *Breaker) Success() {
	if b.state != HalfOpen {
		return
	}
	b.failures = nil
	b.transition(Closed)
}

// Reset closes the breaker and forgets all failures.
func (b *Breaker) Reset() {
	b.timer = clock.Stop(b.timer)
	b.failures = nil
	if b.state != Closed {
		b.transition(Closed)
	}
}

// Configure changes the policy without altering the current state.
func (b *Breaker) Configure(threshold int, window, timeout time.Duration) {
	b.threshold, b.window, b.timeout = threshold, window, timeout
}

// Stop cancels the pending half-open timer.
func (b *Breaker) Stop() {
	b.timer = clock.Stop(b.timer)
}

func (b *Breaker) open(now time.Time) {
	b.openedAt = now
	b.timer = clock.Stop(b.timer)
	b.timer = b.clock.AfterFunc(b.timeout, b.halfOpen)
	b.transition(Open)
}

func (b *Breaker) halfOpen() {
	b.timer = nil
	if b.state != Open {
		return
	}
	b.failures = nil
	b.transition(HalfOpen)
}

func (b *Breaker) transition(to BreakerState) {
	b.state = to
	b.changes.Publish(to)
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}
