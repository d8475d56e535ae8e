// Package clock provides the time source and scheduler every core component runs on.
//
// The core is single-threaded and cooperative: timers, tickers and host events
// never run concurrently with each other. Loop enforces that for real time by
// funnelling every callback through one goroutine, and Fake does the same for
// tests by firing callbacks synchronously from Advance.
package clock

import "time"

// Clock is the scheduling capability injected into components.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc runs f once after d.
	AfterFunc(d time.Duration, f func()) Handle

	// Every runs f each d until the handle is stopped.
	Every(d time.Duration, f func()) Handle

	// Post schedules f to run on the clock's dispatch goroutine.
	Post(f func())
}

// Handle cancels a scheduled callback. Stop is idempotent.
type Handle interface {
	Stop()
}

// Stop cancels h if it is non-nil and returns nil so callers can clear their field in one statement:
//
//	m.ticker = clock.Stop(m.ticker)
func Stop(h Handle) Handle {
	if h != nil {
		h.Stop()
	}
	return nil
}

// Seconds converts a duration into fractional seconds, the unit media time is expressed in.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Duration converts fractional seconds into a duration.
func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
