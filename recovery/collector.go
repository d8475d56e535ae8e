package recovery

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// maxContexts bounds the context samples kept per entry.
const maxContexts = 10

// Entry aggregates every occurrence of one (code, message) pair.
type Entry struct {
	Error     *Error           `json:"error"`
	Count     int              `json:"count"`
	FirstSeen time.Time        `json:"firstSeen"`
	LastSeen  time.Time        `json:"lastSeen"`
	Contexts  []map[string]any `json:"contexts,omitempty"`
}

type entryKey struct {
	code    Code
	message string
}

// Collector deduplicates errors for diagnostics.
type Collector struct {
	maxUnique int
	window    time.Duration
	entries   map[entryKey]*Entry
}

// NewCollector creates a collector bounded to maxUnique entries within window.
func NewCollector(maxUnique int, window time.Duration) *Collector {
	return &Collector{
		maxUnique: maxUnique,
		window:    window,
		entries:   make(map[entryKey]*Entry),
	}
}

// Record counts err at now and returns a copy of its entry.
func (c *Collector) Record(err *Error, now time.Time) Entry {
	c.prune(now)

	k := entryKey{code: err.Code, message: err.Message}
	e, ok := c.entries[k]
	if !ok {
		e = &Entry{Error: err.clone(), FirstSeen: now}
		c.entries[k] = e
	}

	e.Count++
	e.LastSeen = now
	if len(err.Context) > 0 {
		e.Contexts = append(e.Contexts, lo.Assign(err.Context))
		if over := len(e.Contexts) - maxContexts; over > 0 {
			e.Contexts = e.Contexts[over:]
		}
	}

	c.evict(k)
	return *e
}

// prune drops entries not seen within the window.
func (c *Collector) prune(now time.Time) {
	cutoff := now.Add(-c.window)
	for k, e := range c.entries {
		if e.LastSeen.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}

// evict drops the least recently seen entries beyond the bound, never keep.
func (c *Collector) evict(keep entryKey) {
	for len(c.entries) > c.maxUnique {
		var (
			oldest entryKey
			found  bool
		)
		for k, e := range c.entries {
			if k == keep {
				continue
			}
			if !found || e.LastSeen.Before(c.entries[oldest].LastSeen) {
				oldest, found = k, true
			}
		}
		if !found {
			return
		}
		delete(c.entries, oldest)
	}
}

// Entries returns copies of all entries, most recently seen first.
func (c *Collector) Entries() []Entry {
	out := lo.MapToSlice(c.entries, func(_ entryKey, e *Entry) Entry { return *e })
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Len reports the number of unique entries.
func (c *Collector) Len() int {
	return len(c.entries)
}

// Resize updates the bounds, evicting as needed.
func (c *Collector) Resize(maxUnique int, window time.Duration) {
	c.maxUnique, c.window = maxUnique, window
	c.evict(entryKey{})
}

// Reset forgets everything.
func (c *Collector) Reset() {
	c.entries = make(map[entryKey]*Entry)
}
