package navigation

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/subloop-cli/subloop/clock"
)

type preserved struct {
	state   PreservedState
	expires time.Time
	gc      clock.Handle
}

// store is a time-boxed map of preserved states keyed by video id.
// Entries are collected by a timer and also checked on read, so a late timer never leaks a stale state.
type store struct {
	clock   clock.Clock
	entries map[string]*preserved
}

func newStore(clk clock.Clock) *store {
	return &store{clock: clk, entries: make(map[string]*preserved)}
}

func (s *store) put(state PreservedState, ttl time.Duration) {
	s.drop(state.VideoID)

	entry := &preserved{state: state, expires: s.clock.Now().Add(ttl)}
	id := state.VideoID
	entry.gc = s.clock.AfterFunc(ttl, func() {
		if cur, ok := s.entries[id]; ok && cur == entry {
			delete(s.entries, id)
		}
	})
	s.entries[id] = entry
}

func (s *store) take(id string) mo.Option[PreservedState] {
	entry, ok := s.entries[id]
	if !ok {
		return mo.None[PreservedState]()
	}
	s.drop(id)

	if !s.clock.Now().Before(entry.expires) {
		return mo.None[PreservedState]()
	}
	return mo.Some(entry.state)
}

func (s *store) drop(id string) {
	if entry, ok := s.entries[id]; ok {
		clock.Stop(entry.gc)
		delete(s.entries, id)
	}
}

func (s *store) keys() []string {
	now := s.clock.Now()
	live := lo.PickBy(s.entries, func(_ string, e *preserved) bool {
		return now.Before(e.expires)
	})
	keys := lo.Keys(live)
	slices.Sort(keys)
	return keys
}

func (s *store) clear() {
	for id := range s.entries {
		s.drop(id)
	}
}
