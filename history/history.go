// Package history persists the preserved playback state of every video so a
// later session can resume it.
package history

import (
	"errors"
	"slices"
	"sync"

	"github.com/metafates/gache"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/subloop-cli/subloop/filesystem"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/where"
)

// MaxEntries bounds the store; the least recently preserved videos are evicted.
const MaxEntries = 500

// ErrNoVideoID is returned when saving state that names no video.
var ErrNoVideoID = errors.New("preserved state has no video id")

// Store is a disk-backed registry of preserved state keyed by video id.
type Store struct {
	mu     sync.Mutex
	cacher *gache.Cache[map[string]navigation.PreservedState]
}

// New opens the store at path on the swappable filesystem backend.
func New(path string) *Store {
	return &Store{
		cacher: gache.New[map[string]navigation.PreservedState](
			&gache.Options{
				Path:       path,
				FileSystem: &filesystem.GacheFs{},
			},
		),
	}
}

// Default opens the store in the user's cache directory.
func Default() *Store {
	return New(where.History())
}

func (s *Store) all() (map[string]navigation.PreservedState, error) {
	cached, expired, err := s.cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]navigation.PreservedState), nil
	}
	return cached, nil
}

// Save records state under its video id, replacing what was there.
func (s *Store) Save(state navigation.PreservedState) error {
	if state.VideoID == "" {
		return ErrNoVideoID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.all()
	if err != nil {
		return err
	}
	saved[state.VideoID] = state

	if len(saved) > MaxEntries {
		entries := newestFirst(lo.Values(saved))
		for _, stale := range entries[MaxEntries:] {
			delete(saved, stale.VideoID)
		}
	}

	return s.cacher.Set(saved)
}

// Get returns the state preserved for videoID. A read failure is logged and
// treated as nothing stored.
func (s *Store) Get(videoID string) mo.Option[navigation.PreservedState] {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.all()
	if err != nil {
		log.For("history").WithError(err).Warn("reading history")
		return mo.None[navigation.PreservedState]()
	}

	state, ok := saved[videoID]
	if !ok {
		return mo.None[navigation.PreservedState]()
	}
	return mo.Some(state)
}

// Remove forgets videoID.
func (s *Store) Remove(videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.all()
	if err != nil {
		return err
	}
	if _, ok := saved[videoID]; !ok {
		return nil
	}

	delete(saved, videoID)
	return s.cacher.Set(saved)
}

// List returns every entry, most recently preserved first.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.all()
	if err != nil {
		return nil, err
	}

	return lo.Map(newestFirst(lo.Values(saved)), func(state navigation.PreservedState, _ int) Entry {
		return Entry{state}
	}), nil
}

// Clear forgets everything.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cacher.Set(make(map[string]navigation.PreservedState))
}

func newestFirst(states []navigation.PreservedState) []navigation.PreservedState {
	slices.SortFunc(states, func(a, b navigation.PreservedState) int {
		return b.PreservedAt.Compare(a.PreservedAt)
	})
	return states
}
