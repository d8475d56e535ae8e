package media

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// FakeElement is a deterministic in-memory element for tests.
//
// Writes through Set are treated as programmatic and recorded in Seeks;
// SimulateSeek models a user scrubbing the timeline. Event handlers run
// synchronously on the caller's goroutine.
type FakeElement struct {
	mu sync.Mutex

	id       string
	meta     Metadata
	detached bool
	seeks    []float64
	handlers map[EventType]map[int]Handler
	nextID   int

	// PlayErr, when set, is returned by Play.
	PlayErr error
	// GetErr, when set, is returned by every Get.
	GetErr error
}

// NewFakeElement returns a paused, fully buffered element of the given duration.
func NewFakeElement(duration float64) *FakeElement {
	return &FakeElement{
		id: uuid.NewString(),
		meta: Metadata{
			Duration:     duration,
			PlaybackRate: 1,
			Volume:       1,
			Paused:       true,
			ReadyState:   HaveEnoughData,
			VideoWidth:   1920,
			VideoHeight:  1080,
			Src:          "fake://media",
		},
		handlers: make(map[EventType]map[int]Handler),
	}
}

func (f *FakeElement) ID() string {
	return f.id
}

func (f *FakeElement) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.detached
}

// Get reads a property.
func (f *FakeElement) Get(p Property) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.detached {
		return nil, ErrNotReady
	}
	if f.GetErr != nil {
		return nil, f.GetErr
	}

	switch p {
	case CurrentTime:
		return f.meta.CurrentTime, nil
	case Duration:
		return f.meta.Duration, nil
	case PlaybackRate:
		return f.meta.PlaybackRate, nil
	case Volume:
		return f.meta.Volume, nil
	case Muted:
		return f.meta.Muted, nil
	case Paused:
		return f.meta.Paused, nil
	case Ended:
		return f.meta.Ended, nil
	case ReadyState:
		return f.meta.ReadyState, nil
	case VideoWidth:
		return f.meta.VideoWidth, nil
	case VideoHeight:
		return f.meta.VideoHeight, nil
	case Src:
		return f.meta.Src, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, p)
	}
}

// Set writes a property and emits the event the host would.
func (f *FakeElement) Set(p Property, v any) error {
	f.mu.Lock()

	if f.detached {
		f.mu.Unlock()
		return ErrNotReady
	}

	var events []EventType
	switch p {
	case CurrentTime:
		t, err := cast.ToFloat64E(v)
		if err != nil {
			f.mu.Unlock()
			return err
		}
		f.seeks = append(f.seeks, t)
		f.meta.CurrentTime = t
		f.meta.Ended = false
		events = []EventType{EventSeeking, EventSeeked, EventTimeUpdate}
	case PlaybackRate:
		rate, err := cast.ToFloat64E(v)
		if err != nil {
			f.mu.Unlock()
			return err
		}
		f.meta.PlaybackRate = rate
		events = []EventType{EventRateChange}
	case Volume:
		vol, err := cast.ToFloat64E(v)
		if err != nil {
			f.mu.Unlock()
			return err
		}
		f.meta.Volume = vol
		events = []EventType{EventVolumeChange}
	case Muted:
		muted, err := cast.ToBoolE(v)
		if err != nil {
			f.mu.Unlock()
			return err
		}
		f.meta.Muted = muted
		events = []EventType{EventVolumeChange}
	case Paused:
		paused, err := cast.ToBoolE(v)
		if err != nil {
			f.mu.Unlock()
			return err
		}
		f.meta.Paused = paused
		events = []EventType{lo.Ternary(paused, EventPause, EventPlay)}
	default:
		f.mu.Unlock()
		if lo.Contains(Properties, p) {
			return fmt.Errorf("%w: %s", ErrReadOnly, p)
		}
		return fmt.Errorf("%w: %s", ErrUnknownProperty, p)
	}
	f.mu.Unlock()

	for _, e := range events {
		f.Emit(e)
	}
	return nil
}

// Play resumes playback unless PlayErr is set.
func (f *FakeElement) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.detached {
		f.mu.Unlock()
		return ErrNotReady
	}
	if f.PlayErr != nil {
		f.mu.Unlock()
		return f.PlayErr
	}
	f.meta.Paused = false
	f.meta.Ended = false
	f.mu.Unlock()

	f.Emit(EventPlay)
	return nil
}

// Pause suspends playback.
func (f *FakeElement) Pause() error {
	f.mu.Lock()
	if f.detached {
		f.mu.Unlock()
		return ErrNotReady
	}
	f.meta.Paused = true
	f.mu.Unlock()

	f.Emit(EventPause)
	return nil
}

// Subscribe registers h for t.
func (f *FakeElement) Subscribe(t EventType, h Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	if f.handlers[t] == nil {
		f.handlers[t] = make(map[int]Handler)
	}
	f.handlers[t][id] = h

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[t], id)
	}
}

// Listeners reports how many handlers are registered for t.
func (f *FakeElement) Listeners(t EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[t])
}

// Emit dispatches t to its handlers in registration order.
func (f *FakeElement) Emit(t EventType) {
	f.mu.Lock()
	ids := lo.Keys(f.handlers[t])
	slices.Sort(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, f.handlers[t][id])
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(Event{Type: t, Source: f.id})
	}
}

// Advance moves playback forward by d scaled by the playback rate while playing.
// Reaching the duration ends playback.
func (f *FakeElement) Advance(d time.Duration) {
	f.mu.Lock()
	if f.detached || f.meta.Paused || f.meta.Ended || f.meta.ReadyState < HaveFutureData {
		f.mu.Unlock()
		return
	}

	f.meta.CurrentTime += d.Seconds() * f.meta.PlaybackRate
	ended := false
	if f.meta.Duration > 0 && f.meta.CurrentTime >= f.meta.Duration {
		f.meta.CurrentTime = f.meta.Duration
		f.meta.Ended = true
		f.meta.Paused = true
		ended = true
	}
	f.mu.Unlock()

	f.Emit(EventTimeUpdate)
	if ended {
		f.Emit(EventEnded)
	}
}

// SetTime moves the playhead as natural playback would, without seek events.
func (f *FakeElement) SetTime(t float64) {
	f.mu.Lock()
	f.meta.CurrentTime = t
	f.mu.Unlock()

	f.Emit(EventTimeUpdate)
}

// SimulateSeek models a user seek: seeking, the jump, then seeked.
// It is not recorded in Seeks.
func (f *FakeElement) SimulateSeek(t float64) {
	f.Emit(EventSeeking)

	f.mu.Lock()
	f.meta.CurrentTime = t
	f.meta.Ended = false
	f.mu.Unlock()

	f.Emit(EventSeeked)
	f.Emit(EventTimeUpdate)
}

// SetReadyState changes the buffered state and emits waiting or canplay.
func (f *FakeElement) SetReadyState(state int) {
	f.mu.Lock()
	f.meta.ReadyState = state
	f.mu.Unlock()

	if state < HaveFutureData {
		f.Emit(EventWaiting)
	} else {
		f.Emit(EventCanPlay)
	}
}

// SetDimensions changes the reported video size.
func (f *FakeElement) SetDimensions(width, height int) {
	f.mu.Lock()
	f.meta.VideoWidth, f.meta.VideoHeight = width, height
	f.mu.Unlock()

	f.Emit(EventLoadedMetadata)
}

// Detach makes the element unusable, as if the host removed it.
func (f *FakeElement) Detach() {
	f.mu.Lock()
	f.detached = true
	f.mu.Unlock()

	f.Emit(EventEmptied)
}

// Seeks returns the programmatic seek targets written through Set.
func (f *FakeElement) Seeks() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeks...)
}

// Snapshot returns the current metadata regardless of readiness.
func (f *FakeElement) Snapshot() Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta
}
