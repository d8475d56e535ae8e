package player

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/subloop-cli/subloop/media"
)

// commander is the IPC surface an Element needs.
type commander interface {
	command(args ...any) (any, error)
}

// Element is one file loaded in mpv, seen as a media element.
// It detaches when mpv starts another file or the connection is lost.
type Element struct {
	id   string
	path string
	ipc  commander

	mu       sync.Mutex
	detached bool
	seeking  bool
	handlers map[media.EventType]map[int]media.Handler
	nextID   int
}

func newElement(ipc commander, path string) *Element {
	return &Element{
		id:       uuid.NewString(),
		path:     path,
		ipc:      ipc,
		handlers: make(map[media.EventType]map[int]media.Handler),
	}
}

func (e *Element) ID() string {
	return e.id
}

// Path is the file or URL this element was created for.
func (e *Element) Path() string {
	return e.path
}

func (e *Element) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.detached
}

// Get reads a property from mpv, converting units where mpv differs.
func (e *Element) Get(p media.Property) (any, error) {
	if !e.Ready() {
		return nil, media.ErrNotReady
	}

	switch p {
	case media.CurrentTime:
		v, err := e.get(propTimePos)
		if errors.Is(err, ErrUnavailable) {
			return nil, fmt.Errorf("%w: nothing is playing", media.ErrNotReady)
		}
		if err != nil {
			return nil, err
		}
		return cast.ToFloat64E(v)
	case media.Duration:
		return e.readFloat(propDuration)
	case media.PlaybackRate:
		return e.readFloat(propSpeed)
	case media.Volume:
		v, err := e.readFloat(propVolume)
		if err != nil {
			return nil, err
		}
		return v / maxMpvVolume, nil
	case media.Muted:
		return e.readBool(propMute)
	case media.Paused:
		return e.readBool(propPause)
	case media.Ended:
		return e.readBool(propEOF)
	case media.ReadyState:
		buffering, err := e.readBool(propCache)
		if err != nil {
			return nil, err
		}
		return lo.Ternary(buffering, media.HaveCurrentData, media.HaveEnoughData), nil
	case media.VideoWidth:
		return e.readInt(propWidth)
	case media.VideoHeight:
		return e.readInt(propHeight)
	case media.Src:
		return e.path, nil
	default:
		return nil, fmt.Errorf("%w: %s", media.ErrUnknownProperty, p)
	}
}

// Set writes a property. Seeks are exact; mpv reports their progress as
// seeking and seeked events.
func (e *Element) Set(p media.Property, v any) error {
	if !e.Ready() {
		return media.ErrNotReady
	}

	switch p {
	case media.CurrentTime:
		t, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		_, err = e.ipc.command("seek", t, seekFlagExact)
		return err
	case media.PlaybackRate:
		rate, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		return e.set(propSpeed, rate)
	case media.Volume:
		vol, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		return e.set(propVolume, vol*maxMpvVolume)
	case media.Muted:
		muted, err := cast.ToBoolE(v)
		if err != nil {
			return err
		}
		return e.set(propMute, muted)
	case media.Paused:
		paused, err := cast.ToBoolE(v)
		if err != nil {
			return err
		}
		return e.set(propPause, paused)
	default:
		if lo.Contains(media.Properties, p) {
			return fmt.Errorf("%w: %s", media.ErrReadOnly, p)
		}
		return fmt.Errorf("%w: %s", media.ErrUnknownProperty, p)
	}
}

// Play unpauses.
func (e *Element) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.Set(media.Paused, false)
}

// Pause pauses.
func (e *Element) Pause() error {
	return e.Set(media.Paused, true)
}

// Subscribe registers h for t.
func (e *Element) Subscribe(t media.EventType, h media.Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	if e.handlers[t] == nil {
		e.handlers[t] = make(map[int]media.Handler)
	}
	e.handlers[t][id] = h

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers[t], id)
	}
}

// emit dispatches t to its handlers in registration order.
func (e *Element) emit(t media.EventType) {
	e.mu.Lock()
	ids := lo.Keys(e.handlers[t])
	slices.Sort(ids)
	hs := lo.Map(ids, func(id int, _ int) media.Handler { return e.handlers[t][id] })
	e.mu.Unlock()

	for _, h := range hs {
		h(media.Event{Type: t, Source: e.id})
	}
}

// detach makes the element unusable and emits emptied. It is idempotent.
func (e *Element) detach() {
	e.mu.Lock()
	if e.detached {
		e.mu.Unlock()
		return
	}
	e.detached = true
	e.mu.Unlock()

	e.emit(media.EventEmptied)
}

// dispatch translates an mpv notification into media events.
func (e *Element) dispatch(msg Message) {
	if !e.Ready() {
		return
	}

	switch msg.Event {
	case "property-change":
		e.propertyChanged(msg.Name, msg.Data)
	case "seek":
		e.mu.Lock()
		e.seeking = true
		e.mu.Unlock()
		e.emit(media.EventSeeking)
	case "playback-restart":
		e.mu.Lock()
		wasSeeking := e.seeking
		e.seeking = false
		e.mu.Unlock()
		if wasSeeking {
			e.emit(media.EventSeeked)
			e.emit(media.EventTimeUpdate)
		}
	}
}

func (e *Element) propertyChanged(name string, data any) {
	switch name {
	case propTimePos:
		if data != nil {
			e.emit(media.EventTimeUpdate)
		}
	case propPause:
		e.emit(lo.Ternary(cast.ToBool(data), media.EventPause, media.EventPlay))
	case propSpeed:
		e.emit(media.EventRateChange)
	case propVolume, propMute:
		e.emit(media.EventVolumeChange)
	case propDuration:
		e.emit(media.EventDurationChange)
	case propEOF:
		if cast.ToBool(data) {
			e.emit(media.EventEnded)
		}
	case propCache:
		e.emit(lo.Ternary(cast.ToBool(data), media.EventWaiting, media.EventCanPlay))
	}
}

func (e *Element) get(name string) (any, error) {
	return e.ipc.command("get_property", name)
}

func (e *Element) set(name string, value any) error {
	_, err := e.ipc.command("set_property", name, value)
	return err
}

// readFloat reads a numeric property; an unavailable one reads as zero.
func (e *Element) readFloat(name string) (float64, error) {
	v, err := e.get(name)
	if errors.Is(err, ErrUnavailable) || (err == nil && v == nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(v)
}

func (e *Element) readInt(name string) (int, error) {
	v, err := e.get(name)
	if errors.Is(err, ErrUnavailable) || (err == nil && v == nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cast.ToIntE(v)
}

func (e *Element) readBool(name string) (bool, error) {
	v, err := e.get(name)
	if errors.Is(err, ErrUnavailable) || (err == nil && v == nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cast.ToBoolE(v)
}
