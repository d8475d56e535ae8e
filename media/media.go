// Package media defines the capability contract of a host media element.
//
// Anything that can report playback properties, accept writes and emit
// playback events can back the core: the mpv driver in package player and
// FakeElement in this package are the two implementations.
package media

import (
	"context"
	"errors"
)

// Property names a readable or writable element attribute.
type Property string

const (
	CurrentTime  Property = "currentTime"  // float64 seconds, read/write
	Duration     Property = "duration"     // float64 seconds
	PlaybackRate Property = "playbackRate" // float64, read/write
	Volume       Property = "volume"       // float64 in [0, 1], read/write
	Muted        Property = "muted"        // bool, read/write
	Paused       Property = "paused"       // bool
	Ended        Property = "ended"        // bool
	ReadyState   Property = "readyState"   // int, see the HaveX constants
	VideoWidth   Property = "videoWidth"   // int
	VideoHeight  Property = "videoHeight"  // int
	Src          Property = "src"          // string
)

// Properties lists every known property.
var Properties = []Property{
	CurrentTime, Duration, PlaybackRate, Volume, Muted, Paused,
	Ended, ReadyState, VideoWidth, VideoHeight, Src,
}

// Writable reports whether p accepts Set.
func (p Property) Writable() bool {
	switch p {
	case CurrentTime, PlaybackRate, Volume, Muted, Paused:
		return true
	default:
		return false
	}
}

// Ready states, mirroring how much media data the host has buffered.
const (
	HaveNothing = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// EventType names a host playback event.
type EventType string

const (
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventSeeking        EventType = "seeking"
	EventSeeked         EventType = "seeked"
	EventTimeUpdate     EventType = "timeupdate"
	EventRateChange     EventType = "ratechange"
	EventVolumeChange   EventType = "volumechange"
	EventLoadedMetadata EventType = "loadedmetadata"
	EventDurationChange EventType = "durationchange"
	EventWaiting        EventType = "waiting"
	EventCanPlay        EventType = "canplay"
	EventEnded          EventType = "ended"
	EventEmptied        EventType = "emptied"
)

// Events lists every known event type.
var Events = []EventType{
	EventPlay, EventPause, EventSeeking, EventSeeked, EventTimeUpdate,
	EventRateChange, EventVolumeChange, EventLoadedMetadata,
	EventDurationChange, EventWaiting, EventCanPlay, EventEnded, EventEmptied,
}

// Event is a single notification from the host element.
type Event struct {
	Type   EventType
	Source string
}

// Handler consumes host events. Hosts may call it from any goroutine.
type Handler func(Event)

var (
	// ErrNotReady is returned when the element is detached or has lost its resource.
	ErrNotReady = errors.New("media element not ready")

	// ErrUnknownProperty is returned for property names the host does not understand.
	ErrUnknownProperty = errors.New("unknown media property")

	// ErrReadOnly is returned when writing a property that cannot be set.
	ErrReadOnly = errors.New("read-only media property")
)

// Element is the host media object the core drives.
type Element interface {
	// ID identifies the element instance. A replaced element has a new ID.
	ID() string

	// Get reads a property.
	Get(p Property) (any, error)

	// Set writes a property.
	Set(p Property, v any) error

	// Play resumes playback. Hosts may reject it.
	Play(ctx context.Context) error

	// Pause suspends playback.
	Pause() error

	// Subscribe registers h for events of type t and returns its remover.
	Subscribe(t EventType, h Handler) (unsubscribe func())

	// Ready reports whether the element can currently be controlled.
	Ready() bool
}

// Metadata is one consistent sample of every playback property.
type Metadata struct {
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	PlaybackRate float64 `json:"playbackRate"`
	Volume       float64 `json:"volume"`
	Muted        bool    `json:"muted"`
	Paused       bool    `json:"paused"`
	Ended        bool    `json:"ended"`
	ReadyState   int     `json:"readyState"`
	VideoWidth   int     `json:"videoWidth"`
	VideoHeight  int     `json:"videoHeight"`
	Src          string  `json:"src"`
}
