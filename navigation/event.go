// Package navigation detects when the player moves to different media and
// holds playback state across that handoff for a short while.
//
// It owns no player. Hosts feed it signals through the optional interfaces in
// Host, and callers decide what to tear down and restore when an Event arrives.
package navigation

import (
	"time"

	"github.com/subloop-cli/subloop/segment"
)

// EventType names the signal that caused a navigation.
type EventType string

const (
	URLChange       EventType = "url_change"
	HistoryChange   EventType = "history"
	RouteChange     EventType = "route"
	ElementReplaced EventType = "element_replaced"
)

// priority decides which type a debounced burst of signals is reported as.
var priority = map[EventType]int{
	URLChange:       0,
	HistoryChange:   1,
	RouteChange:     2,
	ElementReplaced: 3,
}

// Event is one debounced navigation.
type Event struct {
	ID              string    `json:"id"`
	Type            EventType `json:"type"`
	FromURL         string    `json:"fromUrl,omitempty"`
	ToURL           string    `json:"toUrl"`
	VideoID         string    `json:"videoId,omitempty"`
	PreviousVideoID string    `json:"previousVideoId,omitempty"`
	PreserveState   bool      `json:"preserveState"`
	Timestamp       time.Time `json:"timestamp"`
}

// SameVideo reports whether the navigation stayed on the same media.
func (e Event) SameVideo() bool {
	return e.VideoID != "" && e.VideoID == e.PreviousVideoID
}

// PreservedState is the playback state carried across a navigation.
type PreservedState struct {
	VideoID        string        `json:"videoId"`
	URL            string        `json:"url,omitempty"`
	CurrentTime    float64       `json:"currentTime"`
	PlaybackRate   float64       `json:"playbackRate"`
	Volume         float64       `json:"volume"`
	Muted          bool          `json:"muted"`
	Paused         bool          `json:"paused"`
	SubtitleTrack  string        `json:"subtitleTrack,omitempty"`
	SecondaryTrack string        `json:"secondaryTrack,omitempty"`
	SubtitleOffset float64       `json:"subtitleOffset,omitempty"`
	ActiveLoop     *segment.Loop `json:"activeLoop,omitempty"`
	PreservedAt    time.Time     `json:"preservedAt"`
}
