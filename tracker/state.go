// Package tracker derives a discrete playback state from sampled media metadata and reports significant changes.
package tracker

import (
	"math"
	"time"

	"github.com/subloop-cli/subloop/media"
)

// State is the discrete playback state.
type State int

const (
	Unstarted State = iota
	Ended
	Playing
	Paused
	Buffering
	Unknown
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Ended:
		return "ended"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Buffering:
		return "buffering"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Derive computes the state from a metadata sample.
func Derive(m media.Metadata) State {
	switch {
	case m.Ended:
		return Ended
	case m.Paused:
		return Paused
	case m.ReadyState < media.HaveFutureData:
		return Buffering
	default:
		return Playing
	}
}

// Info is an immutable state snapshot.
type Info struct {
	State     State          `json:"state"`
	Metadata  media.Metadata `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// Changes flags which fields differ between two snapshots.
type Changes struct {
	State      bool `json:"state"`
	Time       bool `json:"time"`
	Duration   bool `json:"duration"`
	Rate       bool `json:"rate"`
	Volume     bool `json:"volume"`
	Mute       bool `json:"mute"`
	Dimensions bool `json:"dimensions"`
	ReadyState bool `json:"readyState"`
}

// Any reports whether at least one field changed.
func (c Changes) Any() bool {
	return c.State || c.Time || c.Duration || c.Rate || c.Volume || c.Mute || c.Dimensions || c.ReadyState
}

// all marks every field changed, used for the first sample.
func all() Changes {
	return Changes{true, true, true, true, true, true, true, true}
}

// CompareStates diffs two snapshots. Time, volume and dimension changes are
// only reported when their tracking flag is enabled and the delta reaches its threshold.
func CompareStates(prev, next Info, cfg Config) Changes {
	a, b := prev.Metadata, next.Metadata

	return Changes{
		State:      prev.State != next.State,
		Time:       cfg.TrackTime && math.Abs(b.CurrentTime-a.CurrentTime) >= cfg.TimeThreshold,
		Duration:   a.Duration != b.Duration,
		Rate:       a.PlaybackRate != b.PlaybackRate,
		Volume:     cfg.TrackVolume && math.Abs(b.Volume-a.Volume) >= cfg.VolumeThreshold,
		Mute:       a.Muted != b.Muted,
		Dimensions: cfg.TrackDimensions && (a.VideoWidth != b.VideoWidth || a.VideoHeight != b.VideoHeight),
		ReadyState: a.ReadyState != b.ReadyState,
	}
}

// Transition records a move between states and how long the previous state lasted.
type Transition struct {
	From     State         `json:"from"`
	To       State         `json:"to"`
	Duration time.Duration `json:"duration"`
	Trigger  string        `json:"trigger"`
}

// HistoryEntry is one committed sample.
type HistoryEntry struct {
	Info       Info        `json:"info"`
	Changes    Changes     `json:"changes"`
	Transition *Transition `json:"transition,omitempty"`
}

// Update is published for every committed sample.
type Update struct {
	Current  Info    `json:"current"`
	Previous *Info   `json:"previous,omitempty"`
	Changes  Changes `json:"changes"`
	Trigger  string  `json:"trigger"`
}
