// Package subsync keeps the set of visible subtitle cues consistent with the playback clock.
package subsync

import (
	"time"

	"github.com/subloop-cli/subloop/subtitle"
)

// ActiveCue is a cue inside the visibility window, annotated with the timing
// computed on the tick that produced it.
type ActiveCue struct {
	subtitle.Cue

	// IsActive is true inside [start, end]; false while only pre- or post-rolling.
	IsActive          bool    `json:"isActive"`
	TimeRemaining     float64 `json:"timeRemaining"`
	AdjustedStartTime float64 `json:"adjustedStartTime"`
	AdjustedEndTime   float64 `json:"adjustedEndTime"`
	DisplayOrder      int     `json:"displayOrder"`
}

// Adjustment is a learned timing correction: cues near Time are shifted by Delta seconds.
type Adjustment struct {
	Time  float64   `json:"time"`
	Delta float64   `json:"delta"`
	At    time.Time `json:"at"`
}

// EventType names a synchronizer event.
type EventType string

const (
	CueStart    EventType = "cue_start"
	CueEnd      EventType = "cue_end"
	CueUpdate   EventType = "cue_update"
	TrackChange EventType = "track_change"
)

// Event is published on every cue set change.
//
// Cue is set for cue_start and cue_end, Active for cue_update, Track for
// track_change (nil when the track was unloaded).
type Event struct {
	Type   EventType       `json:"type"`
	Time   float64         `json:"time"`
	Cue    *ActiveCue      `json:"cue,omitempty"`
	Active []ActiveCue     `json:"active,omitempty"`
	Track  *subtitle.Track `json:"track,omitempty"`
}

// Stats is a diagnostic snapshot.
type Stats struct {
	Track       string  `json:"track,omitempty"`
	Cues        int     `json:"cues"`
	Active      int     `json:"active"`
	Ticks       int     `json:"ticks"`
	Skipped     int     `json:"skipped"`
	Starts      int     `json:"starts"`
	Ends        int     `json:"ends"`
	Adjustments int     `json:"adjustments"`
	LastTime    float64 `json:"lastTime"`
}
