package inline

import (
	"time"

	"github.com/subloop-cli/subloop/navigation"
)

// Kind names what a Record describes.
type Kind string

const (
	KindState      Kind = "state"
	KindPosition   Kind = "position"
	KindCue        Kind = "cue"
	KindLoop       Kind = "loop"
	KindNavigation Kind = "navigation"
	KindError      Kind = "error"
	KindBreaker    Kind = "breaker"
)

// Kinds lists every record kind.
var Kinds = []Kind{KindState, KindPosition, KindCue, KindLoop, KindNavigation, KindError, KindBreaker}

// Record is one line of output. Exactly one of the payload fields is set,
// named by Kind.
type Record struct {
	Time time.Time `json:"time" jsonschema:"description=When the record was produced."`
	Kind Kind      `json:"kind" jsonschema:"enum=state,enum=position,enum=cue,enum=loop,enum=navigation,enum=error,enum=breaker"`

	State      *State            `json:"state,omitempty"`
	Position   *Position         `json:"position,omitempty"`
	Cue        *Cue              `json:"cue,omitempty"`
	Loop       *Loop             `json:"loop,omitempty"`
	Navigation *navigation.Event `json:"navigation,omitempty"`
	Error      *Error            `json:"error,omitempty"`
	Breaker    *Breaker          `json:"breaker,omitempty"`
}

// State is a player state transition.
type State struct {
	From       string `json:"from" jsonschema:"enum=unstarted,enum=ended,enum=playing,enum=paused,enum=buffering,enum=unknown"`
	To         string `json:"to" jsonschema:"enum=unstarted,enum=ended,enum=playing,enum=paused,enum=buffering,enum=unknown"`
	DurationMs int64  `json:"durationMs" jsonschema:"description=Time spent in the previous state."`
	Trigger    string `json:"trigger"`
}

// Position is a committed player sample.
type Position struct {
	State        string  `json:"state"`
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	PlaybackRate float64 `json:"playbackRate"`
	Volume       float64 `json:"volume"`
	Muted        bool    `json:"muted"`
}

// Cue is a subtitle synchronizer event.
type Cue struct {
	Slot  string  `json:"slot" jsonschema:"enum=primary,enum=secondary"`
	Type  string  `json:"type" jsonschema:"enum=cue_start,enum=cue_end,enum=cue_update,enum=track_change"`
	Time  float64 `json:"time"`
	ID    string  `json:"id,omitempty"`
	Text  string  `json:"text,omitempty"`
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
	// Track is set on track changes: the new track's name, empty when cleared.
	Track string `json:"track,omitempty"`
	// Active holds the visible cue texts in display order on cue_update.
	Active []string `json:"active,omitempty"`
}

// Loop is a segment loop event.
type Loop struct {
	Type      string  `json:"type" jsonschema:"enum=loop_start,enum=loop_iteration,enum=loop_end,enum=loop_disabled,enum=loop_seek_outside"`
	ID        string  `json:"id"`
	Label     string  `json:"label,omitempty"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Iteration int     `json:"iteration"`
	Time      float64 `json:"time"`
	Reason    string  `json:"reason,omitempty"`
}

// Error is a classified error the core observed.
type Error struct {
	Code        string `json:"code"`
	Severity    string `json:"severity" jsonschema:"enum=low,enum=medium,enum=high,enum=critical"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	Retryable   bool   `json:"retryable"`
}

// Breaker is a circuit breaker state change.
type Breaker struct {
	State string `json:"state" jsonschema:"enum=closed,enum=open,enum=half-open"`
}
