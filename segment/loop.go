// Package segment repeats a range of the media by seeking back whenever playback reaches its end.
package segment

import (
	"time"

	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/util"
)

// Loop is the closed-open range [StartTime, EndTime) plus its repeat policy.
// LoopCount 0 repeats until stopped.
type Loop struct {
	ID        string  `json:"id"`
	Label     string  `json:"label,omitempty"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	LoopCount int     `json:"loopCount,omitempty"`
	Enabled   bool    `json:"enabled"`
}

// Length of the range in seconds.
func (l Loop) Length() float64 {
	return l.EndTime - l.StartTime
}

// Contains reports whether t lies in [StartTime, EndTime).
func (l Loop) Contains(t float64) bool {
	return t >= l.StartTime && t < l.EndTime
}

// Validate checks the range invariants.
func (l Loop) Validate() error {
	if !util.Finite(l.StartTime) || !util.Finite(l.EndTime) {
		return recovery.New(recovery.InvalidTime, recovery.Low, "loop bounds must be finite").
			With("start", l.StartTime).
			With("end", l.EndTime)
	}
	if l.StartTime < 0 {
		return recovery.New(recovery.InvalidTime, recovery.Low, "loop start %.3f is negative", l.StartTime)
	}
	if l.EndTime <= l.StartTime {
		return recovery.New(recovery.ValidationError, recovery.Low, "loop end %.3f must be after start %.3f", l.EndTime, l.StartTime)
	}
	if l.LoopCount < 0 {
		return recovery.New(recovery.ValidationError, recovery.Low, "loop count %d is negative", l.LoopCount)
	}
	return nil
}

// ActiveLoop is the loop currently owned by the controller together with its runtime state.
// It is replaced as a whole on every change.
type ActiveLoop struct {
	Loop

	CurrentIteration int       `json:"currentIteration"`
	TotalIterations  int       `json:"totalIterations"`
	IsActive         bool      `json:"isActive"`
	TimeInLoop       float64   `json:"timeInLoop"`
	TimeRemaining    float64   `json:"timeRemaining"`
	CreatedAt        time.Time `json:"createdAt"`
	LastTriggeredAt  time.Time `json:"lastTriggeredAt,omitempty"`
}

// EventType names a loop event.
type EventType string

const (
	LoopStart       EventType = "loop_start"
	LoopIteration   EventType = "loop_iteration"
	LoopEnd         EventType = "loop_end"
	LoopDisabled    EventType = "loop_disabled"
	LoopSeekOutside EventType = "loop_seek_outside"
)

// Reasons attached to events.
const (
	ReasonCreated   = "created"
	ReasonEnabled   = "enabled"
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
	ReasonReplaced  = "replaced"
	ReasonUser      = "user"
	ReasonSafetyCap = "max_consecutive"
	ReasonSeek      = "seek_outside"
	ReasonLost      = "element_lost"
)

// Event is published on every loop transition.
type Event struct {
	Type   EventType  `json:"type"`
	Loop   ActiveLoop `json:"loop"`
	Reason string     `json:"reason,omitempty"`
	// Time is the playback position that triggered the event.
	Time float64 `json:"time"`
}
