package session

import (
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/proxy"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
)

// Playback rate bounds accepted by SetPlaybackRate.
const (
	MinPlaybackRate = 0.25
	MaxPlaybackRate = 2.0
)

// Slot names a subtitle synchronizer.
type Slot string

const (
	Primary   Slot = "primary"
	Secondary Slot = "secondary"
)

// Slots lists every slot in display order.
var Slots = []Slot{Primary, Secondary}

// Config is the immutable settings value a session is built from.
// Components receive their part at construction and on UpdateConfig.
type Config struct {
	Proxy      proxy.Config
	Tracker    tracker.Config
	Sync       subsync.Config
	Loop       segment.Config
	Navigation navigation.Config
	Recovery   recovery.Config

	// Resume restores the last stored state of a video when it is opened.
	Resume bool
}

// DefaultConfig returns every component's stock settings.
func DefaultConfig() Config {
	return Config{
		Proxy:      proxy.DefaultConfig(),
		Tracker:    tracker.DefaultConfig(),
		Sync:       subsync.DefaultConfig(),
		Loop:       segment.DefaultConfig(),
		Navigation: navigation.DefaultConfig(),
		Recovery:   recovery.DefaultConfig(),
		Resume:     true,
	}
}
