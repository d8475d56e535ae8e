// Package player drives mpv through its JSON-IPC socket and presents it to the
// playback core as a media element and a navigation host.
//
// Host owns the connection. Every file mpv loads gets a fresh Element, so a
// playlist advance or loadfile looks to the core like the host replacing its
// media element.
package player

// Chapter is a timeline marker shown by mpv.
type Chapter struct {
	Title string  `json:"title"`
	Time  float64 `json:"time"`
}

// mpv names for the media properties.
const (
	propTimePos   = "time-pos"
	propDuration  = "duration"
	propSpeed     = "speed"
	propVolume    = "volume"
	propMute      = "mute"
	propPause     = "pause"
	propEOF       = "eof-reached"
	propCache     = "paused-for-cache"
	propWidth     = "width"
	propHeight    = "height"
	propPath      = "path"
	propPlaylist  = "playlist-pos"
	propChapters  = "chapter-list"
	maxMpvVolume  = 100.0
	seekFlagExact = "absolute+exact"
)
