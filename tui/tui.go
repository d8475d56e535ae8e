// Package tui renders the playback dashboard: the active cues of both
// subtitle slots, the player state, the active loop and the saved loops.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
)

// Options configure the dashboard.
type Options struct {
	// Session is the running playback core.
	Session *session.Session
	// Post runs f on the session's goroutine. Every command goes through it.
	Post func(f func())
	// Done is closed when playback ends; the dashboard then quits.
	Done <-chan struct{}

	// Title names the media in the header.
	Title string
	// Bookmarks are the saved loops. Saving a loop writes them to BookmarksPath.
	Bookmarks     *segment.Bookmarks
	BookmarksPath string
}

// Run shows the dashboard until the user quits or playback ends.
func Run(options *Options) error {
	bubble := newBubble(options)
	detach := bubble.subscribe(options.Session)
	defer detach()

	_, err := tea.NewProgram(bubble, tea.WithAltScreen()).Run()
	return err
}
