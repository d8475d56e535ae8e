package tui

import (
	"context"
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/mo"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
	"github.com/subloop-cli/subloop/util"
)

const (
	seekStep   = 5.0
	rateStep   = 0.25
	volumeStep = 0.05
	shiftStep  = 0.1
)

type (
	playerMsg     tracker.Update
	loopMsg       segment.Event
	navigationMsg navigation.Event
	errorMsg      struct{ err *recovery.Error }
	breakerMsg    recovery.BreakerState
	doneMsg       struct{}
)

type cueMsg struct {
	slot  session.Slot
	event subsync.Event
}

// subscribe forwards session events into the dashboard. Handlers run on the
// session goroutine and never block it: when the buffer is full the event is
// dropped.
func (b *statefulBubble) subscribe(s *session.Session) (detach func()) {
	logger := log.For("tui")
	send := func(msg tea.Msg) {
		select {
		case b.events <- msg:
		default:
			logger.Debugf("dropped %T", msg)
		}
	}

	unsubs := []func(){
		s.PlayerChanges().Subscribe(func(u tracker.Update) { send(playerMsg(u)) }),
		s.SegmentLoop().Subscribe(func(e segment.Event) { send(loopMsg(e)) }),
		s.Navigation().Subscribe(func(e navigation.Event) { send(navigationMsg(e)) }),
		s.ObservedErrors().Subscribe(func(e *recovery.Error) { send(errorMsg{e}) }),
		s.Breaker().Changes().Subscribe(func(st recovery.BreakerState) { send(breakerMsg(st)) }),
	}
	for _, slot := range session.Slots {
		slot := slot
		unsubs = append(unsubs, s.SubtitleSync(slot).Subscribe(func(e subsync.Event) {
			send(cueMsg{slot: slot, event: e})
		}))
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (b *statefulBubble) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.options.Done:
			return doneMsg{}
		}
	}
}

func (b *statefulBubble) togglePlay() {
	b.do(func(s *session.Session) error {
		if s.State() == tracker.Playing || s.State() == tracker.Buffering {
			return s.Pause(context.Background())
		}
		return s.Play(context.Background())
	})
}

func (b *statefulBubble) seekBy(delta float64) {
	b.do(func(s *session.Session) error {
		info, ok := s.Current().Get()
		if !ok {
			return nil
		}
		return s.Seek(max(0, info.Metadata.CurrentTime+delta))
	})
}

func (b *statefulBubble) changeRate(delta float64) {
	b.do(func(s *session.Session) error {
		info, ok := s.Current().Get()
		if !ok {
			return nil
		}
		rate := util.Clamp(info.Metadata.PlaybackRate+delta, session.MinPlaybackRate, session.MaxPlaybackRate)
		return s.SetPlaybackRate(rate)
	})
}

func (b *statefulBubble) changeVolume(delta float64) {
	b.do(func(s *session.Session) error {
		info, ok := s.Current().Get()
		if !ok {
			return nil
		}
		return s.SetVolume(util.Clamp(info.Metadata.Volume+delta, 0, 1))
	})
}

func (b *statefulBubble) toggleMute() {
	b.do(func(s *session.Session) error {
		info, ok := s.Current().Get()
		if !ok {
			return nil
		}
		return s.SetMuted(!info.Metadata.Muted)
	})
}

// closeLoop loops from the marked position to the current one.
func (b *statefulBubble) closeLoop() {
	start, ok := b.markIn.Get()
	if !ok {
		b.status = "mark the loop start with [ first"
		return
	}

	end := b.position()
	if end < start {
		start, end = end, start
	}
	b.markIn = mo.None[float64]()

	b.do(func(s *session.Session) error {
		_, err := s.CreateSegmentLoop(segment.Loop{StartTime: start, EndTime: end})
		return err
	})
}

func (b *statefulBubble) toggleLoop() {
	loop, ok := b.loop.Get()
	if !ok {
		return
	}
	b.do(func(s *session.Session) error {
		if loop.Enabled {
			return s.DisableSegmentLoop()
		}
		return s.EnableSegmentLoop()
	})
}

func (b *statefulBubble) stopLoop() {
	b.do(func(s *session.Session) error {
		s.StopSegmentLoop()
		return nil
	})
}

// saveLoop adds the active loop to the bookmarks and writes them.
func (b *statefulBubble) saveLoop() tea.Cmd {
	loop, ok := b.loop.Get()
	if !ok {
		b.status = "no loop to save"
		return nil
	}

	b.options.Bookmarks.Add(loop.Loop)
	if path := b.options.BookmarksPath; path != "" {
		if err := segment.SaveBookmarks(path, b.options.Bookmarks); err != nil {
			b.status = fmt.Sprintf("saving loops: %v", err)
			return b.reloadLoops()
		}
	}
	b.status = fmt.Sprintf("saved %s", b.options.Bookmarks.Loops[len(b.options.Bookmarks.Loops)-1].Label)
	return b.reloadLoops()
}

func (b *statefulBubble) loopBookmark(bm segment.Bookmark) {
	b.do(func(s *session.Session) error {
		_, err := s.CreateSegmentLoop(bm.Loop())
		return err
	})
}

func (b *statefulBubble) removeBookmark(index int) tea.Cmd {
	bookmarks := b.options.Bookmarks
	if index < 0 || index >= len(bookmarks.Loops) {
		return nil
	}
	bookmarks.Loops = slices.Delete(bookmarks.Loops, index, index+1)

	if path := b.options.BookmarksPath; path != "" {
		if err := segment.SaveBookmarks(path, bookmarks); err != nil {
			b.status = fmt.Sprintf("saving loops: %v", err)
		}
	}
	return b.reloadLoops()
}

// shiftSubtitles moves the cues around the current position by delta seconds.
func (b *statefulBubble) shiftSubtitles(delta float64) {
	at := b.position()
	b.do(func(s *session.Session) error {
		return s.AdjustSubtitleTiming(at, delta)
	})
	b.status = fmt.Sprintf("subtitles %+.1fs around %s", delta, util.FormatTimestamp(at))
}
