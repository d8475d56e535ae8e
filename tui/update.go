package tui

import (
	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subsync"
)

func (b *statefulBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil
	case spinner.TickMsg:
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		return b, cmd
	case doneMsg:
		return b, tea.Quit
	case playerMsg, cueMsg, loopMsg, navigationMsg, errorMsg, breakerMsg:
		b.apply(msg)
		return b, b.waitForEvent()
	case tea.KeyMsg:
		if bubblesKey.Matches(msg, b.keymap.forceQuit) {
			return b, tea.Quit
		}
	}

	switch b.state {
	case dashboardState:
		return b.updateDashboard(msg)
	case loopsState:
		return b.updateLoops(msg)
	case errorState:
		return b.updateError(msg)
	}

	return b, nil
}

// apply folds a session event into the model.
func (b *statefulBubble) apply(msg tea.Msg) {
	switch msg := msg.(type) {
	case playerMsg:
		b.info = mo.Some(msg.Current)
	case cueMsg:
		b.applyCue(msg)
	case loopMsg:
		if msg.Type == segment.LoopEnd {
			b.loop = mo.None[segment.ActiveLoop]()
		} else {
			b.loop = mo.Some(msg.Loop)
		}
	case navigationMsg:
		b.navigation = mo.Some(navigation.Event(msg))
		b.markIn = mo.None[float64]()
	case errorMsg:
		b.errors.Push(msg.err)
		if msg.err.Severity >= recovery.Critical {
			b.raiseError(msg.err)
		}
	case breakerMsg:
		b.breaker = recovery.BreakerState(msg)
	}
}

func (b *statefulBubble) applyCue(msg cueMsg) {
	e := msg.event
	switch e.Type {
	case subsync.TrackChange:
		b.cues[msg.slot] = nil
		b.tracks[msg.slot] = ""
		if e.Track != nil {
			b.tracks[msg.slot] = e.Track.Name()
		}
	case subsync.CueUpdate:
		b.cues[msg.slot] = e.Active
	case subsync.CueStart:
		if !lo.ContainsBy(b.cues[msg.slot], func(c subsync.ActiveCue) bool { return c.ID == e.Cue.ID }) {
			b.cues[msg.slot] = append(b.cues[msg.slot], *e.Cue)
		}
	case subsync.CueEnd:
		b.cues[msg.slot] = lo.Reject(b.cues[msg.slot], func(c subsync.ActiveCue, _ int) bool { return c.ID == e.Cue.ID })
	}
}

func (b *statefulBubble) updateDashboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return b, nil
	}

	b.status = ""
	switch {
	case bubblesKey.Matches(keyMsg, b.keymap.quit):
		return b, tea.Quit
	case bubblesKey.Matches(keyMsg, b.keymap.playPause):
		b.togglePlay()
	case bubblesKey.Matches(keyMsg, b.keymap.seekBack):
		b.seekBy(-seekStep)
	case bubblesKey.Matches(keyMsg, b.keymap.seekForward):
		b.seekBy(seekStep)
	case bubblesKey.Matches(keyMsg, b.keymap.slower):
		b.changeRate(-rateStep)
	case bubblesKey.Matches(keyMsg, b.keymap.faster):
		b.changeRate(rateStep)
	case bubblesKey.Matches(keyMsg, b.keymap.volumeDown):
		b.changeVolume(-volumeStep)
	case bubblesKey.Matches(keyMsg, b.keymap.volumeUp):
		b.changeVolume(volumeStep)
	case bubblesKey.Matches(keyMsg, b.keymap.mute):
		b.toggleMute()
	case bubblesKey.Matches(keyMsg, b.keymap.markIn):
		b.markIn = mo.Some(b.position())
	case bubblesKey.Matches(keyMsg, b.keymap.markOut):
		b.closeLoop()
	case bubblesKey.Matches(keyMsg, b.keymap.toggleLoop):
		b.toggleLoop()
	case bubblesKey.Matches(keyMsg, b.keymap.stopLoop):
		b.stopLoop()
	case bubblesKey.Matches(keyMsg, b.keymap.saveLoop):
		return b, b.saveLoop()
	case bubblesKey.Matches(keyMsg, b.keymap.loops):
		b.newState(loopsState)
	case bubblesKey.Matches(keyMsg, b.keymap.subEarlier):
		b.shiftSubtitles(-shiftStep)
	case bubblesKey.Matches(keyMsg, b.keymap.subLater):
		b.shiftSubtitles(shiftStep)
	case bubblesKey.Matches(keyMsg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
	}

	return b, nil
}

func (b *statefulBubble) updateLoops(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case bubblesKey.Matches(keyMsg, b.keymap.back):
			b.previousState()
			return b, nil
		case bubblesKey.Matches(keyMsg, b.keymap.confirm):
			item, ok := b.loopsC.SelectedItem().(*listItem)
			if !ok {
				return b, nil
			}
			if bm, ok := item.internal.(segment.Bookmark); ok {
				b.loopBookmark(bm)
			}
			b.previousState()
			return b, nil
		case bubblesKey.Matches(keyMsg, b.keymap.remove):
			return b, b.removeBookmark(b.loopsC.Index())
		}
	}

	b.loopsC, cmd = b.loopsC.Update(msg)
	return b, cmd
}

func (b *statefulBubble) updateError(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case bubblesKey.Matches(keyMsg, b.keymap.back):
			b.previousState()
		case bubblesKey.Matches(keyMsg, b.keymap.quit):
			return b, tea.Quit
		}
	}
	return b, nil
}
