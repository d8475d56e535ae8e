package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/subloop-cli/subloop/style"
)

// statefulKeymap holds every binding; help() picks the ones that apply to the current state.
type statefulKeymap struct {
	state state

	quit, forceQuit,
	playPause,
	seekBack, seekForward,
	slower, faster,
	volumeDown, volumeUp, mute,
	markIn, markOut, toggleLoop, stopLoop, saveLoop, loops,
	subEarlier, subLater,
	confirm, remove, back,
	up, down, top, bottom,
	showHelp key.Binding
}

func (k *statefulKeymap) setState(newState state) {
	k.state = newState
}

func newStatefulKeymap() *statefulKeymap {
	return &statefulKeymap{
		quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		forceQuit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		playPause: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp(style.Fg(style.Peach)("space"), style.Fg(style.Peach)("play/pause")),
		),
		seekBack: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "-5s"),
		),
		seekForward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "+5s"),
		),
		slower: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "slower"),
		),
		faster: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "faster"),
		),
		volumeDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓", "volume down"),
		),
		volumeUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑", "volume up"),
		),
		mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		markIn: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "loop from here"),
		),
		markOut: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "loop to here"),
		),
		toggleLoop: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle loop"),
		),
		stopLoop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop loop"),
		),
		saveLoop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save loop"),
		),
		loops: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "saved loops"),
		),
		subEarlier: key.NewBinding(
			key.WithKeys(","),
			key.WithHelp(",", "subs earlier"),
		),
		subLater: key.NewBinding(
			key.WithKeys("."),
			key.WithHelp(".", "subs later"),
		),
		confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "loop it"),
		),
		remove: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "remove"),
		),
		back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓", "down"),
		),
		top: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "top"),
		),
		bottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "bottom"),
		),
		showHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k *statefulKeymap) help() ([]key.Binding, []key.Binding) {
	h := func(bindings ...key.Binding) []key.Binding {
		return bindings
	}

	to2 := func(a []key.Binding) ([]key.Binding, []key.Binding) {
		return a, a
	}

	switch k.state {
	case dashboardState:
		return h(k.playPause, k.markIn, k.markOut, k.loops, k.showHelp, k.quit),
			h(k.playPause, k.seekBack, k.seekForward, k.slower, k.faster, k.volumeUp, k.volumeDown, k.mute,
				k.markIn, k.markOut, k.toggleLoop, k.stopLoop, k.saveLoop, k.loops, k.subEarlier, k.subLater, k.quit)
	case loopsState:
		return to2(h(k.confirm, k.remove, k.back))
	case errorState:
		return to2(h(k.back, k.quit))
	default:
		return to2(h())
	}
}

func (k *statefulKeymap) ShortHelp() []key.Binding {
	short, _ := k.help()
	return short
}

func (k *statefulKeymap) FullHelp() [][]key.Binding {
	_, full := k.help()
	return [][]key.Binding{full}
}

func (k *statefulKeymap) forList() list.KeyMap {
	return list.KeyMap{
		CursorUp:      k.up,
		CursorDown:    k.down,
		GoToStart:     k.top,
		GoToEnd:       k.bottom,
		ShowFullHelp:  k.showHelp,
		CloseFullHelp: k.showHelp,
		Quit:          k.quit,
		ForceQuit:     k.forceQuit,
	}
}
