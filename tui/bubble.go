package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/style"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
	"github.com/subloop-cli/subloop/util"
)

const eventBuffer = 256

// statefulBubble is the dashboard model. Everything it shows arrives as
// messages from the session; it never reads session state directly.
type statefulBubble struct {
	state    state
	previous state

	keymap *statefulKeymap

	// components
	spinnerC  spinner.Model
	progressC progress.Model
	loopsC    list.Model
	helpC     help.Model

	events chan tea.Msg

	info       mo.Option[tracker.Info]
	cues       map[session.Slot][]subsync.ActiveCue
	tracks     map[session.Slot]string
	loop       mo.Option[segment.ActiveLoop]
	markIn     mo.Option[float64]
	lastError  *recovery.Error
	errors     *util.Ring[*recovery.Error]
	breaker    recovery.BreakerState
	navigation mo.Option[navigation.Event]
	status     string

	width, height int

	options *Options
}

func (b *statefulBubble) raiseError(err *recovery.Error) {
	b.lastError = err
	b.newState(errorState)
}

func (b *statefulBubble) setState(s state) {
	b.state = s
	b.keymap.setState(s)
}

// newState moves to s, remembering where to go back to.
func (b *statefulBubble) newState(s state) {
	if b.state == s {
		return
	}
	b.previous = b.state
	b.setState(s)
}

func (b *statefulBubble) previousState() {
	b.setState(b.previous)
	b.previous = dashboardState
}

func (b *statefulBubble) resize(width, height int) {
	x, y := paddingStyle.GetFrameSize()
	xx, yy := listExtraPaddingStyle.GetFrameSize()

	listWidth := width - xx
	listHeight := height - yy

	b.loopsC.SetSize(listWidth, listHeight)
	b.loopsC.Help.Width = listWidth

	b.width = width - x
	b.height = height - y
	b.progressC.Width = b.width
	b.helpC.Width = listWidth
}

// do runs f against the session on its goroutine. Failures reach the
// dashboard through the error topic.
func (b *statefulBubble) do(f func(s *session.Session) error) {
	s := b.options.Session
	b.options.Post(func() {
		_ = f(s)
	})
}

func (b *statefulBubble) position() float64 {
	info, ok := b.info.Get()
	if !ok {
		return 0
	}
	return info.Metadata.CurrentTime
}

func newBubble(options *Options) *statefulBubble {
	if options.Bookmarks == nil {
		options.Bookmarks = &segment.Bookmarks{}
	}

	keymap := newStatefulKeymap()
	bubble := statefulBubble{
		keymap:  keymap,
		events:  make(chan tea.Msg, eventBuffer),
		cues:    make(map[session.Slot][]subsync.ActiveCue),
		tracks:  make(map[session.Slot]string),
		errors:  util.NewRing[*recovery.Error](5),
		options: options,
	}

	bubble.helpC = help.New()

	bubble.spinnerC = spinner.New()
	bubble.spinnerC.Spinner = spinner.Dot
	bubble.spinnerC.Style = lipgloss.NewStyle().Foreground(style.AccentColor)

	bubble.progressC = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(style.AccentColor).
		Foreground(style.AccentColor).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedTitle

	bubble.loopsC = list.New([]list.Item{}, delegate, 0, 0)
	bubble.loopsC.KeyMap = keymap.forList()
	bubble.loopsC.AdditionalShortHelpKeys = keymap.ShortHelp
	bubble.loopsC.AdditionalFullHelpKeys = func() []bubblesKey.Binding {
		return keymap.FullHelp()[0]
	}
	bubble.loopsC.Title = "Saved Loops"
	bubble.loopsC.Styles.Title = lipgloss.NewStyle().Foreground(style.Base).Background(style.Peach).Padding(0, 1)
	bubble.loopsC.Styles.NoItems = paddingStyle
	bubble.loopsC.StatusMessageLifetime = 3 * time.Second
	bubble.loopsC.SetShowStatusBar(false)
	bubble.loopsC.SetStatusBarItemName("loop", "loops")
	bubble.reloadLoops()

	if w, h, err := util.TerminalSize(); err == nil {
		bubble.resize(w, h)
	}

	return &bubble
}

func (b *statefulBubble) reloadLoops() tea.Cmd {
	items := lo.Map(b.options.Bookmarks.Loops, func(bm segment.Bookmark, _ int) list.Item {
		return &listItem{internal: bm}
	})
	return b.loopsC.SetItems(items)
}
