// Package session wires the playback core together and is the only API callers need.
//
// A Session owns one proxy, state tracker, pair of subtitle synchronizers,
// segment loop controller and navigation handler, all running on a single
// clock. It rebinds them when the host replaces its media and funnels every
// failure through one recovery manager.
package session

import (
	"context"
	"errors"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/bus"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/proxy"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
)

// ErrClosed is returned by commands issued after Shutdown.
var ErrClosed = errors.New("session is shut down")

// Source acquires the host media element. It is asked again whenever the
// element is replaced or becomes unavailable.
type Source interface {
	Acquire(ctx context.Context) (media.Element, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (media.Element, error)

// Acquire calls f.
func (f SourceFunc) Acquire(ctx context.Context) (media.Element, error) {
	return f(ctx)
}

// Store keeps preserved state beyond its in-memory lifetime. *history.Store satisfies it.
type Store interface {
	Save(state navigation.PreservedState) error
	Get(videoID string) mo.Option[navigation.PreservedState]
}

// Options configure New. Clock and Source are required.
type Options struct {
	Config Config
	Clock  clock.Clock
	Source Source
	Host   navigation.Host
	Store  Store
}

// Session is the playback core.
type Session struct {
	cfg    Config
	clock  clock.Clock
	source Source
	store  Store
	logger *logrus.Entry

	manager *recovery.Manager
	proxy   *proxy.Proxy
	tracker *tracker.Tracker
	subs    map[Slot]*subsync.Synchronizer
	loops   *segment.Controller
	nav     *navigation.Handler

	ctx       context.Context
	listeners []proxy.ListenerID
	last      mo.Option[media.Metadata]
	started   bool
	closed    bool
	rebinding bool
}

// New builds a session. Nothing runs until Start.
func New(opts Options) *Session {
	cfg, clk := opts.Config, opts.Clock

	manager := recovery.NewManager(cfg.Recovery, clk)
	p := proxy.New(cfg.Proxy, clk, manager)

	s := &Session{
		cfg:     cfg,
		clock:   clk,
		source:  opts.Source,
		store:   opts.Store,
		logger:  log.For("session"),
		manager: manager,
		proxy:   p,
		tracker: tracker.New(cfg.Tracker, clk, p, manager),
		subs:    make(map[Slot]*subsync.Synchronizer, len(Slots)),
		loops:   segment.New(cfg.Loop, clk, p, manager),
		nav:     navigation.New(cfg.Navigation, clk, opts.Host, manager),
		ctx:     context.Background(),
	}
	for _, slot := range Slots {
		s.subs[slot] = subsync.New(string(slot), cfg.Sync, clk, p, manager)
	}

	s.tracker.Changes().Subscribe(s.onPlayerChange)
	s.nav.Events().Subscribe(s.onNavigation)
	s.manager.Observed().Subscribe(s.onError)
	s.listeners = append(s.listeners,
		p.AddEventListener(media.EventSeeking, s.onSeeking),
		p.AddEventListener(media.EventSeeked, s.onSeeked),
	)

	return s
}

// Start acquires the element, starts every component and resumes stored state for the opened media.
// Calling Start on a started session does nothing.
func (s *Session) Start(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	s.ctx = ctx

	el, err := s.acquire()
	if err != nil {
		return err
	}
	s.bind(el)
	s.nav.Start()
	s.started = true

	if s.cfg.Resume {
		s.restore(s.nav.VideoID())
	}

	s.logger.WithField("video", s.nav.VideoID()).Info("session started")
	return nil
}

// Shutdown cancels the loop monitor, the synchronizers and the navigation
// debouncer, in that order, and only then unbinds the element. It is idempotent.
func (s *Session) Shutdown() {
	if s.closed {
		return
	}
	s.closed = true

	s.loops.Stop()
	for _, slot := range Slots {
		s.subs[slot].Stop()
	}
	s.nav.Stop()
	s.tracker.Stop()

	for _, id := range s.listeners {
		s.proxy.RemoveEventListener(id)
	}
	s.listeners = nil
	s.proxy.SetElement(nil)

	s.nav.ClearPreserved()
	s.manager.Close()
	s.started = false

	s.logger.Info("session shut down")
}

// Running reports whether the session is started and not shut down.
func (s *Session) Running() bool {
	return s.started && !s.closed
}

func (s *Session) acquire() (media.Element, error) {
	if s.source == nil {
		return nil, recovery.New(recovery.ElementNotFound, recovery.High, "no media source configured").Fatal()
	}

	el, err := s.source.Acquire(s.ctx)
	if err != nil {
		return nil, recovery.Lift(err, recovery.ElementNotFound, recovery.High)
	}
	if el == nil {
		return nil, recovery.New(recovery.ElementNotFound, recovery.High, "media source returned no element")
	}
	return el, nil
}

// bind attaches el and starts the components that sample it.
func (s *Session) bind(el media.Element) {
	s.proxy.SetElement(el)
	s.tracker.Start()
	for _, slot := range Slots {
		s.subs[slot].Start()
	}
	s.logger.WithField("element", el.ID()).Debug("element bound")
}

// unbind stops everything that samples the element, drops derived state and releases the element.
func (s *Session) unbind(keepTracks bool) {
	s.loops.Stop()
	for _, slot := range Slots {
		sync := s.subs[slot]
		sync.Stop()
		sync.Clear()
		if !keepTracks && sync.Track() != nil {
			sync.LoadTrack(nil)
		}
	}
	s.tracker.Stop()
	s.tracker.Reset()
	s.last = mo.None[media.Metadata]()
	s.proxy.SetElement(nil)
}

func (s *Session) onPlayerChange(u tracker.Update) {
	s.last = mo.Some(u.Current.Metadata)

	if u.Changes.Time || u.Changes.State {
		for _, slot := range Slots {
			s.subs[slot].Sync(u.Current.Metadata.CurrentTime)
		}
	}
}

// onSeeking holds the loop monitor back until the host reports where the seek landed.
func (s *Session) onSeeking(media.Event) {
	s.loops.BeginSeek()
}

// onSeeked hands every seek the host reports to the loop controller, which
// tells its own seeks apart from the user's.
func (s *Session) onSeeked(media.Event) {
	t, err := s.proxy.CurrentTime()
	if err != nil {
		if !recovery.HasCode(err, recovery.CircuitOpen) {
			s.manager.Handle(err)
		}
		return
	}

	s.loops.HandleSeek(t)
	for _, slot := range Slots {
		s.subs[slot].Sync(t)
	}
}

// onError forces re-acquisition when the element became unusable.
func (s *Session) onError(e *recovery.Error) {
	if e.Code != recovery.ElementUnavailable || !s.Running() || s.rebinding {
		return
	}
	s.logger.Debug("element unavailable, re-acquiring")
	s.nav.Signal(navigation.ElementReplaced, "")
}

// PlayerChanges publishes every committed player sample.
func (s *Session) PlayerChanges() *bus.Topic[tracker.Update] {
	return s.tracker.Changes()
}

// StateChanges publishes player state transitions.
func (s *Session) StateChanges() *bus.Topic[tracker.Transition] {
	return s.tracker.Transitions()
}

// SubtitleSync publishes cue events for slot.
func (s *Session) SubtitleSync(slot Slot) *bus.Topic[subsync.Event] {
	if sync, ok := s.subs[slot]; ok {
		return sync.Events()
	}
	return s.subs[Primary].Events()
}

// SegmentLoop publishes loop events.
func (s *Session) SegmentLoop() *bus.Topic[segment.Event] {
	return s.loops.Events()
}

// Navigation publishes navigation events.
func (s *Session) Navigation() *bus.Topic[navigation.Event] {
	return s.nav.Events()
}

// Errors publishes non-recoverable errors and the breaker opening.
func (s *Session) Errors() *bus.Topic[*recovery.Error] {
	return s.manager.Errors()
}

// ObservedErrors publishes every handled error.
func (s *Session) ObservedErrors() *bus.Topic[*recovery.Error] {
	return s.manager.Observed()
}

// Breaker exposes the circuit breaker state changes.
func (s *Session) Breaker() *recovery.Breaker {
	return s.manager.Breaker()
}

// Current returns the latest player snapshot.
func (s *Session) Current() mo.Option[tracker.Info] {
	return s.tracker.Current()
}

// State returns the current player state.
func (s *Session) State() tracker.State {
	return s.tracker.State()
}

// ActiveCues returns the cues visible in slot.
func (s *Session) ActiveCues(slot Slot) []subsync.ActiveCue {
	if sync, ok := s.subs[slot]; ok {
		return sync.Active()
	}
	return nil
}

// ActiveLoop returns the loop currently owned by the controller.
func (s *Session) ActiveLoop() mo.Option[segment.ActiveLoop] {
	return s.loops.Active()
}

// VideoID returns the identity of the current media.
func (s *Session) VideoID() string {
	return s.nav.VideoID()
}

// Config returns the current settings.
func (s *Session) Config() Config {
	return s.cfg
}

// Stats is a diagnostic snapshot of every component.
type Stats struct {
	State      tracker.State          `json:"state"`
	Video      string                 `json:"video,omitempty"`
	Recovery   recovery.Stats         `json:"recovery"`
	Subtitles  map[Slot]subsync.Stats `json:"subtitles"`
	Loop       *segment.ActiveLoop    `json:"loop,omitempty"`
	Navigation navigation.Stats       `json:"navigation"`
	History    []tracker.HistoryEntry `json:"-"`
}

// Stats collects diagnostics.
func (s *Session) Stats() Stats {
	stats := Stats{
		State:      s.tracker.State(),
		Video:      s.nav.VideoID(),
		Recovery:   s.manager.Stats(),
		Subtitles:  make(map[Slot]subsync.Stats, len(Slots)),
		Navigation: s.nav.Stats(),
		History:    s.tracker.History(),
	}
	for _, slot := range Slots {
		stats.Subtitles[slot] = s.subs[slot].Stats()
	}
	if a, ok := s.loops.Active().Get(); ok {
		stats.Loop = &a
	}
	return stats
}
