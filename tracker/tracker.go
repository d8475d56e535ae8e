package tracker

import (
	"time"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/bus"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/proxy"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/util"
)

// Config tunes sampling cadence and change thresholds.
type Config struct {
	PollInterval     time.Duration
	ThrottleInterval time.Duration
	TimeThreshold    float64
	VolumeThreshold  float64
	TrackTime        bool
	TrackVolume      bool
	TrackDimensions  bool
	HistorySize      int
}

// DefaultConfig returns the stock tracker settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:     250 * time.Millisecond,
		ThrottleInterval: 100 * time.Millisecond,
		TimeThreshold:    0.1,
		VolumeThreshold:  0.01,
		TrackTime:        true,
		TrackVolume:      true,
		TrackDimensions:  false,
		HistorySize:      50,
	}
}

// Source is what the tracker samples. *proxy.Proxy satisfies it.
type Source interface {
	Metadata() (media.Metadata, error)
	AddEventListener(t media.EventType, h media.Handler) proxy.ListenerID
	RemoveEventListener(id proxy.ListenerID) bool
}

// Tracker samples the source on host events and on a poll, commits a new
// snapshot only when something significant changed, and keeps a bounded history.
type Tracker struct {
	cfg      Config
	clock    clock.Clock
	source   Source
	reporter recovery.Reporter
	logger   *logrus.Entry

	current  mo.Option[Info]
	previous mo.Option[Info]
	cleared  bool
	history  *util.Ring[HistoryEntry]

	transitionStart time.Time
	lastThrottled   time.Time
	trailing        clock.Handle
	poll            clock.Handle
	listeners       []proxy.ListenerID
	running         bool

	changes     *bus.Topic[Update]
	transitions *bus.Topic[Transition]
}

// New creates a stopped tracker. reporter may be nil.
func New(cfg Config, clk clock.Clock, src Source, reporter recovery.Reporter) *Tracker {
	if reporter == nil {
		reporter = recovery.Discard
	}
	return &Tracker{
		cfg:         cfg,
		clock:       clk,
		source:      src,
		reporter:    reporter,
		logger:      log.For("tracker"),
		history:     util.NewRing[HistoryEntry](cfg.HistorySize),
		changes:     bus.New[Update]("player.changes"),
		transitions: bus.New[Transition]("player.state"),
	}
}

// Changes publishes every committed sample.
func (t *Tracker) Changes() *bus.Topic[Update] {
	return t.changes
}

// Transitions publishes state machine transitions.
func (t *Tracker) Transitions() *bus.Topic[Transition] {
	return t.transitions
}

// Start subscribes to host events, begins polling and takes an initial sample.
func (t *Tracker) Start() {
	if t.running {
		return
	}
	t.running = true

	for _, e := range media.Events {
		t.listeners = append(t.listeners, t.source.AddEventListener(e, func(ev media.Event) {
			t.onEvent(ev)
		}))
	}

	if t.cfg.PollInterval > 0 {
		t.poll = t.clock.Every(t.cfg.PollInterval, func() { t.Sample("poll") })
	}
	t.Sample("start")
}

// Stop cancels polling and unsubscribes. It is idempotent.
func (t *Tracker) Stop() {
	t.poll = clock.Stop(t.poll)
	t.trailing = clock.Stop(t.trailing)
	for _, id := range t.listeners {
		t.source.RemoveEventListener(id)
	}
	t.listeners = nil
	t.running = false
}

// Running reports whether the tracker is started.
func (t *Tracker) Running() bool {
	return t.running
}

func (t *Tracker) onEvent(e media.Event) {
	if e.Type != media.EventTimeUpdate {
		t.Sample(string(e.Type))
		return
	}

	// Leading edge samples immediately; bursts collapse into one trailing sample.
	now := t.clock.Now()
	if elapsed := now.Sub(t.lastThrottled); elapsed >= t.cfg.ThrottleInterval {
		t.lastThrottled = now
		t.Sample(string(e.Type))
		return
	}
	if t.trailing != nil {
		return
	}
	wait := t.cfg.ThrottleInterval - now.Sub(t.lastThrottled)
	t.trailing = t.clock.AfterFunc(wait, func() {
		t.trailing = nil
		t.lastThrottled = t.clock.Now()
		t.Sample(string(media.EventTimeUpdate))
	})
}

// Sample reads the source once and commits a snapshot if it changed significantly.
func (t *Tracker) Sample(trigger string) {
	m, err := t.source.Metadata()
	if err != nil {
		gone := recovery.HasCode(err, recovery.ElementUnavailable) || recovery.HasCode(err, recovery.ElementNotFound)
		if gone && t.cleared {
			return
		}
		if gone {
			t.clear()
		}
		if !recovery.HasCode(err, recovery.CircuitOpen) {
			t.reporter.Handle(err)
		}
		return
	}

	now := t.clock.Now()
	next := Info{State: Derive(m), Metadata: m, Timestamp: now}

	prev, hadPrev := t.current.Get()
	changes := all()
	if hadPrev {
		changes = CompareStates(prev, next, t.cfg)
	}
	if !changes.Any() {
		return
	}

	entry := HistoryEntry{Info: next, Changes: changes}

	from := t.State()
	if !hadPrev || changes.State {
		tr := Transition{From: from, To: next.State, Trigger: trigger}
		if !t.transitionStart.IsZero() {
			tr.Duration = now.Sub(t.transitionStart)
		}
		t.transitionStart = now
		entry.Transition = &tr
	}

	t.previous = t.current
	t.current = mo.Some(next)
	t.cleared = false
	t.history.Push(entry)

	update := Update{Current: next, Changes: changes, Trigger: trigger}
	if hadPrev {
		update.Previous = &prev
	}
	t.changes.Publish(update)

	if entry.Transition != nil {
		t.logger.WithFields(logrus.Fields{
			"from":    entry.Transition.From,
			"to":      entry.Transition.To,
			"trigger": trigger,
		}).Debug("state transition")
		t.transitions.Publish(*entry.Transition)
	}
}

func (t *Tracker) clear() {
	t.logger.Debug("element gone, clearing snapshots")
	t.current = mo.None[Info]()
	t.previous = mo.None[Info]()
	t.cleared = true
	t.transitionStart = time.Time{}
}

// Current returns the latest committed snapshot.
func (t *Tracker) Current() mo.Option[Info] {
	return t.current
}

// Previous returns the snapshot before Current.
func (t *Tracker) Previous() mo.Option[Info] {
	return t.previous
}

// State returns the current state. Before the first sample it is Unstarted;
// after the element disappeared it is Unknown.
func (t *Tracker) State() State {
	if info, ok := t.current.Get(); ok {
		return info.State
	}
	if t.cleared {
		return Unknown
	}
	return Unstarted
}

// TimeInState returns how long the tracker has been in the current state.
func (t *Tracker) TimeInState() time.Duration {
	if t.transitionStart.IsZero() {
		return 0
	}
	return t.clock.Now().Sub(t.transitionStart)
}

// History returns committed samples, oldest first.
func (t *Tracker) History() []HistoryEntry {
	return t.history.Items()
}

// Reset forgets snapshots and history without stopping.
func (t *Tracker) Reset() {
	t.current = mo.None[Info]()
	t.previous = mo.None[Info]()
	t.cleared = false
	t.transitionStart = time.Time{}
	t.history.Clear()
}

// UpdateConfig applies new settings, restarting the poll when running.
func (t *Tracker) UpdateConfig(cfg Config) {
	t.cfg = cfg
	t.history.Resize(cfg.HistorySize)
	if t.running {
		t.poll = clock.Stop(t.poll)
		if cfg.PollInterval > 0 {
			t.poll = t.clock.Every(cfg.PollInterval, func() { t.Sample("poll") })
		}
	}
}
