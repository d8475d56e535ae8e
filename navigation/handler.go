package navigation

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/bus"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/util"
)

// Config tunes detection and the preserved-state lifetime.
type Config struct {
	PollInterval  time.Duration
	Debounce      time.Duration
	HistorySize   int
	PreserveTTL   time.Duration
	PreserveState bool
}

// DefaultConfig returns the stock navigation settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:  time.Second,
		Debounce:      300 * time.Millisecond,
		HistorySize:   20,
		PreserveTTL:   5 * time.Second,
		PreserveState: true,
	}
}

// URLSource is polled for the address of the loaded media.
type URLSource interface {
	URL() (string, error)
}

// HistoryHook reports back/forward style moves through a playlist or history stack.
type HistoryHook interface {
	OnHistory(fn func(url string)) (unsubscribe func())
}

// RouteEvents reports host specific "new media is loading" notifications.
type RouteEvents interface {
	OnRoute(fn func(url string)) (unsubscribe func())
}

// ElementWatcher reports that the media element was destroyed and replaced.
type ElementWatcher interface {
	OnReplaced(fn func(elementID string)) (unsubscribe func())
}

// Host bundles the signals a host can provide. Every field is optional.
// Callbacks may arrive on any goroutine; they are marshalled onto the clock.
type Host struct {
	URL      URLSource
	History  HistoryHook
	Routes   RouteEvents
	Elements ElementWatcher
}

type signal struct {
	kind EventType
	url  string
}

// Handler turns raw host signals into debounced navigation events.
type Handler struct {
	cfg      Config
	clock    clock.Clock
	host     Host
	reporter recovery.Reporter
	logger   *logrus.Entry

	url      string
	observed string
	pending  *signal
	debounce clock.Handle
	poll     clock.Handle
	unhook   []func()
	running  bool

	history   *util.Ring[Event]
	preserved *store

	events *bus.Topic[Event]
}

// New creates a stopped handler. reporter may be nil.
func New(cfg Config, clk clock.Clock, host Host, reporter recovery.Reporter) *Handler {
	if reporter == nil {
		reporter = recovery.Discard
	}
	return &Handler{
		cfg:       cfg,
		clock:     clk,
		host:      host,
		reporter:  reporter,
		logger:    log.For("navigation"),
		history:   util.NewRing[Event](cfg.HistorySize),
		preserved: newStore(clk),
		events:    bus.New[Event]("navigation"),
	}
}

// Events publishes every debounced navigation.
func (h *Handler) Events() *bus.Topic[Event] {
	return h.events
}

// Start hooks the host signals and begins polling. It is idempotent.
func (h *Handler) Start() {
	if h.running {
		return
	}
	h.running = true

	if h.host.URL != nil {
		if u, err := h.host.URL.URL(); err == nil {
			h.url, h.observed = u, u
		}
		if h.cfg.PollInterval > 0 {
			h.poll = h.clock.Every(h.cfg.PollInterval, h.Poll)
		}
	}

	post := func(kind EventType) func(string) {
		return func(url string) {
			h.clock.Post(func() {
				if h.running {
					h.Signal(kind, url)
				}
			})
		}
	}
	if h.host.History != nil {
		h.unhook = append(h.unhook, h.host.History.OnHistory(post(HistoryChange)))
	}
	if h.host.Routes != nil {
		h.unhook = append(h.unhook, h.host.Routes.OnRoute(post(RouteChange)))
	}
	if h.host.Elements != nil {
		replaced := post(ElementReplaced)
		h.unhook = append(h.unhook, h.host.Elements.OnReplaced(func(string) { replaced("") }))
	}

	h.logger.WithField("url", h.url).Debug("watching for navigation")
}

// Stop unhooks the host and cancels polling and any pending debounce.
// Preserved states are kept. It is idempotent.
func (h *Handler) Stop() {
	h.debounce = clock.Stop(h.debounce)
	h.poll = clock.Stop(h.poll)
	h.pending = nil
	for _, unhook := range h.unhook {
		unhook()
	}
	h.unhook = nil
	h.running = false
}

// Running reports whether the handler is started.
func (h *Handler) Running() bool {
	return h.running
}

// Poll checks the URL source once and signals when the address moved.
func (h *Handler) Poll() {
	if h.host.URL == nil {
		return
	}

	u, err := h.host.URL.URL()
	if err != nil {
		if !recovery.HasCode(err, recovery.CircuitOpen) {
			h.reporter.Handle(recovery.Lift(err, recovery.ObserverFailure, recovery.Low))
		}
		return
	}
	if u == h.observed {
		return
	}
	h.observed = u
	h.Signal(URLChange, u)
}

// Signal records a raw navigation signal and (re)starts the debounce.
// An empty url means the address is unknown and is filled in when the event fires.
func (h *Handler) Signal(kind EventType, url string) {
	next := signal{kind: kind, url: url}
	if h.pending != nil {
		if priority[h.pending.kind] > priority[kind] {
			next.kind = h.pending.kind
		}
		if url == "" {
			next.url = h.pending.url
		}
	}
	h.pending = &next

	h.debounce = clock.Stop(h.debounce)
	if h.cfg.Debounce <= 0 {
		h.fire()
		return
	}
	h.debounce = h.clock.AfterFunc(h.cfg.Debounce, func() {
		h.debounce = nil
		h.fire()
	})
}

func (h *Handler) fire() {
	if h.pending == nil {
		return
	}
	sig := *h.pending
	h.pending = nil

	to := sig.url
	if to == "" && h.host.URL != nil {
		if u, err := h.host.URL.URL(); err == nil {
			to = u
		}
	}
	if to == "" {
		to = h.url
	}
	if to != "" {
		h.observed = to
	}

	if sig.kind == URLChange && to == h.url {
		return
	}

	e := Event{
		ID:              uuid.NewString(),
		Type:            sig.kind,
		FromURL:         h.url,
		ToURL:           to,
		VideoID:         ExtractVideoID(to),
		PreviousVideoID: ExtractVideoID(h.url),
		PreserveState:   h.cfg.PreserveState,
		Timestamp:       h.clock.Now(),
	}
	h.url = to
	h.history.Push(e)

	h.logger.WithFields(logrus.Fields{
		"type":  e.Type,
		"from":  e.FromURL,
		"to":    e.ToURL,
		"video": e.VideoID,
	}).Info("navigation")
	h.events.Publish(e)
}

// URL returns the address of the last reported navigation, or the initial one.
func (h *Handler) URL() string {
	return h.url
}

// VideoID returns the identity of the current media.
func (h *Handler) VideoID() string {
	return ExtractVideoID(h.url)
}

// History returns past navigations, oldest first.
func (h *Handler) History() []Event {
	return h.history.Items()
}

// Last returns the most recent navigation.
func (h *Handler) Last() (Event, bool) {
	return h.history.Last()
}

// PreservePlayerState stores state under its VideoID until it is restored or PreserveTTL elapses.
// Storing again for the same video replaces the previous snapshot and restarts its lifetime.
func (h *Handler) PreservePlayerState(state PreservedState) error {
	if !h.cfg.PreserveState {
		return nil
	}
	if state.VideoID == "" {
		return recovery.New(recovery.ValidationError, recovery.Low, "preserved state needs a video id")
	}
	if state.PreservedAt.IsZero() {
		state.PreservedAt = h.clock.Now()
	}

	h.preserved.put(state, h.cfg.PreserveTTL)
	h.logger.WithFields(logrus.Fields{
		"video": state.VideoID,
		"time":  state.CurrentTime,
	}).Debug("player state preserved")
	return nil
}

// Restore takes the preserved state for videoID, removing it.
func (h *Handler) Restore(videoID string) mo.Option[PreservedState] {
	return h.preserved.take(videoID)
}

// Preserved lists the video ids with a live preserved state.
func (h *Handler) Preserved() []string {
	return h.preserved.keys()
}

// ClearPreserved drops every preserved state and its expiry timer.
func (h *Handler) ClearPreserved() {
	h.preserved.clear()
}

// UpdateConfig applies new settings, restarting polling when running.
func (h *Handler) UpdateConfig(cfg Config) {
	h.cfg = cfg
	h.history.Resize(cfg.HistorySize)
	if !cfg.PreserveState {
		h.preserved.clear()
	}
	if h.running && h.host.URL != nil {
		h.poll = clock.Stop(h.poll)
		if cfg.PollInterval > 0 {
			h.poll = h.clock.Every(cfg.PollInterval, h.Poll)
		}
	}
}

// Config returns the current settings.
func (h *Handler) Config() Config {
	return h.cfg
}

// Stats is a diagnostic snapshot.
type Stats struct {
	URL         string            `json:"url"`
	Navigations int               `json:"navigations"`
	Preserved   int               `json:"preserved"`
	ByType      map[EventType]int `json:"byType"`
}

// Stats summarizes the navigation history.
func (h *Handler) Stats() Stats {
	history := h.history.Items()
	return Stats{
		URL:         h.url,
		Navigations: len(history),
		Preserved:   len(h.preserved.keys()),
		ByType:      lo.CountValuesBy(history, func(e Event) EventType { return e.Type }),
	}
}
