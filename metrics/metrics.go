// Package metrics exposes the playback core's activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
)

const namespace = "subloop"

// Metrics holds every collector, registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Recovery
	Errors  *prometheus.CounterVec
	Breaker prometheus.Gauge

	// Player
	Transitions *prometheus.CounterVec
	StateTime   *prometheus.HistogramVec
	Position    prometheus.Gauge

	// Subtitles
	Cues       *prometheus.CounterVec
	ActiveCues *prometheus.GaugeVec

	// Segment loop
	Loops      *prometheus.CounterVec
	Iterations prometheus.Counter

	// Navigation
	Navigations *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Handled errors by code and severity",
			},
			[]string{"code", "severity"},
		),
		Breaker: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker position (0 closed, 1 open, 2 half-open)",
		}),

		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Player state transitions",
			},
			[]string{"from", "to"},
		),
		StateTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "state_duration_seconds",
				Help:      "Time spent in a player state before leaving it",
				Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8), // 100ms to ~27m
			},
			[]string{"state"},
		),
		Position: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_position_seconds",
			Help:      "Last sampled playback position",
		}),

		Cues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cue_events_total",
				Help:      "Subtitle cue transitions by slot and type",
			},
			[]string{"slot", "type"},
		),
		ActiveCues: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_cues",
				Help:      "Cues currently visible",
			},
			[]string{"slot"},
		),

		Loops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loop_events_total",
				Help:      "Segment loop events by type",
			},
			[]string{"type"},
		),
		Iterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Completed segment loop iterations",
		}),

		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigations_total",
				Help:      "Media changes by type",
			},
			[]string{"type"},
		),
	}
}

// Instrument subscribes the collectors to s. The returned function detaches them.
func (m *Metrics) Instrument(s *session.Session) (detach func()) {
	unsubs := []func(){
		s.ObservedErrors().Subscribe(m.observeError),
		s.Breaker().Changes().Subscribe(func(state recovery.BreakerState) {
			m.Breaker.Set(float64(state))
		}),
		s.StateChanges().Subscribe(m.observeTransition),
		s.PlayerChanges().Subscribe(func(u tracker.Update) {
			m.Position.Set(u.Current.Metadata.CurrentTime)
		}),
		s.SegmentLoop().Subscribe(m.observeLoop),
		s.Navigation().Subscribe(func(e navigation.Event) {
			m.Navigations.WithLabelValues(string(e.Type)).Inc()
		}),
	}
	for _, slot := range session.Slots {
		unsubs = append(unsubs, s.SubtitleSync(slot).Subscribe(m.cueObserver(slot)))
	}
	m.Breaker.Set(float64(s.Breaker().State()))

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (m *Metrics) observeError(e *recovery.Error) {
	m.Errors.WithLabelValues(string(e.Code), e.Severity.String()).Inc()
}

func (m *Metrics) observeTransition(t tracker.Transition) {
	m.Transitions.WithLabelValues(t.From.String(), t.To.String()).Inc()
	if t.Duration > 0 {
		m.StateTime.WithLabelValues(t.From.String()).Observe(t.Duration.Seconds())
	}
}

func (m *Metrics) observeLoop(e segment.Event) {
	m.Loops.WithLabelValues(string(e.Type)).Inc()
	if e.Type == segment.LoopIteration {
		m.Iterations.Inc()
	}
}

func (m *Metrics) cueObserver(slot session.Slot) func(subsync.Event) {
	active := m.ActiveCues.WithLabelValues(string(slot))
	return func(e subsync.Event) {
		m.Cues.WithLabelValues(string(slot), string(e.Type)).Inc()
		switch e.Type {
		case subsync.CueStart:
			active.Inc()
		case subsync.CueEnd:
			active.Dec()
		case subsync.TrackChange:
			active.Set(0)
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
