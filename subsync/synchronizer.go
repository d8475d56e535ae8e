package subsync

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/bus"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/subtitle"
	"github.com/subloop-cli/subloop/util"
)

// Smoothing is the factor applied to learned adjustments when smoothing is on.
const Smoothing = 0.8

// Config tunes the synchronizer.
type Config struct {
	UpdateInterval    time.Duration
	MinTimeDelta      float64
	GlobalOffset      float64
	LookAhead         float64
	LookBehind        float64
	MaxConcurrentCues int
	Smoothing         bool
	AdjustmentHistory int
}

// DefaultConfig returns the stock synchronizer settings.
func DefaultConfig() Config {
	return Config{
		UpdateInterval:    100 * time.Millisecond,
		MinTimeDelta:      0.02,
		LookAhead:         0,
		LookBehind:        0,
		MaxConcurrentCues: 3,
		Smoothing:         false,
		AdjustmentHistory: 20,
	}
}

// TimeSource reports the playback position. *proxy.Proxy satisfies it.
type TimeSource interface {
	CurrentTime() (float64, error)
}

// Synchronizer owns one subtitle track and the cues visible from it.
type Synchronizer struct {
	name     string
	cfg      Config
	clock    clock.Clock
	source   TimeSource
	reporter recovery.Reporter
	logger   *logrus.Entry

	track       *subtitle.Track
	active      []ActiveCue
	adjustments *util.Ring[Adjustment]

	synced   bool
	lost     bool
	lastTime float64
	ticker   clock.Handle
	stats    Stats

	events *bus.Topic[Event]
}

// New creates a stopped synchronizer. name tells synchronizers apart in logs.
func New(name string, cfg Config, clk clock.Clock, src TimeSource, reporter recovery.Reporter) *Synchronizer {
	if reporter == nil {
		reporter = recovery.Discard
	}
	return &Synchronizer{
		name:        name,
		cfg:         cfg,
		clock:       clk,
		source:      src,
		reporter:    reporter,
		logger:      log.For("subsync").WithField("slot", name),
		adjustments: util.NewRing[Adjustment](cfg.AdjustmentHistory),
		events:      bus.New[Event]("subtitle." + name),
	}
}

// Events publishes cue and track changes.
func (s *Synchronizer) Events() *bus.Topic[Event] {
	return s.events
}

// Name returns the synchronizer name.
func (s *Synchronizer) Name() string {
	return s.name
}

// Start begins ticking at the update interval.
func (s *Synchronizer) Start() {
	if s.ticker != nil {
		return
	}
	s.ticker = s.clock.Every(s.cfg.UpdateInterval, s.Tick)
}

// Stop cancels ticking. Active cues are kept. It is idempotent.
func (s *Synchronizer) Stop() {
	s.ticker = clock.Stop(s.ticker)
}

// Running reports whether the synchronizer is ticking.
func (s *Synchronizer) Running() bool {
	return s.ticker != nil
}

// LoadTrack swaps in track, clearing every active cue, and emits track_change.
// A nil track unloads.
func (s *Synchronizer) LoadTrack(track *subtitle.Track) {
	s.track = track
	s.active = nil
	s.synced = false

	if track != nil {
		s.logger.WithFields(logrus.Fields{
			"track": track.ID,
			"cues":  len(track.Cues),
		}).Info("track loaded")
	}
	s.events.Publish(Event{Type: TrackChange, Time: s.lastTime, Track: track})
}

// Track returns the loaded track, or nil.
func (s *Synchronizer) Track() *subtitle.Track {
	return s.track
}

// Active returns the cues visible as of the last tick. The slice is replaced,
// never modified, on every recomputation.
func (s *Synchronizer) Active() []ActiveCue {
	return s.active
}

// Tick samples the playback position once and synchronizes to it.
func (s *Synchronizer) Tick() {
	t, err := s.source.CurrentTime()
	if err != nil {
		gone := recovery.HasCode(err, recovery.ElementUnavailable) || recovery.HasCode(err, recovery.ElementNotFound)
		if gone && s.lost {
			return
		}
		if gone {
			s.lost = true
			s.Clear()
		}
		if !recovery.HasCode(err, recovery.CircuitOpen) {
			s.reporter.Handle(err)
		}
		return
	}
	s.lost = false
	s.Sync(t)
}

// Sync recomputes the visible cues for playback position t and emits the differences.
// Calls within MinTimeDelta of the previous position return the previous result unchanged.
func (s *Synchronizer) Sync(t float64) []ActiveCue {
	s.stats.Ticks++

	if !util.Finite(t) {
		return s.active
	}
	if s.synced && math.Abs(t-s.lastTime) < s.cfg.MinTimeDelta {
		s.stats.Skipped++
		return s.active
	}
	s.synced = true
	s.lastTime = t

	if s.track == nil {
		return s.active
	}

	adjusted := t + s.cfg.GlobalOffset
	next := s.window(adjusted)
	s.swap(next, adjusted)
	return next
}

// window computes the cues in range at adjusted time, earliest-starting first.
func (s *Synchronizer) window(adjusted float64) []ActiveCue {
	adjustments := s.adjustments.Items()

	var next []ActiveCue
	for _, c := range s.track.Cues {
		delta := s.adjustmentFor(adjustments, c.StartTime)
		start, end := c.StartTime+delta, c.EndTime+delta

		if adjusted < start-s.cfg.LookBehind || adjusted > end+s.cfg.LookAhead {
			continue
		}

		next = append(next, ActiveCue{
			Cue:               c,
			IsActive:          adjusted >= start && adjusted <= end,
			TimeRemaining:     math.Max(0, end-adjusted),
			AdjustedStartTime: start,
			AdjustedEndTime:   end,
		})
	}

	slices.SortStableFunc(next, func(a, b ActiveCue) int {
		switch {
		case a.AdjustedStartTime < b.AdjustedStartTime:
			return -1
		case a.AdjustedStartTime > b.AdjustedStartTime:
			return 1
		default:
			return 0
		}
	})

	if limit := s.cfg.MaxConcurrentCues; limit > 0 && len(next) > limit {
		next = next[:limit]
	}
	for i := range next {
		next[i].DisplayOrder = i
	}
	return next
}

// swap replaces the active set and publishes the differences by cue id.
func (s *Synchronizer) swap(next []ActiveCue, at float64) {
	prev := s.active
	s.active = next

	ids := func(cues []ActiveCue) map[string]struct{} {
		return lo.SliceToMap(cues, func(c ActiveCue) (string, struct{}) { return c.ID, struct{}{} })
	}
	prevIDs, nextIDs := ids(prev), ids(next)

	for i := range prev {
		if _, ok := nextIDs[prev[i].ID]; !ok {
			s.stats.Ends++
			cue := prev[i]
			s.events.Publish(Event{Type: CueEnd, Time: at, Cue: &cue})
		}
	}
	for i := range next {
		if _, ok := prevIDs[next[i].ID]; !ok {
			s.stats.Starts++
			cue := next[i]
			s.events.Publish(Event{Type: CueStart, Time: at, Cue: &cue})
		}
	}
	if len(next) > 0 {
		s.events.Publish(Event{Type: CueUpdate, Time: at, Active: next})
	}
}

// Clear drops every active cue, emitting cue_end for each.
func (s *Synchronizer) Clear() {
	if len(s.active) == 0 {
		return
	}
	s.logger.Debug("clearing active cues")
	s.swap(nil, s.lastTime)
	s.synced = false
}

// adjustmentFor returns the delta of the adjustment recorded nearest to t.
// Ties go to the most recent adjustment.
func (s *Synchronizer) adjustmentFor(items []Adjustment, t float64) float64 {
	if len(items) == 0 {
		return 0
	}

	best := items[len(items)-1]
	for i := len(items) - 2; i >= 0; i-- {
		if math.Abs(items[i].Time-t) < math.Abs(best.Time-t) {
			best = items[i]
		}
	}

	if s.cfg.Smoothing {
		return best.Delta * Smoothing
	}
	return best.Delta
}

// AdjustTiming records that cues around time t are off by delta seconds.
// The next tick recomputes regardless of how far playback moved.
func (s *Synchronizer) AdjustTiming(t, delta float64) {
	s.adjustments.Push(Adjustment{Time: t, Delta: delta, At: s.clock.Now()})
	s.synced = false
	s.logger.WithFields(logrus.Fields{"time": t, "delta": delta}).Debug("timing adjusted")
}

// Adjustments returns recorded adjustments, oldest first.
func (s *Synchronizer) Adjustments() []Adjustment {
	return s.adjustments.Items()
}

// ResetAdjustments forgets every learned adjustment.
func (s *Synchronizer) ResetAdjustments() {
	s.adjustments.Clear()
	s.synced = false
}

// UpdateConfig applies new settings; the ticker restarts when running.
func (s *Synchronizer) UpdateConfig(cfg Config) {
	s.cfg = cfg
	s.adjustments.Resize(cfg.AdjustmentHistory)
	s.synced = false
	if s.ticker != nil {
		s.Stop()
		s.Start()
	}
}

// Config returns the current settings.
func (s *Synchronizer) Config() Config {
	return s.cfg
}

// Stats returns a diagnostic snapshot.
func (s *Synchronizer) Stats() Stats {
	stats := s.stats
	stats.Active = len(s.active)
	stats.Adjustments = s.adjustments.Len()
	stats.LastTime = s.lastTime
	if s.track != nil {
		stats.Track = s.track.ID
		stats.Cues = len(s.track.Cues)
	}
	return stats
}
