package segment

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/bus"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/util"
)

const (
	// seekTolerance is how close a reported seek must land to a requested one to be recognized.
	seekTolerance = 0.25

	// seekPatience bounds how long the monitor waits for a seek to land.
	seekPatience = time.Second

	fadeSteps = 8
)

// Config tunes the controller.
type Config struct {
	MonitorInterval        time.Duration
	SeekBackOffset         float64
	Delay                  time.Duration
	Fade                   bool
	FadeDuration           time.Duration
	MaxConsecutive         int
	AllowUserSeekOutside   bool
	ResumeAfterSeekOutside bool
}

// DefaultConfig returns the stock controller settings.
func DefaultConfig() Config {
	return Config{
		MonitorInterval:        33 * time.Millisecond,
		SeekBackOffset:         0.1,
		FadeDuration:           200 * time.Millisecond,
		MaxConsecutive:         100,
		AllowUserSeekOutside:   true,
		ResumeAfterSeekOutside: true,
	}
}

// Player is what the controller drives. *proxy.Proxy satisfies it.
type Player interface {
	CurrentTime() (float64, error)
	Seek(t float64) error
	Volume() (float64, error)
	SetVolume(v float64) error
}

type pendingSeek struct {
	target float64
	at     time.Time
	landed bool
}

// Controller owns at most one loop.
type Controller struct {
	cfg      Config
	clock    clock.Clock
	player   Player
	reporter recovery.Reporter
	logger   *logrus.Entry

	active      mo.Option[ActiveLoop]
	armed       bool
	consecutive int
	pending     mo.Option[pendingSeek]
	seeking     mo.Option[time.Time]
	position    mo.Option[float64]

	monitor clock.Handle
	delay   clock.Handle
	fade    clock.Handle
	restore float64

	events *bus.Topic[Event]
}

// New creates an idle controller.
func New(cfg Config, clk clock.Clock, player Player, reporter recovery.Reporter) *Controller {
	if reporter == nil {
		reporter = recovery.Discard
	}
	return &Controller{
		cfg:      cfg,
		clock:    clk,
		player:   player,
		reporter: reporter,
		logger:   log.For("segment"),
		events:   bus.New[Event]("segment"),
	}
}

// Events publishes loop transitions.
func (c *Controller) Events() *bus.Topic[Event] {
	return c.events
}

// Active returns the current loop.
func (c *Controller) Active() mo.Option[ActiveLoop] {
	return c.active
}

// Monitoring reports whether the monitor tick is running.
func (c *Controller) Monitoring() bool {
	return c.monitor != nil
}

// Create validates loop, replaces any existing loop and starts monitoring.
// An empty ID is filled with a fresh UUID.
func (c *Controller) Create(loop Loop) (ActiveLoop, error) {
	if err := loop.Validate(); err != nil {
		return ActiveLoop{}, err
	}

	if _, ok := c.active.Get(); ok {
		c.end(ReasonReplaced, c.lastTime())
	}

	if loop.ID == "" {
		loop.ID = uuid.NewString()
	}
	loop.Enabled = true

	a := ActiveLoop{Loop: loop, CreatedAt: c.clock.Now()}
	c.active = mo.Some(a)
	c.armed = true
	c.consecutive = 0

	c.logger.WithFields(logrus.Fields{
		"loop":  loop.ID,
		"start": loop.StartTime,
		"end":   loop.EndTime,
		"count": loop.LoopCount,
	}).Info("loop created")

	c.emit(LoopStart, ReasonCreated, loop.StartTime)
	c.startMonitor()
	return a, nil
}

// Patch describes an update to the active loop. Absent fields are kept.
type Patch struct {
	Label     mo.Option[string]
	StartTime mo.Option[float64]
	EndTime   mo.Option[float64]
	LoopCount mo.Option[int]
}

// Update changes the bounds or policy of the active loop. Iteration counters are kept.
func (c *Controller) Update(p Patch) (ActiveLoop, error) {
	a, ok := c.active.Get()
	if !ok {
		return ActiveLoop{}, recovery.New(recovery.ValidationError, recovery.Low, "no active loop")
	}

	loop := a.Loop
	loop.Label = p.Label.OrElse(loop.Label)
	loop.StartTime = p.StartTime.OrElse(loop.StartTime)
	loop.EndTime = p.EndTime.OrElse(loop.EndTime)
	loop.LoopCount = p.LoopCount.OrElse(loop.LoopCount)
	if err := loop.Validate(); err != nil {
		return ActiveLoop{}, err
	}

	a.Loop = loop
	c.active = mo.Some(a)
	c.logger.WithField("loop", loop.ID).Debug("loop updated")

	if loop.LoopCount > 0 && a.CurrentIteration >= loop.LoopCount {
		c.end(ReasonCompleted, c.lastTime())
	}
	return a, nil
}

// Stop ends the active loop, emitting loop_end. It is idempotent.
func (c *Controller) Stop() {
	if _, ok := c.active.Get(); !ok {
		c.teardown()
		return
	}
	c.end(ReasonStopped, c.lastTime())
}

// Enable re-arms a disabled loop.
func (c *Controller) Enable() error {
	a, ok := c.active.Get()
	if !ok {
		return recovery.New(recovery.ValidationError, recovery.Low, "no active loop")
	}
	if a.Enabled {
		return nil
	}

	a.Enabled = true
	a.CurrentIteration = 0
	c.active = mo.Some(a)
	c.armed = true
	c.consecutive = 0
	c.emit(LoopStart, ReasonEnabled, c.lastTime())
	c.startMonitor()
	return nil
}

// Disable keeps the loop but stops enforcing it.
func (c *Controller) Disable() error {
	if _, ok := c.active.Get(); !ok {
		return recovery.New(recovery.ValidationError, recovery.Low, "no active loop")
	}
	c.disable(ReasonUser, c.lastTime())
	return nil
}

func (c *Controller) disable(reason string, at float64) {
	a, ok := c.active.Get()
	if !ok || !a.Enabled {
		return
	}

	c.teardown()
	a.Enabled = false
	a.IsActive = false
	c.active = mo.Some(a)

	c.logger.WithFields(logrus.Fields{"loop": a.ID, "reason": reason}).Info("loop disabled")
	c.emit(LoopDisabled, reason, at)
}

// end emits loop_end and forgets the loop.
func (c *Controller) end(reason string, at float64) {
	a, ok := c.active.Get()
	if !ok {
		return
	}

	c.teardown()
	a.IsActive = false
	c.active = mo.Some(a)
	c.emit(LoopEnd, reason, at)
	c.active = mo.None[ActiveLoop]()

	c.logger.WithFields(logrus.Fields{
		"loop":       a.ID,
		"reason":     reason,
		"iterations": a.TotalIterations,
	}).Info("loop ended")
}

// teardown cancels every timer. It is idempotent.
func (c *Controller) teardown() {
	c.monitor = clock.Stop(c.monitor)
	c.delay = clock.Stop(c.delay)
	if c.fade != nil {
		c.fade = clock.Stop(c.fade)
		c.report(c.player.SetVolume(c.restore))
	}
	c.pending = mo.None[pendingSeek]()
}

func (c *Controller) startMonitor() {
	c.monitor = clock.Stop(c.monitor)
	c.monitor = c.clock.Every(c.cfg.MonitorInterval, c.Tick)
}

// Tick reads the playback position once and advances the loop state machine.
func (c *Controller) Tick() {
	a, ok := c.active.Get()
	if !ok || !a.Enabled || c.delay != nil {
		return
	}

	t, err := c.player.CurrentTime()
	if err != nil {
		switch {
		case recovery.HasCode(err, recovery.CircuitOpen):
		case recovery.HasCode(err, recovery.ElementUnavailable), recovery.HasCode(err, recovery.ElementNotFound):
			c.reporter.Handle(err)
			c.end(ReasonLost, c.lastTime())
		default:
			c.reporter.Handle(err)
		}
		return
	}
	c.position = mo.Some(t)

	// A seek the controller did not request is the user's. Until the host
	// reports where it landed, the position says nothing about the loop.
	if c.userSeeking() {
		return
	}

	// The host may report the seek after the position already moved, so a
	// landed seek stays recognizable until HandleSeek consumes it or it expires.
	if p, waiting := c.pending.Get(); waiting {
		expired := c.clock.Now().Sub(p.at) >= seekPatience
		if !p.landed && !expired {
			if math.Abs(t-p.target) >= seekTolerance && !a.Contains(t) {
				return
			}
			p.landed = true
			c.pending = mo.Some(p)
		}
		if expired {
			c.pending = mo.None[pendingSeek]()
		}
	}

	a = c.measure(a, t)
	c.active = mo.Some(a)

	if a.Contains(t) {
		c.armed = true
	}
	if c.armed && t >= a.EndTime {
		c.iterate(a, t)
	}
}

// measure recomputes the derived timing fields for position t.
func (c *Controller) measure(a ActiveLoop, t float64) ActiveLoop {
	a.IsActive = a.Contains(t)
	a.TimeInLoop = util.Clamp(t-a.StartTime, 0, a.Length())
	a.TimeRemaining = util.Clamp(a.EndTime-t, 0, a.Length())
	return a
}

func (c *Controller) iterate(a ActiveLoop, t float64) {
	a.CurrentIteration++
	a.TotalIterations++
	a.LastTriggeredAt = c.clock.Now()
	c.active = mo.Some(a)
	c.consecutive++

	final := a.LoopCount > 0 && a.CurrentIteration >= a.LoopCount
	c.emit(LoopIteration, "", t)

	if !final && c.cfg.MaxConsecutive > 0 && c.consecutive >= c.cfg.MaxConsecutive {
		c.disable(ReasonSafetyCap, t)
		return
	}

	target := math.Max(0, a.StartTime-c.cfg.SeekBackOffset)
	c.pending = mo.Some(pendingSeek{target: target, at: c.clock.Now()})

	jump := func() {
		c.delay = nil
		c.seek(target)
		if final {
			c.end(ReasonCompleted, t)
		}
	}

	if c.cfg.Delay > 0 {
		c.delay = clock.Stop(c.delay)
		c.delay = c.clock.AfterFunc(c.cfg.Delay, jump)
		return
	}
	jump()
}

// seek jumps to target, optionally muting and fading the volume back in.
func (c *Controller) seek(target float64) {
	if c.cfg.Fade && c.cfg.FadeDuration > 0 {
		c.startFade()
	}

	// Hosts may report the seek before Seek returns.
	c.pending = mo.Some(pendingSeek{target: target, at: c.clock.Now()})
	if err := c.player.Seek(target); err != nil {
		c.reporter.Handle(err)
		c.pending = mo.None[pendingSeek]()
	}
}

func (c *Controller) startFade() {
	if c.fade == nil {
		v, err := c.player.Volume()
		if err != nil {
			c.reporter.Handle(err)
			return
		}
		c.restore = v
	}
	c.fade = clock.Stop(c.fade)

	if err := c.player.SetVolume(0); err != nil {
		c.reporter.Handle(err)
		return
	}

	step := 0
	c.fade = c.clock.Every(c.cfg.FadeDuration/fadeSteps, func() {
		step++
		if step >= fadeSteps {
			c.fade = clock.Stop(c.fade)
			c.report(c.player.SetVolume(c.restore))
			return
		}
		c.report(c.player.SetVolume(c.restore * float64(step) / fadeSteps))
	})
}

func (c *Controller) report(err error) {
	if err != nil {
		c.reporter.Handle(err)
	}
}

// BeginSeek notes that the host started seeking. Until HandleSeek reports
// where it landed, the monitor leaves the loop alone unless the seek is one
// the controller requested.
func (c *Controller) BeginSeek() {
	c.seeking = mo.Some(c.clock.Now())
}

func (c *Controller) userSeeking() bool {
	since, ok := c.seeking.Get()
	if !ok {
		return false
	}
	if c.clock.Now().Sub(since) >= seekPatience {
		c.seeking = mo.None[time.Time]()
		return false
	}
	return c.pending.IsAbsent()
}

// HandleSeek classifies a seek reported by the host. Seeks landing on a
// target the controller requested are its own; anything else is a user seek
// and is checked against the loop bounds.
func (c *Controller) HandleSeek(t float64) {
	c.seeking = mo.None[time.Time]()
	c.position = mo.Some(t)

	if p, ok := c.pending.Get(); ok && math.Abs(t-p.target) < seekTolerance {
		c.pending = mo.None[pendingSeek]()
		return
	}
	c.UserSeek(t)
}

// UserSeek applies the seek-outside policy for a user-initiated seek to t.
func (c *Controller) UserSeek(t float64) {
	c.consecutive = 0
	c.position = mo.Some(t)

	a, ok := c.active.Get()
	if !ok || !a.Enabled {
		return
	}

	a = c.measure(a, t)
	c.active = mo.Some(a)

	if a.Contains(t) {
		c.armed = true
		return
	}

	c.emit(LoopSeekOutside, "", t)

	switch {
	case !c.cfg.AllowUserSeekOutside:
		c.logger.WithField("time", t).Debug("pulling back into loop")
		c.seek(a.StartTime)
		c.armed = true
	case !c.cfg.ResumeAfterSeekOutside:
		c.disable(ReasonSeek, t)
	default:
		c.armed = false
	}
}

// UpdateConfig applies new settings. A running monitor restarts on the new interval.
func (c *Controller) UpdateConfig(cfg Config) {
	c.cfg = cfg
	if c.monitor != nil {
		c.startMonitor()
	}
}

// lastTime is the last position the controller saw.
func (c *Controller) lastTime() float64 {
	if t, ok := c.position.Get(); ok {
		return t
	}
	a, ok := c.active.Get()
	if !ok {
		return 0
	}
	return a.StartTime + a.TimeInLoop
}

func (c *Controller) emit(t EventType, reason string, at float64) {
	a, ok := c.active.Get()
	if !ok {
		return
	}
	c.events.Publish(Event{Type: t, Loop: a, Reason: reason, Time: at})
}
