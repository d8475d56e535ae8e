package segment

import (
	"math"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/proxy"
	"github.com/subloop-cli/subloop/recovery"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const tick = 33 * time.Millisecond

func types(events []Event) []EventType {
	return lo.Map(events, func(e Event, _ int) EventType { return e.Type })
}

func TestController(t *testing.T) {
	Convey("Given a controller driving a fake element", t, func() {
		clk := clock.NewFake(epoch)
		el := media.NewFakeElement(60)
		// Uncached so the monitor sees every SetTime without listeners attached.
		pcfg := proxy.DefaultConfig()
		pcfg.CacheTTL = 0
		p := proxy.New(pcfg, clk, nil)
		p.SetElement(el)

		cfg := DefaultConfig()
		c := New(cfg, clk, p, nil)

		var events []Event
		c.Events().Subscribe(func(e Event) { events = append(events, e) })

		// reach plays the element up to t and lets the monitor observe it.
		reach := func(t float64) {
			el.SetTime(t)
			clk.Advance(tick)
		}

		Convey("A loop with a count of two seeks back twice and then ends", func() {
			_, err := c.Create(Loop{StartTime: 5, EndTime: 8, LoopCount: 2})
			So(err, ShouldBeNil)

			reach(8.0)
			clk.Advance(tick)
			reach(8.0)

			So(el.Seeks(), ShouldResemble, []float64{4.9, 4.9})
			So(types(events), ShouldResemble, []EventType{LoopStart, LoopIteration, LoopIteration, LoopEnd})
			So(events[1].Loop.CurrentIteration, ShouldEqual, 1)
			So(events[2].Loop.CurrentIteration, ShouldEqual, 2)
			So(events[3].Reason, ShouldEqual, ReasonCompleted)
			So(c.Active().IsAbsent(), ShouldBeTrue)
			So(c.Monitoring(), ShouldBeFalse)
		})

		Convey("Creating a second loop ends the first before starting the second", func() {
			first, _ := c.Create(Loop{StartTime: 1, EndTime: 2})
			second, err := c.Create(Loop{StartTime: 3, EndTime: 4})
			So(err, ShouldBeNil)

			So(types(events), ShouldResemble, []EventType{LoopStart, LoopEnd, LoopStart})
			So(events[1].Loop.ID, ShouldEqual, first.ID)
			So(events[1].Reason, ShouldEqual, ReasonReplaced)
			So(events[2].Loop.ID, ShouldEqual, second.ID)

			active, ok := c.Active().Get()
			So(ok, ShouldBeTrue)
			So(active.ID, ShouldEqual, second.ID)
			So(first.ID, ShouldNotEqual, second.ID)
		})

		Convey("Invalid bounds are rejected", func() {
			_, err := c.Create(Loop{StartTime: -1, EndTime: 2})
			So(recovery.HasCode(err, recovery.InvalidTime), ShouldBeTrue)

			_, err = c.Create(Loop{StartTime: 3, EndTime: 3})
			So(recovery.HasCode(err, recovery.ValidationError), ShouldBeTrue)

			_, err = c.Create(Loop{StartTime: math.NaN(), EndTime: 3})
			So(recovery.HasCode(err, recovery.InvalidTime), ShouldBeTrue)

			So(events, ShouldBeEmpty)
		})

		Convey("Monitoring keeps the timing fields current", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			reach(6.5)

			a, _ := c.Active().Get()
			So(a.IsActive, ShouldBeTrue)
			So(a.TimeInLoop, ShouldAlmostEqual, 1.5, 1e-9)
			So(a.TimeRemaining, ShouldAlmostEqual, 1.5, 1e-9)

			reach(2)
			a, _ = c.Active().Get()
			So(a.IsActive, ShouldBeFalse)
			So(a.TimeInLoop, ShouldEqual, 0)
		})

		Convey("The safety cap disables a runaway loop", func() {
			cfg.MaxConsecutive = 2
			c.UpdateConfig(cfg)
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})

			reach(8.0)
			clk.Advance(tick)
			reach(8.0)

			So(types(events), ShouldResemble, []EventType{LoopStart, LoopIteration, LoopIteration, LoopDisabled})
			So(events[3].Reason, ShouldEqual, ReasonSafetyCap)
			So(el.Seeks(), ShouldResemble, []float64{4.9})
			So(c.Monitoring(), ShouldBeFalse)

			a, ok := c.Active().Get()
			So(ok, ShouldBeTrue)
			So(a.Enabled, ShouldBeFalse)

			Convey("Enabling re-arms it with a fresh activation counter", func() {
				So(c.Enable(), ShouldBeNil)
				So(c.Monitoring(), ShouldBeTrue)
				reach(8.0)

				a, _ := c.Active().Get()
				So(a.CurrentIteration, ShouldEqual, 1)
				So(a.TotalIterations, ShouldEqual, 3)
			})
		})

		Convey("The controller recognizes its own seeks", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			reach(8.0)
			c.HandleSeek(4.9)

			So(lo.Contains(types(events), LoopSeekOutside), ShouldBeFalse)
		})

		Convey("A user seek outside the loop", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			reach(6)
			events = nil

			Convey("leaves the loop armed for re-entry by default", func() {
				el.SimulateSeek(20)
				c.HandleSeek(20)
				clk.Advance(tick)

				So(types(events), ShouldResemble, []EventType{LoopSeekOutside})
				So(el.Seeks(), ShouldBeEmpty)

				el.SimulateSeek(6)
				c.HandleSeek(6)
				reach(8)
				So(el.Seeks(), ShouldResemble, []float64{4.9})
			})

			Convey("is pulled back when seeking outside is not allowed", func() {
				cfg.AllowUserSeekOutside = false
				c.UpdateConfig(cfg)

				el.SimulateSeek(20)
				c.HandleSeek(20)
				So(el.Seeks(), ShouldResemble, []float64{5.0})

				// the pull-back is reported by the host too
				c.HandleSeek(5.0)
				So(types(events), ShouldResemble, []EventType{LoopSeekOutside})
			})

			Convey("disables the loop when resuming is off", func() {
				cfg.ResumeAfterSeekOutside = false
				c.UpdateConfig(cfg)

				el.SimulateSeek(20)
				c.HandleSeek(20)
				So(types(events), ShouldResemble, []EventType{LoopSeekOutside, LoopDisabled})
				So(events[1].Reason, ShouldEqual, ReasonSeek)
			})
		})

		Convey("A delay postpones the seek back", func() {
			cfg.Delay = 500 * time.Millisecond
			c.UpdateConfig(cfg)
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})

			reach(8.0)
			So(el.Seeks(), ShouldBeEmpty)

			clk.Advance(500 * time.Millisecond)
			So(el.Seeks(), ShouldResemble, []float64{4.9})
			So(lo.CountBy(events, func(e Event) bool { return e.Type == LoopIteration }), ShouldEqual, 1)
		})

		Convey("A fade brings the volume back after the seek", func() {
			cfg.Fade = true
			cfg.FadeDuration = 80 * time.Millisecond
			c.UpdateConfig(cfg)
			So(el.Set(media.Volume, 0.8), ShouldBeNil)
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})

			reach(8.0)
			So(el.Snapshot().Volume, ShouldEqual, 0)

			clk.Advance(40 * time.Millisecond)
			So(el.Snapshot().Volume, ShouldBeBetween, 0.0, 0.8)

			clk.Advance(60 * time.Millisecond)
			So(el.Snapshot().Volume, ShouldAlmostEqual, 0.8, 1e-9)
		})

		Convey("A stopped loop reports the position playback was last seen at", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			reach(6)
			el.SimulateSeek(20)
			c.HandleSeek(20)
			clk.Advance(tick)

			c.Stop()
			end := events[len(events)-1]
			So(end.Type, ShouldEqual, LoopEnd)
			So(end.Time, ShouldEqual, 20.0)
		})

		Convey("The monitor holds off while a seek is in flight", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			reach(6)

			c.BeginSeek()
			reach(20)
			So(el.Seeks(), ShouldBeEmpty)

			c.HandleSeek(20)
			reach(20)
			So(types(events), ShouldResemble, []EventType{LoopStart, LoopSeekOutside})
			So(el.Seeks(), ShouldBeEmpty)

			Convey("but not forever when the seek is never reported", func() {
				c.BeginSeek()
				el.SetTime(6)
				clk.Advance(time.Second + tick)
				reach(8)
				So(el.Seeks(), ShouldResemble, []float64{4.9})
			})
		})

		Convey("Updating a loop keeps its counters", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			reach(8.0)

			a, err := c.Update(Patch{EndTime: mo.Some(10.0), Label: mo.Some("verse")})
			So(err, ShouldBeNil)
			So(a.EndTime, ShouldEqual, 10.0)
			So(a.Label, ShouldEqual, "verse")
			So(a.TotalIterations, ShouldEqual, 1)

			_, err = c.Update(Patch{EndTime: mo.Some(1.0)})
			So(err, ShouldNotBeNil)
			cur, _ := c.Active().Get()
			So(cur.EndTime, ShouldEqual, 10.0)

			Convey("Lowering the count below the iterations ends it", func() {
				_, err := c.Update(Patch{LoopCount: mo.Some(1)})
				So(err, ShouldBeNil)
				So(c.Active().IsAbsent(), ShouldBeTrue)
			})
		})

		Convey("Stop is idempotent", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			c.Stop()
			c.Stop()
			So(types(events), ShouldResemble, []EventType{LoopStart, LoopEnd})
			So(clk.Pending(), ShouldEqual, 0)

			So(c.Disable(), ShouldNotBeNil)
			So(c.Enable(), ShouldNotBeNil)
		})

		Convey("Losing the element ends the loop", func() {
			_, _ = c.Create(Loop{StartTime: 5, EndTime: 8})
			el.Detach()
			clk.Advance(tick)

			So(types(events), ShouldResemble, []EventType{LoopStart, LoopEnd})
			So(events[1].Reason, ShouldEqual, ReasonLost)
		})
	})
}

// mutePlayer plays along with the controller but cannot change the volume
// once it has been muted.
type mutePlayer struct {
	time   float64
	volume float64
}

func (m *mutePlayer) CurrentTime() (float64, error) { return m.time, nil }

func (m *mutePlayer) Seek(t float64) error {
	m.time = t
	return nil
}

func (m *mutePlayer) Volume() (float64, error) { return m.volume, nil }

func (m *mutePlayer) SetVolume(v float64) error {
	if v > 0 && m.volume == 0 {
		return recovery.New(recovery.ServiceUnavailable, recovery.Medium, "volume is stuck")
	}
	m.volume = v
	return nil
}

type reports []error

func (r *reports) Handle(err error) *recovery.Error {
	*r = append(*r, err)
	return recovery.Lift(err, recovery.ServiceUnavailable, recovery.Medium)
}

func TestFadeFailures(t *testing.T) {
	Convey("Given a fading controller whose player cannot restore the volume", t, func() {
		clk := clock.NewFake(epoch)
		player := &mutePlayer{volume: 0.8}
		var failures reports

		cfg := DefaultConfig()
		cfg.Fade = true
		cfg.FadeDuration = 80 * time.Millisecond
		c := New(cfg, clk, player, &failures)

		_, err := c.Create(Loop{StartTime: 5, EndTime: 8})
		So(err, ShouldBeNil)
		player.time = 8
		clk.Advance(tick)
		So(player.volume, ShouldEqual, 0)
		So(player.time, ShouldAlmostEqual, 4.9, 1e-9)

		Convey("Each failed step of the fade is reported", func() {
			clk.Advance(80 * time.Millisecond)
			So(failures, ShouldNotBeEmpty)
			So(recovery.HasCode(failures[len(failures)-1], recovery.ServiceUnavailable), ShouldBeTrue)
		})

		Convey("Stopping mid-fade reports the failed restore", func() {
			c.Stop()
			So(failures, ShouldHaveLength, 1)
		})
	})
}
