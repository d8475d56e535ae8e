package tracker

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/proxy"
	"github.com/subloop-cli/subloop/recovery"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	errs []*recovery.Error
}

func (r *recorder) Handle(err error) *recovery.Error {
	e := recovery.Lift(err, recovery.ServiceUnavailable, recovery.Medium)
	r.errs = append(r.errs, e)
	return e
}

func TestDerive(t *testing.T) {
	Convey("State is derived from ended, paused and readyState", t, func() {
		So(Derive(media.Metadata{Ended: true, Paused: true}), ShouldEqual, Ended)
		So(Derive(media.Metadata{Paused: true, ReadyState: media.HaveNothing}), ShouldEqual, Paused)
		So(Derive(media.Metadata{ReadyState: media.HaveCurrentData}), ShouldEqual, Buffering)
		So(Derive(media.Metadata{ReadyState: media.HaveFutureData}), ShouldEqual, Playing)
		So(Playing.String(), ShouldEqual, "playing")
	})
}

func TestCompareStates(t *testing.T) {
	Convey("Given two snapshots differing only in volume", t, func() {
		m := media.Metadata{CurrentTime: 3, Duration: 60, PlaybackRate: 1, Volume: 0.5, ReadyState: media.HaveEnoughData}
		prev := Info{State: Derive(m), Metadata: m}
		m.Volume = 0.8
		next := Info{State: Derive(m), Metadata: m}

		Convey("Volume tracking on reports only the volume", func() {
			changes := CompareStates(prev, next, DefaultConfig())
			So(changes, ShouldResemble, Changes{Volume: true})
		})

		Convey("Volume tracking off reports nothing", func() {
			cfg := DefaultConfig()
			cfg.TrackVolume = false
			changes := CompareStates(prev, next, cfg)
			So(changes.Volume, ShouldBeFalse)
			So(changes.Any(), ShouldBeFalse)
		})
	})

	Convey("Time changes respect the threshold", t, func() {
		a := Info{Metadata: media.Metadata{CurrentTime: 1.00}}
		b := Info{Metadata: media.Metadata{CurrentTime: 1.05}}
		c := Info{Metadata: media.Metadata{CurrentTime: 1.20}}
		cfg := DefaultConfig()

		So(CompareStates(a, b, cfg).Time, ShouldBeFalse)
		So(CompareStates(a, c, cfg).Time, ShouldBeTrue)

		cfg.TrackTime = false
		So(CompareStates(a, c, cfg).Time, ShouldBeFalse)
	})
}

func TestTracker(t *testing.T) {
	Convey("Given a tracker over a fake element", t, func() {
		clk := clock.NewFake(epoch)
		el := media.NewFakeElement(120)
		p := proxy.New(proxy.DefaultConfig(), clk, nil)
		p.SetElement(el)

		cfg := DefaultConfig()
		cfg.PollInterval = 0
		cfg.TimeThreshold = 0.001
		rec := &recorder{}
		tr := New(cfg, clk, p, rec)

		var updates []Update
		var transitions []Transition
		tr.Changes().Subscribe(func(u Update) { updates = append(updates, u) })
		tr.Transitions().Subscribe(func(x Transition) { transitions = append(transitions, x) })

		So(tr.State(), ShouldEqual, Unstarted)
		tr.Start()

		Convey("The first sample commits and transitions out of Unstarted", func() {
			So(tr.State(), ShouldEqual, Paused)
			So(len(tr.History()), ShouldEqual, 1)
			So(transitions, ShouldResemble, []Transition{{From: Unstarted, To: Paused, Trigger: "start"}})
			So(updates[0].Previous, ShouldBeNil)
		})

		Convey("Playing records the time spent paused", func() {
			clk.Advance(2 * time.Second)
			So(el.Play(context.Background()), ShouldBeNil)
			clk.Flush()

			So(tr.State(), ShouldEqual, Playing)
			last := transitions[len(transitions)-1]
			So(last.From, ShouldEqual, Paused)
			So(last.To, ShouldEqual, Playing)
			So(last.Duration, ShouldEqual, 2*time.Second)
			So(last.Trigger, ShouldEqual, "play")
			So(tr.Previous().IsPresent(), ShouldBeTrue)
		})

		Convey("Bursts of time updates are throttled to leading plus trailing samples", func() {
			So(el.Play(context.Background()), ShouldBeNil)
			clk.Flush()
			updates = nil

			for i := 0; i < 5; i++ {
				clk.Advance(10 * time.Millisecond)
				el.Advance(10 * time.Millisecond)
				clk.Flush()
			}
			So(len(updates), ShouldEqual, 1)

			clk.Advance(100 * time.Millisecond)
			So(len(updates), ShouldEqual, 2)
			So(updates[1].Trigger, ShouldEqual, "timeupdate")
			So(updates[1].Current.Metadata.CurrentTime, ShouldAlmostEqual, 0.05, 1e-9)
		})

		Convey("Insignificant changes are not committed", func() {
			el.SetDimensions(640, 360)
			clk.Flush()
			So(len(tr.History()), ShouldEqual, 1)

			cfg.TrackDimensions = true
			tr.UpdateConfig(cfg)
			el.SetDimensions(1280, 720)
			clk.Flush()
			So(len(tr.History()), ShouldEqual, 2)
			So(tr.History()[1].Changes.Dimensions, ShouldBeTrue)
		})

		Convey("History is bounded", func() {
			cfg.HistorySize = 3
			tr.UpdateConfig(cfg)
			for _, v := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
				So(el.Set(media.Volume, v), ShouldBeNil)
				clk.Flush()
			}
			history := tr.History()
			So(len(history), ShouldEqual, 3)
			So(history[2].Info.Metadata.Volume, ShouldEqual, 0.5)
		})

		Convey("A vanished element clears both snapshots and reports once", func() {
			So(el.Play(context.Background()), ShouldBeNil)
			clk.Flush()
			So(tr.Previous().IsPresent(), ShouldBeTrue)

			el.Detach()
			clk.Flush()
			So(tr.Current().IsAbsent(), ShouldBeTrue)
			So(tr.Previous().IsAbsent(), ShouldBeTrue)
			So(tr.State(), ShouldEqual, Unknown)

			tr.Sample("poll")
			tr.Sample("poll")
			So(len(rec.errs), ShouldEqual, 1)
			So(rec.errs[0].Code, ShouldEqual, recovery.ElementUnavailable)
		})

		Convey("Stop is idempotent and releases everything", func() {
			tr.Stop()
			tr.Stop()
			So(p.Listeners(), ShouldEqual, 0)
			So(clk.Pending(), ShouldEqual, 0)
			So(tr.Running(), ShouldBeFalse)
		})

		Convey("Polling samples on the interval", func() {
			tr.Stop()
			cfg.PollInterval = 250 * time.Millisecond
			tr.UpdateConfig(cfg)
			tr.Start()

			So(el.Play(context.Background()), ShouldBeNil)
			el.Advance(time.Second)
			clk.Advance(250 * time.Millisecond)

			cur, ok := tr.Current().Get()
			So(ok, ShouldBeTrue)
			So(cur.Metadata.CurrentTime, ShouldEqual, 1.0)
		})

		Reset(func() {
			tr.Stop()
		})
	})
}
