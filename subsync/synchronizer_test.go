package subsync

import (
	"testing"
	"time"

	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/subtitle"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type position struct {
	t   float64
	err error
}

func (p *position) CurrentTime() (float64, error) {
	return p.t, p.err
}

type recorder struct {
	errs []error
}

func (r *recorder) Handle(err error) *recovery.Error {
	r.errs = append(r.errs, err)
	return recovery.Lift(err, recovery.ServiceUnavailable, recovery.Medium)
}

func texts(cues []ActiveCue) []string {
	return lo.Map(cues, func(c ActiveCue, _ int) string { return c.Text })
}

func track(cues ...subtitle.Cue) *subtitle.Track {
	for i := range cues {
		if cues[i].ID == "" {
			cues[i].ID = cues[i].Text
		}
	}
	return &subtitle.Track{ID: "test", Cues: cues}
}

func TestSynchronizer(t *testing.T) {
	Convey("Given a synchronizer with a two cue track", t, func() {
		clk := clock.NewFake(epoch)
		pos := &position{}
		rec := &recorder{}
		s := New("primary", DefaultConfig(), clk, pos, rec)

		var events []Event
		s.Events().Subscribe(func(e Event) { events = append(events, e) })

		s.LoadTrack(track(
			subtitle.Cue{StartTime: 0, EndTime: 2, Text: "Hi"},
			subtitle.Cue{StartTime: 3, EndTime: 5, Text: "Bye"},
		))
		So(events[0].Type, ShouldEqual, TrackChange)
		events = nil

		Convey("Cues appear and disappear as time advances", func() {
			So(texts(s.Sync(1.0)), ShouldResemble, []string{"Hi"})
			So(events[0].Type, ShouldEqual, CueStart)
			So(events[0].Cue.Text, ShouldEqual, "Hi")
			So(events[1].Type, ShouldEqual, CueUpdate)
			events = nil

			So(s.Sync(2.5), ShouldBeEmpty)
			So(len(events), ShouldEqual, 1)
			So(events[0].Type, ShouldEqual, CueEnd)
			So(events[0].Cue.Text, ShouldEqual, "Hi")
			events = nil

			So(texts(s.Sync(4.0)), ShouldResemble, []string{"Bye"})
			So(events[0].Type, ShouldEqual, CueStart)
			So(events[0].Cue.Text, ShouldEqual, "Bye")
		})

		Convey("Repeated syncs at the same time are idempotent", func() {
			first := s.Sync(1.0)
			n := len(events)
			second := s.Sync(1.0)
			So(second, ShouldResemble, first)
			So(len(events), ShouldEqual, n)
			So(s.Stats().Skipped, ShouldEqual, 1)

			cfg := DefaultConfig()
			cfg.MinTimeDelta = 0
			s.UpdateConfig(cfg)
			third := s.Sync(1.0)
			So(lo.Map(third, func(c ActiveCue, _ int) string { return c.ID }), ShouldResemble, []string{"Hi"})
			So(lo.CountBy(events, func(e Event) bool { return e.Type == CueStart }), ShouldEqual, 1)
		})

		Convey("Jumps backwards are handled like any other time", func() {
			s.Sync(4.0)
			So(texts(s.Sync(0.5)), ShouldResemble, []string{"Hi"})
			So(texts(s.Active()), ShouldResemble, []string{"Hi"})
		})

		Convey("Small moves are skipped", func() {
			s.Sync(1.0)
			s.Sync(1.01)
			So(s.Stats().Skipped, ShouldEqual, 1)
			So(s.Stats().LastTime, ShouldEqual, 1.0)
		})

		Convey("Loading a track clears active cues without cue_end", func() {
			s.Sync(1.0)
			events = nil
			s.LoadTrack(track(subtitle.Cue{StartTime: 10, EndTime: 11, Text: "x"}))
			So(s.Active(), ShouldBeEmpty)
			So(len(events), ShouldEqual, 1)
			So(events[0].Type, ShouldEqual, TrackChange)
			So(events[0].Track.Cues[0].Text, ShouldEqual, "x")
		})

		Convey("Ticks follow the clock", func() {
			s.Start()
			s.Start()
			pos.t = 1.0
			clk.Advance(100 * time.Millisecond)
			So(texts(s.Active()), ShouldResemble, []string{"Hi"})

			s.Stop()
			s.Stop()
			pos.t = 4.0
			clk.Advance(time.Second)
			So(texts(s.Active()), ShouldResemble, []string{"Hi"})
		})

		Convey("Losing the element drops every cue", func() {
			s.Sync(1.0)
			events = nil
			pos.err = recovery.New(recovery.ElementUnavailable, recovery.High, "gone")
			s.Tick()
			So(s.Active(), ShouldBeEmpty)
			So(events[0].Type, ShouldEqual, CueEnd)
			So(len(rec.errs), ShouldEqual, 1)

			s.Tick()
			So(len(rec.errs), ShouldEqual, 1)

			pos.err = nil
			pos.t = 4.0
			s.Tick()
			So(texts(s.Active()), ShouldResemble, []string{"Bye"})
		})

		Convey("An open circuit is not reported again", func() {
			pos.err = recovery.New(recovery.CircuitOpen, recovery.High, "open")
			s.Tick()
			So(rec.errs, ShouldBeEmpty)
		})
	})
}

func TestWindow(t *testing.T) {
	Convey("Given a cue [10,12) with look-ahead 2 and look-behind 1", t, func() {
		cfg := DefaultConfig()
		cfg.LookAhead = 2
		cfg.LookBehind = 1
		cfg.MinTimeDelta = 0
		s := New("primary", cfg, clock.NewFake(epoch), &position{}, nil)
		s.LoadTrack(track(subtitle.Cue{StartTime: 10, EndTime: 12, Text: "cue"}))

		Convey("It is in range on [9,14] and active on [10,12]", func() {
			for _, tc := range []struct {
				at      float64
				inRange bool
				active  bool
			}{
				{8.9, false, false},
				{9, true, false},
				{9.5, true, false},
				{10, true, true},
				{11, true, true},
				{12, true, true},
				{13, true, false},
				{14, true, false},
				{14.1, false, false},
			} {
				got := s.Sync(tc.at)
				So(len(got) == 1, ShouldEqual, tc.inRange)
				if tc.inRange {
					So(got[0].IsActive, ShouldEqual, tc.active)
				}
			}
		})

		Convey("Time remaining counts down to the adjusted end", func() {
			got := s.Sync(11.5)
			So(got[0].TimeRemaining, ShouldAlmostEqual, 0.5, 1e-9)
			So(s.Sync(13)[0].TimeRemaining, ShouldEqual, 0)
		})

		Convey("The global offset shifts playback time", func() {
			cfg.GlobalOffset = 1
			s.UpdateConfig(cfg)
			So(s.Sync(9.5)[0].IsActive, ShouldBeTrue)
		})
	})
}

func TestConcurrentLimit(t *testing.T) {
	Convey("Only the earliest-starting cues are kept", t, func() {
		s := New("primary", DefaultConfig(), clock.NewFake(epoch), &position{}, nil)
		s.LoadTrack(track(
			subtitle.Cue{StartTime: 4, EndTime: 10, Text: "d"},
			subtitle.Cue{StartTime: 1, EndTime: 10, Text: "a"},
			subtitle.Cue{StartTime: 3, EndTime: 10, Text: "c"},
			subtitle.Cue{StartTime: 2, EndTime: 10, Text: "b"},
		))

		got := s.Sync(5)
		So(texts(got), ShouldResemble, []string{"a", "b", "c"})
		So(lo.Map(got, func(c ActiveCue, _ int) int { return c.DisplayOrder }), ShouldResemble, []int{0, 1, 2})
	})
}

func TestAdjustTiming(t *testing.T) {
	Convey("Given a synchronizer with cues early and late in the track", t, func() {
		cfg := DefaultConfig()
		cfg.MinTimeDelta = 0
		s := New("primary", cfg, clock.NewFake(epoch), &position{}, nil)
		s.LoadTrack(track(
			subtitle.Cue{StartTime: 10, EndTime: 12, Text: "early"},
			subtitle.Cue{StartTime: 90, EndTime: 92, Text: "late"},
		))

		Convey("An adjustment shifts both cue boundaries", func() {
			s.AdjustTiming(10, 1)
			got := s.Sync(10.5)
			So(got, ShouldBeEmpty)

			got = s.Sync(12.5)
			So(texts(got), ShouldResemble, []string{"early"})
			So(got[0].AdjustedStartTime, ShouldEqual, 11.0)
			So(got[0].AdjustedEndTime, ShouldEqual, 13.0)
		})

		Convey("Smoothing dampens the adjustment", func() {
			cfg.Smoothing = true
			s.UpdateConfig(cfg)
			s.AdjustTiming(10, 1)
			got := s.Sync(11)
			So(got[0].AdjustedStartTime, ShouldAlmostEqual, 10.8, 1e-9)
		})

		Convey("The nearest adjustment applies to each cue", func() {
			s.AdjustTiming(0, 0.5)
			s.AdjustTiming(100, -0.5)
			So(s.Sync(10.4), ShouldBeEmpty)
			So(texts(s.Sync(10.6)), ShouldResemble, []string{"early"})
			So(texts(s.Sync(89.6)), ShouldResemble, []string{"late"})
			So(len(s.Adjustments()), ShouldEqual, 2)

			s.ResetAdjustments()
			So(s.Adjustments(), ShouldBeEmpty)
		})

		Convey("History is bounded", func() {
			cfg.AdjustmentHistory = 2
			s.UpdateConfig(cfg)
			for i := 0; i < 5; i++ {
				s.AdjustTiming(float64(i), 0.1)
			}
			So(len(s.Adjustments()), ShouldEqual, 2)
			So(s.Stats().Adjustments, ShouldEqual, 2)
		})
	})
}
