package session

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/subtitle"
	"github.com/subloop-cli/subloop/tracker"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type location struct {
	url string
}

func (l *location) URL() (string, error) {
	return l.url, nil
}

type memoryStore map[string]navigation.PreservedState

func (m memoryStore) Save(state navigation.PreservedState) error {
	m[state.VideoID] = state
	return nil
}

func (m memoryStore) Get(videoID string) mo.Option[navigation.PreservedState] {
	if state, ok := m[videoID]; ok {
		return mo.Some(state)
	}
	return mo.None[navigation.PreservedState]()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Proxy.CacheTTL = 0
	return cfg
}

func TestSession(t *testing.T) {
	Convey("Given a started session on a fake element", t, func() {
		clk := clock.NewFake(epoch)
		el := media.NewFakeElement(60)
		current := el
		loc := &location{url: "file:///videos/a.mkv"}
		store := memoryStore{}

		s := New(Options{
			Config: testConfig(),
			Clock:  clk,
			Source: SourceFunc(func(context.Context) (media.Element, error) { return current, nil }),
			Host:   navigation.Host{URL: loc},
			Store:  store,
		})
		So(s.Start(context.Background()), ShouldBeNil)
		So(s.Start(context.Background()), ShouldBeNil)
		defer s.Shutdown()

		So(s.Running(), ShouldBeTrue)
		So(s.State(), ShouldEqual, tracker.Paused)
		So(s.VideoID(), ShouldEqual, "/videos/a.mkv")

		Convey("Commands are validated before reaching the element", func() {
			So(recovery.HasCode(s.SetPlaybackRate(3), recovery.InvalidRate), ShouldBeTrue)
			So(recovery.HasCode(s.SetPlaybackRate(0.1), recovery.InvalidRate), ShouldBeTrue)
			So(recovery.HasCode(s.SetVolume(1.5), recovery.ValidationError), ShouldBeTrue)
			So(recovery.HasCode(s.Seek(-1), recovery.InvalidTime), ShouldBeTrue)
			So(recovery.HasCode(s.Seek(math.Inf(1)), recovery.InvalidTime), ShouldBeTrue)
			So(el.Seeks(), ShouldBeEmpty)

			So(s.SetPlaybackRate(1.5), ShouldBeNil)
			So(s.SetVolume(0.4), ShouldBeNil)
			So(s.SetMuted(true), ShouldBeNil)
			So(s.Seek(100), ShouldBeNil)

			meta := el.Snapshot()
			So(meta.PlaybackRate, ShouldEqual, 1.5)
			So(meta.Volume, ShouldEqual, 0.4)
			So(meta.Muted, ShouldBeTrue)
			So(el.Seeks(), ShouldResemble, []float64{60})

			So(s.Play(context.Background()), ShouldBeNil)
			clk.Flush()
			So(s.State(), ShouldEqual, tracker.Playing)
		})

		Convey("Rejected play surfaces as a playback failure", func() {
			el.PlayErr = context.Canceled
			err := s.Play(context.Background())
			So(recovery.HasCode(err, recovery.PlaybackFailed), ShouldBeTrue)
		})

		Convey("Loaded subtitles follow playback", func() {
			var cues []subsync.Event
			s.SubtitleSync(Primary).Subscribe(func(e subsync.Event) { cues = append(cues, e) })

			track := &subtitle.Track{ID: "en", Cues: []subtitle.Cue{
				{ID: "1", StartTime: 0, EndTime: 2, Text: "Hi"},
				{ID: "2", StartTime: 3, EndTime: 5, Text: "Bye"},
			}}
			So(s.LoadSubtitleTrack(Primary, track), ShouldBeNil)
			So(recovery.HasCode(s.LoadSubtitleTrack("tertiary", track), recovery.ValidationError), ShouldBeTrue)

			el.SetTime(1.0)
			clk.Advance(100 * time.Millisecond)
			So(lo.Map(s.ActiveCues(Primary), func(c subsync.ActiveCue, _ int) string { return c.Text }), ShouldResemble, []string{"Hi"})

			el.SetTime(4.0)
			clk.Advance(100 * time.Millisecond)
			So(lo.Map(s.ActiveCues(Primary), func(c subsync.ActiveCue, _ int) string { return c.Text }), ShouldResemble, []string{"Bye"})
			So(s.ActiveCues(Secondary), ShouldBeEmpty)

			types := lo.Map(cues, func(e subsync.Event, _ int) subsync.EventType { return e.Type })
			So(types, ShouldContain, subsync.CueEnd)
			So(types[0], ShouldEqual, subsync.TrackChange)

			So(s.AdjustSubtitleTiming(4, 0.5), ShouldBeNil)
			So(recovery.HasCode(s.AdjustSubtitleTiming(4, math.NaN()), recovery.InvalidTime), ShouldBeTrue)
		})

		Convey("A missing subtitle file is a track load failure", func() {
			err := s.LoadSubtitleFile(Primary, "/does/not/exist.srt")
			So(recovery.HasCode(err, recovery.TrackLoadFailed), ShouldBeTrue)
		})

		Convey("Loop seeks are told apart from user seeks", func() {
			var loops []segment.Event
			s.SegmentLoop().Subscribe(func(e segment.Event) { loops = append(loops, e) })

			_, err := s.CreateSegmentLoop(segment.Loop{StartTime: 5, EndTime: 8})
			So(err, ShouldBeNil)

			el.SetTime(8)
			clk.Advance(50 * time.Millisecond)
			So(el.Seeks(), ShouldResemble, []float64{4.9})

			el.SimulateSeek(20)
			clk.Advance(10 * time.Millisecond)

			types := lo.Map(loops, func(e segment.Event, _ int) segment.EventType { return e.Type })
			So(types, ShouldResemble, []segment.EventType{segment.LoopStart, segment.LoopIteration, segment.LoopSeekOutside})

			So(s.DisableSegmentLoop(), ShouldBeNil)
			So(s.EnableSegmentLoop(), ShouldBeNil)
			s.StopSegmentLoop()
			So(s.ActiveLoop().IsAbsent(), ShouldBeTrue)
			So(s.EnableSegmentLoop(), ShouldNotBeNil)

			_, err = s.CreateSegmentLoop(segment.Loop{StartTime: 8, EndTime: 5})
			So(recovery.HasCode(err, recovery.ValidationError), ShouldBeTrue)
		})

		Convey("A user seek past the loop end is not mistaken for an iteration", func() {
			var loops []segment.Event
			s.SegmentLoop().Subscribe(func(e segment.Event) { loops = append(loops, e) })

			_, err := s.CreateSegmentLoop(segment.Loop{StartTime: 5, EndTime: 8})
			So(err, ShouldBeNil)
			el.SetTime(6)
			clk.Advance(50 * time.Millisecond)

			// the host reports the new position before it reports the seek as done
			el.Emit(media.EventSeeking)
			el.SetTime(20)
			clk.Advance(50 * time.Millisecond)
			el.Emit(media.EventSeeked)

			types := lo.Map(loops, func(e segment.Event, _ int) segment.EventType { return e.Type })
			So(types, ShouldResemble, []segment.EventType{segment.LoopStart, segment.LoopSeekOutside})
			So(el.Seeks(), ShouldBeEmpty)

			a, ok := s.ActiveLoop().Get()
			So(ok, ShouldBeTrue)
			So(a.Enabled, ShouldBeTrue)
			So(a.TotalIterations, ShouldEqual, 0)
		})

		Convey("Navigating away preserves state and rebinds to the new element", func() {
			_, _ = s.CreateSegmentLoop(segment.Loop{StartTime: 25, EndTime: 40})
			So(s.SetVolume(0.5), ShouldBeNil)
			el.SetTime(30)
			clk.Advance(300 * time.Millisecond)

			var navs []navigation.Event
			s.Navigation().Subscribe(func(e navigation.Event) { navs = append(navs, e) })

			next := media.NewFakeElement(90)
			current = next
			loc.url = "file:///videos/b.mkv"
			clk.Advance(1300 * time.Millisecond)

			So(len(navs), ShouldEqual, 1)
			So(navs[0].PreviousVideoID, ShouldEqual, "/videos/a.mkv")
			So(s.VideoID(), ShouldEqual, "/videos/b.mkv")
			So(s.ActiveLoop().IsAbsent(), ShouldBeTrue)
			So(el.Listeners(media.EventSeeked), ShouldEqual, 0)

			saved, ok := store["/videos/a.mkv"]
			So(ok, ShouldBeTrue)
			So(saved.CurrentTime, ShouldEqual, 30)
			So(saved.ActiveLoop.StartTime, ShouldEqual, 25)

			So(s.Seek(10), ShouldBeNil)
			So(next.Seeks(), ShouldResemble, []float64{10})

			Convey("and coming back restores it", func() {
				back := media.NewFakeElement(60)
				current = back
				loc.url = "file:///videos/a.mkv"
				clk.Advance(1300 * time.Millisecond)

				So(back.Seeks(), ShouldContain, 30.0)
				So(back.Snapshot().Volume, ShouldEqual, 0.5)
				a, ok := s.ActiveLoop().Get()
				So(ok, ShouldBeTrue)
				So(a.StartTime, ShouldEqual, 25)
			})
		})

		Convey("A lost element is re-acquired", func() {
			replacement := media.NewFakeElement(60)
			current = replacement

			var navs []navigation.Event
			s.Navigation().Subscribe(func(e navigation.Event) { navs = append(navs, e) })

			el.Detach()
			clk.Advance(time.Second)

			So(len(navs), ShouldEqual, 1)
			So(navs[0].Type, ShouldEqual, navigation.ElementReplaced)
			So(navs[0].SameVideo(), ShouldBeTrue)
			So(s.Breaker().State(), ShouldEqual, recovery.Closed)

			So(s.Seek(5), ShouldBeNil)
			So(replacement.Seeks(), ShouldContain, 5.0)
		})

		Convey("Stored state is resumed on start", func() {
			s.Shutdown()

			store["/videos/a.mkv"] = navigation.PreservedState{VideoID: "/videos/a.mkv", CurrentTime: 12, PlaybackRate: 1.25, Volume: 0.7}
			resumed := media.NewFakeElement(60)
			current = resumed

			s2 := New(Options{
				Config: testConfig(),
				Clock:  clk,
				Source: SourceFunc(func(context.Context) (media.Element, error) { return current, nil }),
				Host:   navigation.Host{URL: loc},
				Store:  store,
			})
			So(s2.Start(context.Background()), ShouldBeNil)
			defer s2.Shutdown()

			So(resumed.Seeks(), ShouldResemble, []float64{12})
			So(resumed.Snapshot().PlaybackRate, ShouldEqual, 1.25)
		})

		Convey("Shutdown releases everything and is idempotent", func() {
			s.Shutdown()
			s.Shutdown()

			So(s.Running(), ShouldBeFalse)
			So(clk.Pending(), ShouldEqual, 0)
			So(el.Listeners(media.EventTimeUpdate), ShouldEqual, 0)
			So(s.Seek(1), ShouldEqual, ErrClosed)
			So(s.Start(context.Background()), ShouldEqual, ErrClosed)
		})
	})
}

func TestStartWithoutElement(t *testing.T) {
	Convey("Start fails when no element can be acquired", t, func() {
		s := New(Options{
			Config: testConfig(),
			Clock:  clock.NewFake(epoch),
			Source: SourceFunc(func(context.Context) (media.Element, error) { return nil, nil }),
		})
		err := s.Start(context.Background())
		So(recovery.HasCode(err, recovery.ElementNotFound), ShouldBeTrue)
		So(s.Running(), ShouldBeFalse)
	})
}
