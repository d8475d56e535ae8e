package metrics

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/subtitle"
)

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented session", t, func() {
		clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		el := media.NewFakeElement(60)

		cfg := session.DefaultConfig()
		cfg.Proxy.CacheTTL = 0
		s := session.New(session.Options{
			Config: cfg,
			Clock:  clk,
			Source: session.SourceFunc(func(context.Context) (media.Element, error) { return el, nil }),
		})

		m := New()
		detach := m.Instrument(s)
		So(s.Start(context.Background()), ShouldBeNil)
		defer s.Shutdown()

		Convey("Rejected commands are counted by code", func() {
			_ = s.SetPlaybackRate(5)
			_ = s.SetPlaybackRate(5)
			So(testutil.ToFloat64(m.Errors.WithLabelValues(string(recovery.InvalidRate), "low")), ShouldEqual, 2)
		})

		Convey("State transitions are counted", func() {
			So(s.Play(context.Background()), ShouldBeNil)
			clk.Flush()
			So(testutil.ToFloat64(m.Transitions.WithLabelValues("paused", "playing")), ShouldEqual, 1)
		})

		Convey("Cue starts and ends move the active gauge", func() {
			track := &subtitle.Track{ID: "en", Cues: []subtitle.Cue{{ID: "1", StartTime: 0, EndTime: 2, Text: "Hi"}}}
			So(s.LoadSubtitleTrack(session.Primary, track), ShouldBeNil)
			So(testutil.ToFloat64(m.ActiveCues.WithLabelValues("primary")), ShouldEqual, 1)

			el.SetTime(3)
			clk.Advance(100 * time.Millisecond)
			So(testutil.ToFloat64(m.ActiveCues.WithLabelValues("primary")), ShouldEqual, 0)
			So(testutil.ToFloat64(m.Cues.WithLabelValues("primary", "cue_end")), ShouldEqual, 1)
		})

		Convey("Loop iterations are counted", func() {
			_, err := s.CreateSegmentLoop(segment.Loop{StartTime: 1, EndTime: 2})
			So(err, ShouldBeNil)
			el.SetTime(2)
			clk.Advance(40 * time.Millisecond)

			So(testutil.ToFloat64(m.Iterations), ShouldEqual, 1)
			So(testutil.ToFloat64(m.Loops.WithLabelValues("loop_start")), ShouldEqual, 1)
		})

		Convey("Detached collectors stop counting", func() {
			detach()
			_ = s.SetPlaybackRate(5)
			So(testutil.ToFloat64(m.Errors.WithLabelValues(string(recovery.InvalidRate), "low")), ShouldEqual, 0)
		})

		Convey("The handler serves the registry", func() {
			_ = s.SetVolume(2)
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			So(rec.Code, ShouldEqual, 200)
			So(rec.Body.String(), ShouldContainSubstring, "subloop_errors_total")
		})
	})
}
