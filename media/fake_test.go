package media

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFakeElement(t *testing.T) {
	Convey("Given a fake element", t, func() {
		el := NewFakeElement(60)

		var seen []EventType
		record := func(e Event) { seen = append(seen, e.Type) }
		for _, e := range Events {
			el.Subscribe(e, record)
		}

		Convey("It starts paused at zero", func() {
			So(el.Ready(), ShouldBeTrue)
			v, err := el.Get(Paused)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, true)
			v, _ = el.Get(CurrentTime)
			So(v, ShouldEqual, 0.0)
		})

		Convey("Advance only moves time while playing and scales by rate", func() {
			el.Advance(time.Second)
			So(el.Snapshot().CurrentTime, ShouldEqual, 0.0)

			So(el.Play(context.Background()), ShouldBeNil)
			So(el.Set(PlaybackRate, 2.0), ShouldBeNil)
			el.Advance(500 * time.Millisecond)
			So(el.Snapshot().CurrentTime, ShouldEqual, 1.0)
			So(seen, ShouldContain, EventTimeUpdate)
		})

		Convey("Advance does not move while buffering", func() {
			So(el.Play(context.Background()), ShouldBeNil)
			el.SetReadyState(HaveCurrentData)
			el.Advance(time.Second)
			So(el.Snapshot().CurrentTime, ShouldEqual, 0.0)
			So(seen, ShouldContain, EventWaiting)
		})

		Convey("Playing past the duration ends playback", func() {
			So(el.Play(context.Background()), ShouldBeNil)
			el.SetTime(59.5)
			el.Advance(time.Second)

			snap := el.Snapshot()
			So(snap.Ended, ShouldBeTrue)
			So(snap.CurrentTime, ShouldEqual, 60.0)
			So(seen[len(seen)-1], ShouldEqual, EventEnded)
		})

		Convey("Programmatic seeks are recorded, simulated user seeks are not", func() {
			So(el.Set(CurrentTime, 4.9), ShouldBeNil)
			el.SimulateSeek(30)
			So(el.Seeks(), ShouldResemble, []float64{4.9})
			So(el.Snapshot().CurrentTime, ShouldEqual, 30.0)
			So(seen, ShouldContain, EventSeeked)
		})

		Convey("Read-only and unknown properties are rejected", func() {
			So(errors.Is(el.Set(Duration, 1.0), ErrReadOnly), ShouldBeTrue)
			So(errors.Is(el.Set("bogus", 1), ErrUnknownProperty), ShouldBeTrue)
			_, err := el.Get("bogus")
			So(errors.Is(err, ErrUnknownProperty), ShouldBeTrue)
		})

		Convey("PlayErr rejects Play", func() {
			el.PlayErr = errors.New("gesture required")
			So(el.Play(context.Background()), ShouldEqual, el.PlayErr)
			So(el.Snapshot().Paused, ShouldBeTrue)
		})

		Convey("A detached element is not ready", func() {
			el.Detach()
			So(el.Ready(), ShouldBeFalse)
			_, err := el.Get(CurrentTime)
			So(err, ShouldEqual, ErrNotReady)
			So(el.Set(Volume, 0.5), ShouldEqual, ErrNotReady)
			So(seen, ShouldContain, EventEmptied)
		})

		Convey("Unsubscribe removes the handler", func() {
			calls := 0
			unsub := el.Subscribe(EventPause, func(Event) { calls++ })
			So(el.Listeners(EventPause), ShouldEqual, 2)
			unsub()
			So(el.Pause(), ShouldBeNil)
			So(calls, ShouldEqual, 0)
		})
	})
}

func TestProperty(t *testing.T) {
	Convey("Writable properties", t, func() {
		So(CurrentTime.Writable(), ShouldBeTrue)
		So(Volume.Writable(), ShouldBeTrue)
		So(Duration.Writable(), ShouldBeFalse)
		So(ReadyState.Writable(), ShouldBeFalse)
	})
}
