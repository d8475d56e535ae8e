package clock

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake(t *testing.T) {
	Convey("Given a fake clock", t, func() {
		c := NewFake(epoch)

		Convey("AfterFunc fires once when its deadline is reached", func() {
			calls := 0
			c.AfterFunc(100*time.Millisecond, func() { calls++ })

			c.Advance(99 * time.Millisecond)
			So(calls, ShouldEqual, 0)

			c.Advance(time.Millisecond)
			So(calls, ShouldEqual, 1)

			c.Advance(time.Second)
			So(calls, ShouldEqual, 1)
			So(c.Pending(), ShouldEqual, 0)
		})

		Convey("Every fires at each interval and Now matches the deadline", func() {
			var seen []time.Duration
			c.Every(30*time.Millisecond, func() { seen = append(seen, c.Now().Sub(epoch)) })

			c.Advance(100 * time.Millisecond)
			So(seen, ShouldResemble, []time.Duration{
				30 * time.Millisecond,
				60 * time.Millisecond,
				90 * time.Millisecond,
			})
		})

		Convey("Stop is idempotent and cancels the timer", func() {
			calls := 0
			h := c.Every(10*time.Millisecond, func() { calls++ })
			c.Advance(25 * time.Millisecond)
			h.Stop()
			h.Stop()
			c.Advance(time.Second)
			So(calls, ShouldEqual, 2)
		})

		Convey("Stop helper tolerates nil and clears the field", func() {
			var h Handle
			So(Stop(h), ShouldBeNil)

			h = c.AfterFunc(time.Second, func() {})
			h = Stop(h)
			So(h, ShouldBeNil)
			So(c.Pending(), ShouldEqual, 0)
		})

		Convey("Timers scheduled from callbacks fire inside the same advance", func() {
			order := []string{}
			c.AfterFunc(10*time.Millisecond, func() {
				order = append(order, "first")
				c.AfterFunc(10*time.Millisecond, func() { order = append(order, "second") })
			})
			c.Advance(50 * time.Millisecond)
			So(order, ShouldResemble, []string{"first", "second"})
		})

		Convey("Posted callbacks wait for Flush", func() {
			order := []int{}
			c.Post(func() {
				order = append(order, 1)
				c.Post(func() { order = append(order, 3) })
			})
			c.Post(func() { order = append(order, 2) })
			So(order, ShouldBeEmpty)

			c.Flush()
			So(order, ShouldResemble, []int{1, 2, 3})
		})

		Convey("Advance drains posts queued by timers", func() {
			ran := false
			c.AfterFunc(time.Millisecond, func() {
				c.Post(func() { ran = true })
			})
			c.Advance(time.Millisecond)
			So(ran, ShouldBeTrue)
		})

		Convey("Equal deadlines fire in registration order", func() {
			order := []int{}
			c.AfterFunc(5*time.Millisecond, func() { order = append(order, 1) })
			c.AfterFunc(5*time.Millisecond, func() { order = append(order, 2) })
			c.Advance(5 * time.Millisecond)
			So(order, ShouldResemble, []int{1, 2})
		})
	})
}

func TestLoop(t *testing.T) {
	Convey("Given a running loop", t, func() {
		l := NewLoop()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() { _ = l.Run(ctx) }()

		Convey("Posted callbacks run in order", func() {
			out := make(chan int, 3)
			l.Post(func() { out <- 1 })
			l.Post(func() { out <- 2 })
			l.Post(func() { out <- 3 })

			So(<-out, ShouldEqual, 1)
			So(<-out, ShouldEqual, 2)
			So(<-out, ShouldEqual, 3)
		})

		Convey("AfterFunc dispatches through the loop", func() {
			fired := make(chan struct{})
			l.AfterFunc(5*time.Millisecond, func() { close(fired) })

			select {
			case <-fired:
			case <-time.After(time.Second):
				t.Fatal("timer never fired")
			}
		})

		Convey("A stopped timer does not fire", func() {
			fired := make(chan struct{}, 1)
			h := l.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
			h.Stop()
			h.Stop()

			select {
			case <-fired:
				t.Fatal("stopped timer fired")
			case <-time.After(60 * time.Millisecond):
			}
		})

		Reset(func() {
			l.Close()
		})
	})
}

func TestConversions(t *testing.T) {
	Convey("Seconds and Duration round-trip fractional media time", t, func() {
		So(Seconds(1500*time.Millisecond), ShouldEqual, 1.5)
		So(Duration(0.25), ShouldEqual, 250*time.Millisecond)
	})
}
