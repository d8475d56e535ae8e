package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/subtitle"
)

// fakeMPV answers the JSON-IPC subset the host uses and can broadcast events.
type fakeMPV struct {
	ln   net.Listener
	path string

	mu       sync.Mutex
	props    map[string]any
	commands [][]any
	conns    []net.Conn
}

func newFakeMPV(t *testing.T) *fakeMPV {
	path := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	f := &fakeMPV{
		ln:   ln,
		path: path,
		props: map[string]any{
			"path":             "/videos/a.mkv",
			"time-pos":         12.5,
			"duration":         60.0,
			"speed":            1.0,
			"volume":           50.0,
			"mute":             false,
			"pause":            true,
			"eof-reached":      false,
			"paused-for-cache": false,
			"width":            1920.0,
			"height":           1080.0,
		},
	}
	go f.serve()
	return f
}

func (f *fakeMPV) serve() {
	for {
		c, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, c)
		f.mu.Unlock()
		go f.handle(c)
	}
}

func (f *fakeMPV) handle(c net.Conn) {
	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		var cmd ipcCommand
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			continue
		}
		reply := f.reply(cmd.Command)
		reply["request_id"] = cmd.RequestID
		f.write(c, reply)
	}
}

func (f *fakeMPV) reply(cmd []any) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, cmd)
	name, _ := cmd[1%len(cmd)].(string)

	switch cmd[0] {
	case "get_property":
		v, ok := f.props[name]
		if !ok {
			return map[string]any{"error": "property unavailable"}
		}
		return map[string]any{"error": "success", "data": v}
	case "set_property":
		f.props[name] = cmd[2]
	case "seek":
		f.props["time-pos"] = cmd[1]
	}
	return map[string]any{"error": "success"}
}

func (f *fakeMPV) write(c net.Conn, msg map[string]any) {
	line, _ := json.Marshal(msg)
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = c.Write(append(line, '\n'))
}

func (f *fakeMPV) broadcast(msg map[string]any) {
	f.mu.Lock()
	conns := append([]net.Conn(nil), f.conns...)
	f.mu.Unlock()

	for _, c := range conns {
		f.write(c, msg)
	}
}

func (f *fakeMPV) set(name string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v == nil {
		delete(f.props, name)
		return
	}
	f.props[name] = v
}

func (f *fakeMPV) prop(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[name]
}

func (f *fakeMPV) sent(verb string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.Filter(f.commands, func(cmd []any, _ int) bool { return cmd[0] == verb })
}

func (f *fakeMPV) close() {
	_ = f.ln.Close()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestHost(t *testing.T) {
	Convey("Given a host attached to mpv", t, func() {
		mpv := newFakeMPV(t)
		defer mpv.close()

		host := New(Options{ReadyTimeout: time.Second})
		So(host.Attach(mpv.path), ShouldBeNil)
		defer host.Close()

		So(eventually(func() bool { return len(mpv.sent("observe_property")) == len(observed) }), ShouldBeTrue)

		el, err := host.Acquire(context.Background())
		So(err, ShouldBeNil)
		So(el.Ready(), ShouldBeTrue)

		url, err := host.URL()
		So(err, ShouldBeNil)
		So(url, ShouldEqual, "/videos/a.mkv")

		Convey("Properties are read in media units", func() {
			pos, err := el.Get(media.CurrentTime)
			So(err, ShouldBeNil)
			So(pos, ShouldEqual, 12.5)

			v, err := el.Get(media.Volume)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.5)

			w, err := el.Get(media.VideoWidth)
			So(err, ShouldBeNil)
			So(w, ShouldEqual, 1920)

			rs, err := el.Get(media.ReadyState)
			So(err, ShouldBeNil)
			So(rs, ShouldEqual, media.HaveEnoughData)

			_, err = el.Get("bogus")
			So(errors.Is(err, media.ErrUnknownProperty), ShouldBeTrue)
		})

		Convey("Nothing playing is not ready", func() {
			mpv.set("time-pos", nil)
			_, err := el.Get(media.CurrentTime)
			So(errors.Is(err, media.ErrNotReady), ShouldBeTrue)
		})

		Convey("Writes become mpv commands", func() {
			So(el.Set(media.Volume, 0.3), ShouldBeNil)
			So(mpv.prop("volume"), ShouldAlmostEqual, 30.0)

			So(el.Set(media.CurrentTime, 5.0), ShouldBeNil)
			So(mpv.sent("seek"), ShouldResemble, [][]any{{"seek", 5.0, seekFlagExact}})

			So(el.Play(context.Background()), ShouldBeNil)
			So(mpv.prop("pause"), ShouldEqual, false)

			So(errors.Is(el.Set(media.Duration, 3.0), media.ErrReadOnly), ShouldBeTrue)
		})

		Convey("mpv events become media events", func() {
			got := make(chan media.EventType, 8)
			for _, e := range []media.EventType{media.EventPlay, media.EventSeeking, media.EventSeeked} {
				el.Subscribe(e, func(ev media.Event) { got <- ev.Type })
			}

			mpv.broadcast(map[string]any{"event": "property-change", "id": 2, "name": "pause", "data": false})
			mpv.broadcast(map[string]any{"event": "seek"})
			mpv.broadcast(map[string]any{"event": "playback-restart"})

			var types []media.EventType
			So(eventually(func() bool {
				for {
					select {
					case e := <-got:
						types = append(types, e)
					default:
						return len(types) == 3
					}
				}
			}), ShouldBeTrue)
			So(types, ShouldResemble, []media.EventType{media.EventPlay, media.EventSeeking, media.EventSeeked})
		})

		Convey("Loading another file replaces the element", func() {
			routes := make(chan string, 1)
			host.OnRoute(func(url string) { routes <- url })

			mpv.broadcast(map[string]any{"event": "start-file"})
			So(eventually(func() bool { return !el.Ready() }), ShouldBeTrue)

			mpv.set("path", "/videos/b.mkv")
			mpv.broadcast(map[string]any{"event": "file-loaded"})

			next, err := host.Acquire(context.Background())
			So(err, ShouldBeNil)
			So(next.ID(), ShouldNotEqual, el.ID())
			So(<-routes, ShouldEqual, "/videos/b.mkv")
		})

		Convey("Playlist moves are history changes", func() {
			history := make(chan string, 1)
			host.OnHistory(func(url string) { history <- url })

			mpv.broadcast(map[string]any{"event": "property-change", "id": 9, "name": "playlist-pos", "data": 0})
			mpv.broadcast(map[string]any{"event": "property-change", "id": 9, "name": "playlist-pos", "data": 1})

			select {
			case url := <-history:
				So(url, ShouldEqual, "/videos/a.mkv")
			case <-time.After(2 * time.Second):
				So("no history change", ShouldBeEmpty)
			}
		})

		Convey("OSD text and chapters are sent to mpv", func() {
			So(host.ShowText("Hello", 2*time.Second), ShouldBeNil)
			So(mpv.sent("show-text"), ShouldResemble, [][]any{{"show-text", "Hello", 2000.0}})

			So(host.SetChapters([]Chapter{{Title: "Loop", Time: 4}}), ShouldBeNil)
			So(mpv.prop("chapter-list"), ShouldResemble, []any{map[string]any{"title": "Loop", "time": 4.0}})
		})

		Convey("Losing mpv replaces the element and ends the host", func() {
			replaced := make(chan string, 1)
			host.OnReplaced(func(id string) { replaced <- id })

			mpv.close()

			select {
			case <-host.Done():
			case <-time.After(2 * time.Second):
			}
			So(el.Ready(), ShouldBeFalse)
			So(<-replaced, ShouldEqual, el.ID())

			_, err := host.Acquire(context.Background())
			So(err, ShouldEqual, ErrClosed)
		})
	})
}

func TestSanitizeMediaTarget(t *testing.T) {
	Convey("Media targets are validated before reaching mpv", t, func() {
		ok := map[string]string{
			"/videos/../videos/a.mkv":   "/videos/a.mkv",
			"https://example.com/v.mp4": "https://example.com/v.mp4",
			"file:///videos/a.mkv":      "file:///videos/a.mkv",
		}
		for in, want := range ok {
			got, err := sanitizeMediaTarget(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		for _, bad := range []string{"", "--script=evil.lua", "ftp://example.com/v.mp4", "a\nb"} {
			_, err := sanitizeMediaTarget(bad)
			So(err, ShouldNotBeNil)
		}
	})
}

func TestOverlay(t *testing.T) {
	Convey("Given an overlay on a connected host", t, func() {
		mpv := newFakeMPV(t)
		defer mpv.close()

		host := New(Options{ReadyTimeout: time.Second})
		So(host.Attach(mpv.path), ShouldBeNil)
		defer host.Close()

		overlay := NewOverlay(host)
		defer overlay.Close()

		cue := func(text string, remaining float64, active bool) subsync.ActiveCue {
			return subsync.ActiveCue{
				Cue:           subtitle.Cue{Text: text, EndTime: 10},
				IsActive:      active,
				TimeRemaining: remaining,
			}
		}

		Convey("Active cues of both slots are stacked on the OSD", func() {
			overlay.Cues(
				[]subsync.ActiveCue{cue("<i>Hello</i>", 1.5, true), cue("later", 5, false)},
				[]subsync.ActiveCue{cue("Bonjour", 1, true)},
			)

			So(eventually(func() bool { return len(mpv.sent("show-text")) == 1 }), ShouldBeTrue)
			So(mpv.sent("show-text")[0], ShouldResemble, []any{"show-text", "Hello\nBonjour", 1750.0})

			Convey("The same text is not sent twice", func() {
				overlay.Cues([]subsync.ActiveCue{cue("Hello", 1, true)}, []subsync.ActiveCue{cue("Bonjour", 0.5, true)})
				overlay.Cues(nil, nil)

				So(eventually(func() bool { return len(mpv.sent("show-text")) == 2 }), ShouldBeTrue)
				So(mpv.sent("show-text")[1], ShouldResemble, []any{"show-text", "", 0.0})
			})
		})

		Convey("The active loop is marked on the timeline", func() {
			overlay.Loop(mo.Some(segment.ActiveLoop{Loop: segment.Loop{Label: "chorus", StartTime: 4, EndTime: 8}}))
			So(eventually(func() bool { return mpv.prop("chapter-list") != nil }), ShouldBeTrue)
			So(mpv.prop("chapter-list"), ShouldResemble, []any{
				map[string]any{"title": "chorus 00:04.000", "time": 4.0},
				map[string]any{"title": "chorus end", "time": 8.0},
			})

			overlay.Loop(mo.None[segment.ActiveLoop]())
			So(eventually(func() bool {
				list, _ := mpv.prop("chapter-list").([]any)
				return list != nil && len(list) == 0
			}), ShouldBeTrue)
		})
	})
}
