package segment

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/filesystem"
	"github.com/subloop-cli/subloop/recovery"
)

const loopsFile = `media: song.mp3
loops:
  - label: Chorus
    start: 83.5
    end: "1:35.250"
    count: 3
  - label: solo
    start: "2:10"
    end: 142
`

func TestBookmarks(t *testing.T) {
	Convey("Given a loops file on an in-memory filesystem", t, func() {
		filesystem.SetMemMapFs()
		defer filesystem.SetOsFs()

		So(filesystem.API().WriteFile("/loops/song.yaml", []byte(loopsFile), 0644), ShouldBeNil)

		Convey("Numbers and clock strings both read as seconds", func() {
			b, err := LoadBookmarks("/loops/song.yaml")
			So(err, ShouldBeNil)
			So(b.Media, ShouldEqual, "song.mp3")
			So(len(b.Loops), ShouldEqual, 2)

			chorus := b.Loops[0].Loop()
			So(chorus.StartTime, ShouldEqual, 83.5)
			So(chorus.EndTime, ShouldAlmostEqual, 95.25, 1e-9)
			So(chorus.LoopCount, ShouldEqual, 3)

			So(float64(b.Loops[1].Start), ShouldEqual, 130.0)
		})

		Convey("Find ignores case", func() {
			b, _ := LoadBookmarks("/loops/song.yaml")
			So(b.Find("chorus").IsPresent(), ShouldBeTrue)
			So(b.Find("SOLO").MustGet().Label, ShouldEqual, "solo")
			So(b.Find("bridge").IsAbsent(), ShouldBeTrue)
		})

		Convey("Saved bookmarks load back", func() {
			b := &Bookmarks{Media: "talk.mkv"}
			b.Add(Loop{StartTime: 1.5, EndTime: 4})
			b.Add(Loop{Label: "intro", StartTime: 3661, EndTime: 3670, LoopCount: 2})
			So(SaveBookmarks("/out/nested/talk.yaml", b), ShouldBeNil)

			got, err := LoadBookmarks("/out/nested/talk.yaml")
			So(err, ShouldBeNil)
			So(got.Loops[0].Label, ShouldEqual, "loop 1")
			So(got.Find("intro").MustGet().Loop().StartTime, ShouldEqual, 3661.0)
			So(got.Loops[1].Count, ShouldEqual, 2)
		})

		Convey("An inverted range is rejected", func() {
			bad := "loops:\n  - label: broken\n    start: 10\n    end: 5\n"
			So(filesystem.API().WriteFile("/loops/bad.yaml", []byte(bad), 0644), ShouldBeNil)

			_, err := LoadBookmarks("/loops/bad.yaml")
			So(err, ShouldNotBeNil)
			So(recovery.HasCode(err, recovery.ValidationError), ShouldBeTrue)
		})

		Convey("A malformed timestamp is reported", func() {
			bad := "loops:\n  - label: x\n    start: soon\n    end: 5\n"
			So(filesystem.API().WriteFile("/loops/worse.yaml", []byte(bad), 0644), ShouldBeNil)

			_, err := LoadBookmarks("/loops/worse.yaml")
			So(err, ShouldNotBeNil)
		})
	})
}
