package util

import (
	"math"
	"regexp"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/filesystem"
)

func TestSanitizeFilename(t *testing.T) {
	Convey("SanitizeFilename", t, func() {
		Convey("Should replace invalid chars", func() {
			So(SanitizeFilename("file:name?.txt"), ShouldEqual, "file_name_.txt")
		})
		Convey("Should collapse underscores", func() {
			So(SanitizeFilename("file__name.txt"), ShouldEqual, "file_name.txt")
		})
		Convey("Should trim separators", func() {
			So(SanitizeFilename("-file-name-"), ShouldEqual, "file-name")
		})
	})
}

func TestQuantify(t *testing.T) {
	Convey("Quantify", t, func() {
		So(Quantify(1, "cue", "cues"), ShouldEqual, "1 cue")
		So(Quantify(2, "cue", "cues"), ShouldEqual, "2 cues")
	})
}

func TestReGroups(t *testing.T) {
	Convey("ReGroups", t, func() {
		re := regexp.MustCompile(`(?P<first>\w+)\s(?P<last>\w+)`)
		groups := ReGroups(re, "John Doe")
		So(groups["first"], ShouldEqual, "John")
		So(groups["last"], ShouldEqual, "Doe")
		So(ReGroups(re, "single"), ShouldBeEmpty)
	})
}

func TestFileStem(t *testing.T) {
	Convey("FileStem", t, func() {
		So(FileStem("path/to/movie.en.srt"), ShouldEqual, "movie.en")
		So(FileStem("file"), ShouldEqual, "file")
	})
}

func TestClamp(t *testing.T) {
	Convey("Clamp", t, func() {
		So(Clamp(1.5, 0.0, 1.0), ShouldEqual, 1.0)
		So(Clamp(-1, 0, 10), ShouldEqual, 0)
		So(Clamp(5, 0, 10), ShouldEqual, 5)
	})
}

func TestFinite(t *testing.T) {
	Convey("Finite", t, func() {
		So(Finite(1), ShouldBeTrue)
		So(Finite(math.NaN()), ShouldBeFalse)
		So(Finite(math.Inf(1)), ShouldBeFalse)
	})
}

func TestFormatTimestamp(t *testing.T) {
	Convey("FormatTimestamp", t, func() {
		So(FormatTimestamp(0), ShouldEqual, "00:00.000")
		So(FormatTimestamp(65.25), ShouldEqual, "01:05.250")
		So(FormatTimestamp(3725.5), ShouldEqual, "1:02:05.500")
		So(FormatTimestamp(math.NaN()), ShouldEqual, "00:00.000")
	})
}

func TestMaxMin(t *testing.T) {
	Convey("Max/Min", t, func() {
		So(Max(1, 5, 2), ShouldEqual, 5)
		So(Min(1, 5, 2), ShouldEqual, 1)
		So(Max[int](), ShouldEqual, 0)
	})
}

func TestRing(t *testing.T) {
	Convey("Given a ring of three", t, func() {
		r := NewRing[int](3)

		Convey("Last on empty is not ok", func() {
			_, ok := r.Last()
			So(ok, ShouldBeFalse)
		})

		Convey("Pushing past capacity evicts the oldest", func() {
			for i := 1; i <= 5; i++ {
				r.Push(i)
			}
			So(r.Items(), ShouldResemble, []int{3, 4, 5})
			last, ok := r.Last()
			So(ok, ShouldBeTrue)
			So(last, ShouldEqual, 5)
		})

		Convey("Items returns a copy", func() {
			r.Push(1)
			items := r.Items()
			items[0] = 42
			So(r.Items()[0], ShouldEqual, 1)
		})

		Convey("Resize trims from the front", func() {
			r.Push(1)
			r.Push(2)
			r.Push(3)
			r.Resize(2)
			So(r.Items(), ShouldResemble, []int{2, 3})
			So(r.Limit(), ShouldEqual, 2)
		})

		Convey("Clear empties the ring", func() {
			r.Push(1)
			r.Clear()
			So(r.Len(), ShouldEqual, 0)
		})
	})
}

func TestDelete(t *testing.T) {
	Convey("Delete removes files and directories", t, func() {
		filesystem.SetMemMapFs()
		fs := filesystem.API()
		So(fs.MkdirAll("/a/b", 0o755), ShouldBeNil)
		So(fs.WriteFile("/a/b/c.txt", []byte("x"), 0o644), ShouldBeNil)

		So(Delete("/a/b/c.txt"), ShouldBeNil)
		exists, _ := fs.Exists("/a/b/c.txt")
		So(exists, ShouldBeFalse)

		So(Delete("/a"), ShouldBeNil)
		exists, _ = fs.Exists("/a")
		So(exists, ShouldBeFalse)

		So(Delete("/missing"), ShouldNotBeNil)
	})
}

func TestParseTimestamp(t *testing.T) {
	Convey("ParseTimestamp reads what FormatTimestamp writes", t, func() {
		for _, v := range []float64{0, 65.25, 3725.5} {
			got, err := ParseTimestamp(FormatTimestamp(v))
			So(err, ShouldBeNil)
			So(got, ShouldAlmostEqual, v, 1e-9)
		}

		got, err := ParseTimestamp("00:00:01,5")
		So(err, ShouldBeNil)
		So(got, ShouldAlmostEqual, 1.5, 1e-9)

		_, err = ParseTimestamp("later")
		So(err, ShouldNotBeNil)
	})
}
