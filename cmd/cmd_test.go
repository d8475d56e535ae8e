package cmd

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/filesystem"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subtitle"
)

func TestPickSubtitle(t *testing.T) {
	Convey("Given subtitles discovered next to the media", t, func() {
		candidates := []subtitle.Candidate{
			{Path: "/v/movie.en.srt", Language: "en", Label: "movie.en"},
			{Path: "/v/movie.ja.vtt", Language: "ja", Label: "movie.ja"},
		}

		Convey("An explicit file wins", func() {
			got, err := pickSubtitle("/elsewhere/x.srt", candidates, "ja", true, false)
			So(err, ShouldBeNil)
			So(got.MustGet(), ShouldEqual, "/elsewhere/x.srt")
		})

		Convey("The language picks the track", func() {
			got, err := pickSubtitle("", candidates, "ja", true, false)
			So(err, ShouldBeNil)
			So(got.MustGet(), ShouldEqual, "/v/movie.ja.vtt")
		})

		Convey("Without a language the primary slot takes the first track", func() {
			got, err := pickSubtitle("", candidates, "", true, false)
			So(err, ShouldBeNil)
			So(got.MustGet(), ShouldEqual, "/v/movie.en.srt")
		})

		Convey("Without a language the secondary slot stays empty", func() {
			got, err := pickSubtitle("", candidates, "", false, false)
			So(err, ShouldBeNil)
			So(got.IsAbsent(), ShouldBeTrue)
		})

		Convey("Nothing discovered means no track", func() {
			got, err := pickSubtitle("", nil, "en", true, false)
			So(err, ShouldBeNil)
			So(got.IsAbsent(), ShouldBeTrue)
		})
	})
}

func TestParsePosition(t *testing.T) {
	Convey("Positions are seconds or timestamps", t, func() {
		for in, want := range map[string]float64{
			"12.5":      12.5,
			"01:02.500": 62.5,
			"1:00:00":   3600,
		} {
			got, err := parsePosition(in)
			So(err, ShouldBeNil)
			So(got, ShouldAlmostEqual, want)
		}

		_, err := parsePosition("soon")
		So(err, ShouldNotBeNil)
	})
}

func TestLoopsFiles(t *testing.T) {
	Convey("Given an in-memory filesystem", t, func() {
		filesystem.SetMemMapFs()
		defer filesystem.SetOsFs()

		Convey("The scaffolded loops file loads back", func() {
			path := "/loops/movie.yaml"
			So(filesystem.API().MkdirAll(filepath.Dir(path), 0755), ShouldBeNil)
			So(writeLoopsTemplate(path, "/v/movie.mkv"), ShouldBeNil)

			b, err := segment.LoadBookmarks(path)
			So(err, ShouldBeNil)
			So(b.Media, ShouldEqual, "/v/movie.mkv")
			So(b.Loops, ShouldHaveLength, 1)
			So(b.Loops[0].Label, ShouldEqual, "first line")
			So(float64(b.Loops[0].End), ShouldEqual, 4.5)
			So(b.Loops[0].Count, ShouldEqual, 3)
		})

		Convey("A missing default loops file starts empty", func() {
			b, path, err := loadBookmarks(watchOptions{media: "/v/movie.mkv"})
			So(err, ShouldBeNil)
			So(path, ShouldEqual, loopsPathFor("/v/movie.mkv"))
			So(b.Media, ShouldEqual, "/v/movie.mkv")
			So(b.Loops, ShouldBeEmpty)
		})

		Convey("A missing explicit loops file is an error", func() {
			_, _, err := loadBookmarks(watchOptions{media: "/v/movie.mkv", loopsPath: "/nope.yaml"})
			So(err, ShouldNotBeNil)
		})

		Convey("An existing loops file is loaded", func() {
			So(filesystem.API().WriteFile("/loops/song.yaml", []byte("media: song.mp3\nloops:\n  - label: hook\n    start: \"0:10\"\n    end: 14\n"), 0644), ShouldBeNil)

			b, path, err := loadBookmarks(watchOptions{media: "song.mp3", loopsPath: "/loops/song.yaml"})
			So(err, ShouldBeNil)
			So(path, ShouldEqual, "/loops/song.yaml")
			So(b.Find("hook").IsPresent(), ShouldBeTrue)
		})
	})
}
