package where

import (
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/subloop-cli/subloop/filesystem"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestPaths(t *testing.T) {
	Convey("Path functions", t, func() {
		Convey("Config()", func() {
			path := Config()
			So(path, ShouldNotBeEmpty)
			So(lo.Must(filesystem.API().IsDir(path)), ShouldBeTrue)
		})

		Convey("Cache()", func() {
			path := Cache()
			So(path, ShouldNotBeEmpty)
			So(lo.Must(filesystem.API().IsDir(path)), ShouldBeTrue)
		})

		Convey("Logs() and Loops() live under Config()", func() {
			So(filepath.Dir(Logs()), ShouldEqual, Config())
			So(filepath.Dir(Loops()), ShouldEqual, Config())
			So(lo.Must(filesystem.API().IsDir(Loops())), ShouldBeTrue)
		})

		Convey("History() is a file inside Cache()", func() {
			So(filepath.Dir(History()), ShouldEqual, Cache())
			So(filepath.Ext(History()), ShouldEqual, ".json")
		})

		Convey("Config() honors the override variable", func() {
			t.Setenv(EnvConfigPath, "/tmp/subloop-test-config")
			So(Config(), ShouldEqual, "/tmp/subloop-test-config")
		})
	})
}
