package config

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/subloop-cli/subloop/key"
	"github.com/subloop-cli/subloop/session"
)

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		Convey("Should initialize without error", func() {
			err := Setup()
			So(err, ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			_ = Setup()
			for name := range Default {
				So(viper.IsSet(name), ShouldBeTrue)
			}
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			result := EnvKeyReplacer.Replace("loop.seek_back_offset")
			So(result, ShouldEqual, "loop_seek_back_offset")
		})

		Convey("Env names carry the application prefix", func() {
			f := Default[key.NavigationDebounce]
			So(f.Env(), ShouldEqual, "SUBLOOP_NAVIGATION_DEBOUNCE_MS")
		})
	})
}

func TestCore(t *testing.T) {
	Convey("Given the factory defaults", t, func() {
		So(Setup(), ShouldBeNil)

		Convey("The core settings match the components' own defaults", func() {
			So(Core(), ShouldResemble, session.DefaultConfig())
		})

		Convey("Overrides reach the matching component", func() {
			viper.Set(key.NavigationDebounce, 750)
			viper.Set(key.SyncGlobalOffset, -0.5)
			defer viper.Set(key.NavigationDebounce, 300)
			defer viper.Set(key.SyncGlobalOffset, 0.0)

			cfg := Core()
			So(cfg.Navigation.Debounce, ShouldEqual, 750*time.Millisecond)
			So(cfg.Sync.GlobalOffset, ShouldEqual, -0.5)
		})
	})
}
