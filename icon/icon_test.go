package icon

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/subloop-cli/subloop/key"
)

func TestGet(t *testing.T) {
	Convey("Given a registered icon", t, func() {
		target := Loop

		Convey("It renders correctly for each variant", func() {
			for _, variant := range AvailableVariants() {
				Convey("variant="+variant, func() {
					viper.Set(key.IconsVariant, variant)
					result := Get(target)
					So(result, ShouldNotBeEmpty)
				})
			}
		})

		Convey("Every registered icon has all variants", func() {
			for i, def := range icons {
				So(i, ShouldBeGreaterThan, 0)
				So(def.emoji, ShouldNotBeEmpty)
				So(def.nerd, ShouldNotBeEmpty)
				So(def.plain, ShouldNotBeEmpty)
				So(def.kaomoji, ShouldNotBeEmpty)
				So(def.squares, ShouldNotBeEmpty)
			}
		})

		Convey("An unknown variant falls back to plain", func() {
			viper.Set(key.IconsVariant, "")
			So(Get(target), ShouldEqual, icons[target].plain)
		})

		Convey("An unregistered icon renders empty", func() {
			viper.Set(key.IconsVariant, emoji)
			So(Get(Icon(999)), ShouldBeEmpty)
		})
	})
}
