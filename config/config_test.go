package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/key"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		So(Setup(), ShouldBeNil)

		Convey("Every registered field has a default", func() {
			for name := range Default {
				So(viper.Get(name), ShouldNotBeNil)
			}
		})

		Convey("Playback settings default to the balanced profile", func() {
			So(viper.GetString(key.PlayerPerformanceProfile), ShouldEqual, "balanced")
			So(viper.GetBool(key.PlayerAdaptiveBuffer), ShouldBeTrue)
			So(viper.GetBool(key.PlayerDataSaver), ShouldBeFalse)
		})

		Convey("EnvKeyReplacer converts dots to underscores", func() {
			So(EnvKeyReplacer.Replace("player.data_saver"), ShouldEqual, "player_data_saver")
		})
	})
}

func TestField(t *testing.T) {
	Convey("Given a registered field", t, func() {
		f := Default[key.PlayerDataSaver]

		Convey("Env adds the application prefix", func() {
			So(f.Env(), ShouldEqual, "STREAMCTL_PLAYER_DATA_SAVER")
		})

		Convey("MarshalJSON reports its type", func() {
			data, err := f.MarshalJSON()
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"type":"bool"`)
		})
	})
}
