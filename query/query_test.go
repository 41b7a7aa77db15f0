package query

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

func TestQuery(t *testing.T) {
	Convey("Given remembered addresses", t, func() {
		viper.Set(key.HistorySuggest, true)
		So(Forget(), ShouldBeNil)

		So(Remember("https://example.cdn/news/master.m3u8", 1), ShouldBeNil)
		So(Remember("https://example.cdn/sport/master.m3u8", 1), ShouldBeNil)
		So(Remember("  https://example.cdn/sport/master.m3u8 ", 5), ShouldBeNil)
		So(Remember("   ", 5), ShouldBeNil)

		Convey("Then suggestions are ranked", func() {
			So(SuggestMany("master"), ShouldResemble, []string{
				"https://example.cdn/sport/master.m3u8",
				"https://example.cdn/news/master.m3u8",
			})
			So(Suggest("NEWS").MustGet(), ShouldEqual, "https://example.cdn/news/master.m3u8")
			So(Suggest("vimeo").IsPresent(), ShouldBeFalse)
		})

		Convey("Then suggestions can be turned off", func() {
			viper.Set(key.HistorySuggest, false)
			So(SuggestMany("master"), ShouldBeEmpty)
		})
	})
}
