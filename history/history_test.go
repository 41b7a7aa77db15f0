package history

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/source"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestHistory(t *testing.T) {
	Convey("Given history saving is enabled", t, func() {
		viper.Set(key.HistorySave, true)
		viper.Set(key.HistoryLimit, 2)
		So(Clear(), ShouldBeNil)

		src := source.New("https://example.cdn/live/master.m3u8", "Live").WithMask("cdn.example.org")

		Convey("When saving a source twice", func() {
			So(Save(src, source.NativeAdaptive, "news"), ShouldBeNil)
			So(Save(src, source.NativeAdaptive, ""), ShouldBeNil)

			Convey("Then one entry counts both plays", func() {
				saved, err := Get()
				So(err, ShouldBeNil)
				So(saved, ShouldHaveLength, 1)

				entry := saved[src.Address]
				So(entry.Plays, ShouldEqual, 2)
				So(entry.Channel, ShouldEqual, "news")
				So(entry.Route, ShouldEqual, source.NativeAdaptive.String())

				Convey("And the entry rebuilds the source", func() {
					So(entry.Source(), ShouldResemble, src)
				})
			})
		})

		Convey("When saving more sources than the limit", func() {
			for _, addr := range []string{"https://a.example/a.mp4", "https://b.example/b.mp4", "https://c.example/c.mp4"} {
				So(Save(source.New(addr, ""), source.NativeAdaptive, ""), ShouldBeNil)
				time.Sleep(time.Millisecond)
			}

			Convey("Then only the newest are kept, newest first", func() {
				entries, err := List()
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].Address, ShouldEqual, "https://c.example/c.mp4")
				So(entries[1].Address, ShouldEqual, "https://b.example/b.mp4")

				last, err := Last()
				So(err, ShouldBeNil)
				So(last.MustGet().Address, ShouldEqual, "https://c.example/c.mp4")

				So(Remove(entries[0]), ShouldBeNil)
				entries, _ = List()
				So(entries, ShouldHaveLength, 1)
			})
		})

		Convey("When saving is disabled nothing is recorded", func() {
			viper.Set(key.HistorySave, false)
			So(Save(src, source.NativeAdaptive, ""), ShouldBeNil)
			last, err := Last()
			So(err, ShouldBeNil)
			So(last.IsPresent(), ShouldBeFalse)
		})
	})
}
