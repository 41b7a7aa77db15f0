package channel

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/key"
)

func directory() *Directory {
	d, err := New([]Channel{
		{Name: "News 24", Address: "https://example.cdn/news/master.m3u8", Group: "News"},
		{ID: "sport", Name: "Sport Arena", Address: "https://example.cdn/sport/manifest.mpd", SNIMask: "cdn.example.org", Proxy: true},
		{Name: "Music Box", Address: "https://vk.com/video_ext.php?oid=1", SNIMask: "vk.example.org"},
	})
	if err != nil {
		panic(err)
	}
	return d
}

func TestDirectory(t *testing.T) {
	Convey("Given a directory", t, func() {
		d := directory()

		Convey("IDs are derived from names", func() {
			So(d.Len(), ShouldEqual, 3)
			So(d.All()[0].ID, ShouldEqual, "news-24")
			So(d.Get("NEWS-24").IsPresent(), ShouldBeTrue)
			So(d.Get("radio").IsPresent(), ShouldBeFalse)
		})

		Convey("Find ranks fuzzy matches", func() {
			So(d.Find("spt"), ShouldHaveLength, 1)
			So(d.Find("spt")[0].ID, ShouldEqual, "sport")
			So(d.Find("box")[0].Name, ShouldEqual, "Music Box")
			So(d.Find(""), ShouldHaveLength, 3)
			So(d.Find("zzz"), ShouldBeEmpty)
		})

		Convey("Resolve prefers exact IDs", func() {
			ch, err := d.Resolve("sport")
			So(err, ShouldBeNil)
			So(ch.Name, ShouldEqual, "Sport Arena")

			ch, err = d.Resolve("news")
			So(err, ShouldBeNil)
			So(ch.ID, ShouldEqual, "news-24")

			_, err = d.Resolve("zzz")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Sources carry the mask only behind the proxy", func() {
			sport, _ := d.Resolve("sport")
			mask, ok := sport.Source().Mask()
			So(ok, ShouldBeTrue)
			So(mask, ShouldEqual, "cdn.example.org")

			music, _ := d.Resolve("music-box")
			_, ok = music.Source().Mask()
			So(ok, ShouldBeFalse)
			So(music.Source().Title(), ShouldEqual, "Music Box")
			So(music.String(), ShouldEqual, "Music Box")
			So(d.All()[0].String(), ShouldEqual, "News / News 24")
		})
	})

	Convey("Invalid directories are rejected", t, func() {
		_, err := New([]Channel{{Name: "empty"}})
		So(err, ShouldNotBeNil)

		_, err = New([]Channel{
			{ID: "a", Address: "https://a.example/a.m3u8"},
			{ID: "A", Address: "https://b.example/b.m3u8"},
		})
		So(err, ShouldNotBeNil)
	})

	Convey("The directory loads from config", t, func() {
		viper.Set(key.Channels, []map[string]any{
			{"name": "Loaded", "address": "https://example.cdn/l.m3u8", "proxy": true, "sni_mask": "m.example"},
		})
		defer viper.Set(key.Channels, nil)

		d, err := Load()
		So(err, ShouldBeNil)
		So(d.All()[0].ID, ShouldEqual, "loaded")
		So(d.All()[0].Proxy, ShouldBeTrue)
	})
}
