package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/history"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/player"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

func init() {
	filesystem.SetMemMapFs()
	interactive = func() bool { return false }
}

func playFlags(set map[string]string) *cobra.Command {
	cmd := &cobra.Command{}
	addPlayFlags(cmd.Flags())
	for name, value := range set {
		if err := cmd.Flags().Set(name, value); err != nil {
			panic(err)
		}
	}
	return cmd
}

func TestResolveTarget(t *testing.T) {
	Convey("Given the play flags", t, func() {
		viper.Set(key.HistorySave, true)
		viper.Set(key.Channels, []map[string]any{
			{"name": "Sport Arena", "address": "https://example.cdn/sport/manifest.mpd", "sni_mask": "cdn.example.org", "proxy": true},
		})
		So(history.Clear(), ShouldBeNil)

		Convey("Nothing to play is an error", func() {
			_, err := resolveTarget(playFlags(nil), nil)
			So(errors.Is(err, errNoTarget), ShouldBeTrue)
		})

		Convey("An address is classified unless a route is forced", func() {
			tg, err := resolveTarget(playFlags(nil), []string{" https://example.cdn/live/master.m3u8 "})
			So(err, ShouldBeNil)
			So(tg.src.Address, ShouldEqual, "https://example.cdn/live/master.m3u8")
			So(tg.resolvedRoute(), ShouldEqual, source.NativeAdaptive)

			tg, err = resolveTarget(playFlags(map[string]string{"route": "embed"}), []string{"https://example.cdn/live/master.m3u8"})
			So(err, ShouldBeNil)
			So(tg.resolvedRoute(), ShouldEqual, source.EmbedFallback)

			_, err = resolveTarget(playFlags(map[string]string{"route": "teleport"}), []string{"https://example.cdn/a.mp4"})
			So(err, ShouldNotBeNil)
		})

		Convey("The mask and title flags shape the source", func() {
			tg, err := resolveTarget(playFlags(map[string]string{"sni-mask": "cdn.example.org", "title": "Live"}), []string{"https://example.cdn/a.m3u8"})
			So(err, ShouldBeNil)
			So(tg.src.Title(), ShouldEqual, "Live")
			mask, ok := tg.src.Mask()
			So(ok, ShouldBeTrue)
			So(mask, ShouldEqual, "cdn.example.org")

			tg, err = resolveTarget(playFlags(map[string]string{"sni-mask": "cdn.example.org", "proxy": "false"}), []string{"https://example.cdn/a.m3u8"})
			So(err, ShouldBeNil)
			_, ok = tg.src.Mask()
			So(ok, ShouldBeFalse)
		})

		Convey("A channel is resolved from the directory", func() {
			tg, err := resolveTarget(playFlags(map[string]string{"channel": "sport"}), nil)
			So(err, ShouldBeNil)
			So(tg.channel, ShouldEqual, "sport-arena")
			So(tg.src.Address, ShouldEqual, "https://example.cdn/sport/manifest.mpd")
			_, ok := tg.src.Mask()
			So(ok, ShouldBeTrue)
		})

		Convey("A terminal without an address asks for a channel", func() {
			interactive = func() bool { return true }
			defer func() { interactive = func() bool { return false } }()

			viper.Set(key.Channels, []map[string]any{
				{"name": "Sport Arena", "address": "https://example.cdn/sport/manifest.mpd"},
				{"name": "Nightly News", "group": "News", "address": "https://example.cdn/news/master.m3u8"},
			})

			var asked []string
			ask = func(p survey.Prompt, response any) error {
				asked = p.(*survey.Select).Options
				*response.(*int) = 1
				return nil
			}

			tg, err := resolveTarget(playFlags(nil), nil)
			So(err, ShouldBeNil)
			So(asked, ShouldResemble, []string{"Sport Arena", "News / Nightly News"})
			So(tg.channel, ShouldEqual, "nightly-news")
			So(tg.src.Address, ShouldEqual, "https://example.cdn/news/master.m3u8")

			Convey("An empty directory is still an error", func() {
				viper.Set(key.Channels, []map[string]any{})
				_, err := resolveTarget(playFlags(nil), nil)
				So(errors.Is(err, errNoTarget), ShouldBeTrue)
			})

			Convey("A cancelled prompt is returned", func() {
				ask = func(survey.Prompt, any) error { return errors.New("interrupt") }
				_, err := resolveTarget(playFlags(nil), nil)
				So(err, ShouldBeError, "interrupt")
			})
		})

		Convey("Continue needs a history entry", func() {
			_, err := resolveTarget(playFlags(map[string]string{"continue": "true"}), nil)
			So(err, ShouldNotBeNil)

			src := source.New("https://www.youtube.com/watch?v=abc", "Talk")
			So(history.Save(src, source.Compatibility, ""), ShouldBeNil)

			tg, err := resolveTarget(playFlags(map[string]string{"continue": "true"}), nil)
			So(err, ShouldBeNil)
			So(tg.src.Address, ShouldEqual, src.Address)
			So(tg.route, ShouldResemble, mo.Some(source.Compatibility))
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Classifying addresses", t, func() {
		c := classify("https://example.cdn/vod/manifest.mpd")
		So(c.Route, ShouldEqual, "native")
		So(c.Format, ShouldEqual, "dash")
		So(c.Valid, ShouldBeTrue)

		c = classify("https://vk.com/video_ext.php?oid=1")
		So(c.Route, ShouldEqual, "embed")
		So(c.Format, ShouldBeEmpty)

		c = classify("ftp://example.cdn/a.m3u8")
		So(c.Valid, ShouldBeFalse)
		So(c.Reason, ShouldContainSubstring, "scheme")
	})
}

func TestValidateValue(t *testing.T) {
	Convey("Config values are checked before they are written", t, func() {
		So(validateValue(key.PlayerPerformanceProfile, "high-quality"), ShouldBeNil)
		So(validateValue(key.PlayerPerformanceProfile, "turbo"), ShouldNotBeNil)
		So(validateValue(key.PlayerVolume, 100), ShouldBeNil)
		So(validateValue(key.PlayerVolume, 101), ShouldNotBeNil)
		So(validateValue(key.PlayerTelemetryInterval, 0), ShouldNotBeNil)
		So(validateValue(key.LogsLevel, "debug"), ShouldBeNil)
	})
}

func TestDescribe(t *testing.T) {
	Convey("Headless event lines", t, func() {
		now := time.Now()

		line := describe(player.Event{Kind: player.StateChanged, Time: now, From: player.Loading, To: player.Ready})
		So(line, ShouldContainSubstring, "LOADING")
		So(line, ShouldContainSubstring, "READY")

		line = describe(player.Event{Kind: player.TracksChanged, Time: now, Tracks: []quality.Track{
			{Index: 0, Height: mo.Some(1080), Bandwidth: mo.Some(5_000_000)},
			{Index: 1, Height: mo.Some(720), Active: true},
		}})
		So(line, ShouldContainSubstring, "1080p")
		So(line, ShouldContainSubstring, "720p")

		line = describe(player.Event{Kind: player.Retrying, Time: now, Retry: player.RetryState{
			Attempt:     2,
			NextRetryAt: now.Add(time.Second),
			LastError:   engine.Newf(engine.ManifestLoadFailed, "manifest 503"),
		}})
		So(line, ShouldContainSubstring, "retry 2/14")
		So(line, ShouldContainSubstring, "manifest 503")

		line = describe(player.Event{Kind: player.TelemetrySampled, Time: now, Sample: engine.Sample{BitrateKbps: 2500, FPS: 30, Codec: "avc1"}})
		So(line, ShouldContainSubstring, "2500 kbps")
		So(line, ShouldContainSubstring, "avc1")
	})
}
