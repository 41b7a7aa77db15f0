package embed

import (
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

type opener struct {
	mu    sync.Mutex
	paths []string
	apps  []string
	err   error
}

func (o *opener) open(path, app string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, path)
	o.apps = append(o.apps, app)
	return o.err
}

func (o *opener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.paths...)
}

func TestEmbed(t *testing.T) {
	filesystem.SetMemMapFs()
	defer filesystem.SetOsFs()

	Convey("Given an embed engine", t, func() {
		var (
			mu     sync.Mutex
			ready  int
			errs   int
			tracks int
		)
		cb := engine.Callbacks{
			OnReady:                func() { mu.Lock(); ready++; mu.Unlock() },
			OnError:                func(*engine.ErrorInfo) { mu.Lock(); errs++; mu.Unlock() },
			OnQualityTracksChanged: func([]quality.Track) { mu.Lock(); tracks++; mu.Unlock() },
		}
		o := &opener{}
		e := New(cb, Options{Browser: "firefox", Open: o.open})
		defer e.Destroy()

		src := source.New("https://ok.ru/videoembed/123?a=1&b=2", "Channel <One>")

		Convey("Stats is always the placeholder", func() {
			So(e.Stats(), ShouldResemble, engine.Sample{Codec: "unknown"})
			e.Load(src, profile.Resolve(profile.Balanced, false, true))
			So(e.Stats(), ShouldResemble, engine.Sample{BitrateKbps: 0, BufferSeconds: 0, LatencySeconds: 0, FPS: 0, Codec: "unknown"})
		})

		Convey("Loading writes the page and reports ready once opened", func() {
			e.Load(src, profile.Resolve(profile.Balanced, false, true))
			e.wg.Wait()

			mu.Lock()
			So(ready, ShouldEqual, 1)
			mu.Unlock()

			paths := o.opened()
			So(paths, ShouldHaveLength, 1)
			So(o.apps, ShouldResemble, []string{"firefox"})

			data, err := filesystem.API().ReadFile(paths[0])
			So(err, ShouldBeNil)
			html := string(data)
			So(html, ShouldContainSubstring, `sandbox="allow-scripts allow-same-origin allow-presentation allow-popups"`)
			So(html, ShouldContainSubstring, `src="https://ok.ru/videoembed/123?a=1&amp;b=2"`)
			So(html, ShouldContainSubstring, "Channel &lt;One&gt;")

			Convey("Destroy removes the page and is idempotent", func() {
				e.Destroy()
				e.Destroy()
				exists, _ := filesystem.API().Exists(paths[0])
				So(exists, ShouldBeFalse)
			})
		})

		Convey("There is no quality control", func() {
			e.Load(src, profile.BufferConfig{})
			e.wg.Wait()
			e.SelectQuality(0)
			So(e.QualityTracks(), ShouldBeEmpty)
			So(tracks, ShouldEqual, 0)
			So(e.Reconfigure(profile.BufferConfig{}), ShouldBeTrue)
		})

		Convey("A handler failure is invisible to the host", func() {
			o.err = errors.New("no display")
			e.Load(src, profile.BufferConfig{})
			e.wg.Wait()

			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			So(ready, ShouldEqual, 0)
			So(errs, ShouldEqual, 0)
		})
	})

	Convey("Unsafe schemes never reach the frame", t, func() {
		data, err := Render(source.New("javascript:alert(1)", "x"))
		So(err, ShouldBeNil)
		So(string(data), ShouldNotContainSubstring, "javascript:")
	})
}
