package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/streamctl/streamctl/channel"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/player"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

type stubEngine struct {
	cb engine.Callbacks

	mu     sync.Mutex
	pinned int
}

func (s *stubEngine) Load(source.StreamSource, profile.BufferConfig) { s.cb.Ready() }
func (s *stubEngine) SetPlaying(bool)                                {}
func (s *stubEngine) SetVolume(float64)                              {}
func (s *stubEngine) SetMuted(bool)                                  {}
func (s *stubEngine) Stats() engine.Sample                           { return engine.Placeholder() }
func (s *stubEngine) Reconfigure(profile.BufferConfig) bool          { return true }
func (s *stubEngine) Destroy()                                       {}

func (s *stubEngine) QualityTracks() []quality.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return quality.Pin([]quality.Track{
		{Index: 0, Height: mo.Some(1080)},
		{Index: 1, Height: mo.Some(720)},
	}, s.pinned)
}

func (s *stubEngine) SelectQuality(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = index
}

func newTestBubble(dir *channel.Directory) (*bubble, *player.Controller) {
	ctrl := player.New(player.Options{
		Factory: engine.Registry{
			source.NativeAdaptive: func(cb engine.Callbacks) (engine.Engine, error) {
				return &stubEngine{cb: cb, pinned: quality.Auto}, nil
			},
		},
		Autoplay:       true,
		SampleInterval: time.Hour,
	})
	return newBubble(&Options{Controller: ctrl, Directory: dir, Telemetry: true}), ctrl
}

// drain feeds every pending controller event to the model.
func drain(b *bubble) {
	for {
		select {
		case ev := <-b.sub.C():
			b.Update(eventMsg(ev))
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func press(b *bubble, keys ...string) {
	for _, k := range keys {
		if k == " " {
			b.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	}
}

func TestHUD(t *testing.T) {
	Convey("Given a HUD on a playing stream", t, func() {
		b, ctrl := newTestBubble(nil)
		defer ctrl.Close()

		ctrl.Load(source.New("https://example.cdn/live/master.m3u8", "Live News"))
		drain(b)

		So(b.state, ShouldEqual, player.Playing)
		So(b.tracks, ShouldHaveLength, 2)

		Convey("The view shows state, title and tracks", func() {
			view := b.View()
			So(view, ShouldContainSubstring, "PLAYING")
			So(view, ShouldContainSubstring, "Live News")
			So(view, ShouldContainSubstring, "1080p")
			So(view, ShouldContainSubstring, "codec")
		})

		Convey("Space pauses and resumes", func() {
			press(b, " ")
			drain(b)
			So(ctrl.State(), ShouldEqual, player.Paused)
			So(b.state, ShouldEqual, player.Paused)

			press(b, " ")
			So(ctrl.State(), ShouldEqual, player.Playing)
		})

		Convey("Volume and mute keys drive the controller", func() {
			press(b, "-", "-", "m")
			So(ctrl.Intent().Volume, ShouldAlmostEqual, 0.9, 0.0001)
			So(ctrl.Intent().Muted, ShouldBeTrue)
			So(b.View(), ShouldContainSubstring, "muted")

			press(b, "+", "+", "+")
			So(ctrl.Intent().Volume, ShouldEqual, 1)
		})

		Convey("Digits pin the listed track and a restores auto", func() {
			press(b, "1")
			drain(b)
			So(b.status, ShouldEqual, "pinned 720p")
			active, _ := quality.Find(ctrl.Tracks(), 1)
			So(active.Active, ShouldBeTrue)

			press(b, "7")
			So(b.status, ShouldEqual, "no quality 7")

			press(b, "a")
			drain(b)
			for _, tr := range ctrl.Tracks() {
				So(tr.Active, ShouldBeFalse)
			}
		})

		Convey("t hides the telemetry panel", func() {
			press(b, "t")
			So(b.View(), ShouldNotContainSubstring, "codec")
		})

		Convey("Errors are shown until a retry", func() {
			b.observe(player.Event{Kind: player.StateChanged, To: player.Error})
			b.observe(player.Event{Kind: player.Failed, Err: engine.Newf(engine.FatalEngineError, "gave up")})
			view := b.View()
			So(view, ShouldContainSubstring, "FatalEngineError")
			So(view, ShouldContainSubstring, "press r to retry")
		})

		Convey("Retries are shown while recovering", func() {
			b.observe(player.Event{Kind: player.Retrying, Retry: player.RetryState{
				Attempt:   2,
				LastError: engine.Newf(engine.ManifestLoadFailed, "503"),
			}})
			So(b.View(), ShouldContainSubstring, "retry 2/14")
		})

		Convey("q quits", func() {
			_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
			So(cmd, ShouldNotBeNil)
			So(cmd(), ShouldResemble, tea.Quit())
		})
	})

	Convey("Given a HUD with channels", t, func() {
		dir, err := channel.New([]channel.Channel{
			{Name: "One", Address: "https://example.cdn/one/master.m3u8"},
			{Name: "Two", Address: "https://example.cdn/two/master.m3u8"},
		})
		So(err, ShouldBeNil)

		b, ctrl := newTestBubble(dir)
		defer ctrl.Close()

		Convey("c opens the switcher and enter loads the channel", func() {
			press(b, "c")
			So(b.switching, ShouldBeTrue)
			So(b.View(), ShouldContainSubstring, "Channels")

			_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyEnter})
			So(b.switching, ShouldBeFalse)
			So(cmd, ShouldNotBeNil)

			msg := cmd()
			So(msg, ShouldResemble, loadedMsg{channel: dir.All()[0]})
			So(ctrl.Source().Address, ShouldEqual, "https://example.cdn/one/master.m3u8")
		})

		Convey("esc closes the switcher", func() {
			press(b, "c")
			b.Update(tea.KeyMsg{Type: tea.KeyEsc})
			So(b.switching, ShouldBeFalse)
		})
	})
}
