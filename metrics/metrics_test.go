package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/player"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

func TestObserve(t *testing.T) {
	Convey("Given fresh metrics", t, func() {
		m := New()

		So(testutil.ToFloat64(m.state.WithLabelValues("idle")), ShouldEqual, 1)

		Convey("Telemetry sets the gauges", func() {
			m.Observe(player.Event{Kind: player.TelemetrySampled, Sample: engine.Sample{
				BitrateKbps: 4200, BufferSeconds: 12.5, LatencySeconds: 3, FPS: 50, Codec: "avc1",
			}})

			So(testutil.ToFloat64(m.bitrate), ShouldEqual, 4200)
			So(testutil.ToFloat64(m.buffer), ShouldEqual, 12.5)
			So(testutil.ToFloat64(m.latency), ShouldEqual, 3)
			So(testutil.ToFloat64(m.fps), ShouldEqual, 50)
			So(testutil.ToFloat64(m.samples), ShouldEqual, 1)
		})

		Convey("Lifecycle events are counted", func() {
			m.Observe(player.Event{Kind: player.SessionStarted, Route: source.NativeAdaptive})
			m.Observe(player.Event{Kind: player.StateChanged, From: player.Idle, To: player.Loading})
			m.Observe(player.Event{Kind: player.Retrying})
			m.Observe(player.Event{Kind: player.TracksChanged, Tracks: make([]quality.Track, 3)})
			m.Observe(player.Event{Kind: player.Failed, Err: engine.Newf(engine.FatalEngineError, "x")})
			m.Observe(player.Event{Kind: player.Failed})

			So(testutil.ToFloat64(m.sessions.WithLabelValues("native")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.changes.WithLabelValues("idle", "loading")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.state.WithLabelValues("loading")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.state.WithLabelValues("idle")), ShouldEqual, 0)
			So(testutil.ToFloat64(m.retries), ShouldEqual, 1)
			So(testutil.ToFloat64(m.tracks), ShouldEqual, 3)
			So(testutil.ToFloat64(m.errors.WithLabelValues("FatalEngineError")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.errors.WithLabelValues("unknown")), ShouldEqual, 1)
		})

		Convey("The handler exposes the registry", func() {
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)
			So(string(body), ShouldContainSubstring, "streamctl_state{state=\"idle\"} 1")
		})
	})

	Convey("Run drains a bus subscription", t, func() {
		m := New()
		bus := player.NewBus()
		sub := bus.Subscribe(4)

		done := make(chan struct{})
		go func() {
			m.Run(context.Background(), sub)
			close(done)
		}()

		bus.Publish(player.Event{Kind: player.Retrying})
		bus.Close()

		select {
		case <-done:
		case <-time.After(time.Second):
		}
		So(testutil.ToFloat64(m.retries), ShouldEqual, 1)
	})
}
