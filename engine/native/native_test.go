package native

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/network"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

const master = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2"
360/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080,CODECS="avc1.640028,mp4a.40.2",FRAME-RATE=30.000
1080/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2"
720/index.m3u8
`

func mediaPlaylist(first, count int, endlist bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:%d\n", first)
	for i := first; i < first+count; i++ {
		fmt.Fprintf(&b, "#EXTINF:2.000,\nseg%d.ts\n", i)
	}
	if endlist {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// recorder collects engine callbacks.
type recorder struct {
	mu        sync.Mutex
	ready     int
	errs      []*engine.ErrorInfo
	retries   []int
	tracks    [][]quality.Track
	buffering []bool
}

func (r *recorder) callbacks() engine.Callbacks {
	return engine.Callbacks{
		OnReady: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ready++
		},
		OnError: func(info *engine.ErrorInfo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, info)
		},
		OnBufferingChanged: func(b bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.buffering = append(r.buffering, b)
		},
		OnQualityTracksChanged: func(t []quality.Track) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.tracks = append(r.tracks, t)
		},
		OnRetry: func(attempt int, _ time.Time, _ *engine.ErrorInfo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.retries = append(r.retries, attempt)
		},
	}
}

func (r *recorder) readyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *recorder) errors() []*engine.ErrorInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*engine.ErrorInfo(nil), r.errs...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// hlsServer serves the master playlist, three finished media playlists and
// 1 KB segments, recording the mask header of every request.
type hlsServer struct {
	*httptest.Server
	mu    sync.Mutex
	masks map[string]string
}

func newHLSServer() *hlsServer {
	s := &hlsServer{masks: make(map[string]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.masks[r.URL.Path] = r.Header.Get(network.SNIMaskHeader)
		s.mu.Unlock()

		switch {
		case r.URL.Path == "/live/master.m3u8":
			_, _ = w.Write([]byte(master))
		case strings.HasSuffix(r.URL.Path, "/index.m3u8"):
			_, _ = w.Write([]byte(mediaPlaylist(0, 4, true)))
		case strings.HasSuffix(r.URL.Path, ".ts"):
			_, _ = w.Write(make([]byte, 1000))
		default:
			http.NotFound(w, r)
		}
	}))
	return s
}

func (s *hlsServer) seen() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Assign(s.masks)
}

func fastConfig() profile.BufferConfig {
	cfg := profile.Resolve(profile.LowLatency, false, true)
	cfg.RetryBaseDelay = time.Millisecond
	cfg.MaxRetryAttempts = 3
	return cfg
}

func TestHLS(t *testing.T) {
	Convey("Given a finished HLS presentation with three variants", t, func() {
		srv := newHLSServer()
		defer srv.Close()

		rec := &recorder{}
		e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
		defer e.Destroy()

		So(e.QualityTracks(), ShouldBeEmpty)
		So(e.Stats(), ShouldResemble, engine.Sample{})

		e.Load(source.New(srv.URL+"/live/master.m3u8", "Test"), fastConfig())
		So(eventually(func() bool { return rec.readyCount() == 1 }), ShouldBeTrue)

		Convey("Tracks are ordered by height and nothing is pinned", func() {
			tracks := e.QualityTracks()
			So(lo.Map(tracks, func(t quality.Track, _ int) int { return t.Index }), ShouldResemble, []int{1, 2, 0})
			So(lo.SomeBy(tracks, func(t quality.Track) bool { return t.Active }), ShouldBeFalse)
		})

		Convey("The whole presentation is buffered without playing", func() {
			So(eventually(func() bool { return e.Stats().BufferSeconds == 8 }), ShouldBeTrue)
			stats := e.Stats()
			So(stats.Codec, ShouldStartWith, "avc1.")
			So(stats.LatencySeconds, ShouldEqual, 0)
			So(rec.errors(), ShouldBeEmpty)
		})

		Convey("Pinning and restoring ABR", func() {
			e.SelectQuality(2)
			tr, _ := quality.Find(e.QualityTracks(), 2)
			So(tr.Active, ShouldBeTrue)
			So(e.Stats().BitrateKbps, ShouldEqual, 2500)

			e.SelectQuality(99)
			tr, _ = quality.Find(e.QualityTracks(), 2)
			So(tr.Active, ShouldBeTrue)

			e.SelectQuality(quality.Auto)
			So(lo.SomeBy(e.QualityTracks(), func(t quality.Track) bool { return t.Active }), ShouldBeFalse)
		})

		Convey("Destroy is idempotent", func() {
			So(func() {
				e.Destroy()
				e.Destroy()
			}, ShouldNotPanic)
		})
	})

	Convey("Given a proxied source", t, func() {
		srv := newHLSServer()
		defer srv.Close()

		rec := &recorder{}
		e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
		defer e.Destroy()

		src := source.New(srv.URL+"/live/master.m3u8", "Test").WithMask("edge.example")
		e.Load(src, fastConfig())

		Convey("Every request carries the mask", func() {
			So(eventually(func() bool { return e.Stats().BufferSeconds == 8 }), ShouldBeTrue)
			seen := srv.seen()
			So(seen, ShouldContainKey, "/live/master.m3u8")
			So(len(seen), ShouldBeGreaterThan, 2)
			for _, mask := range seen {
				So(mask, ShouldEqual, "edge.example")
			}
		})
	})

	Convey("Given a server that always fails", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		rec := &recorder{}
		e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
		defer e.Destroy()

		e.Load(source.New(srv.URL+"/master.m3u8", ""), fastConfig())

		Convey("Retries are reported, then a fatal error wrapping the manifest failure", func() {
			So(eventually(func() bool { return len(rec.errors()) == 1 }), ShouldBeTrue)
			err := rec.errors()[0]
			So(err.Kind, ShouldEqual, engine.FatalEngineError)
			So(engine.HasKind(err, engine.ManifestLoadFailed), ShouldBeTrue)

			rec.mu.Lock()
			So(rec.retries, ShouldResemble, []int{1, 2})
			rec.mu.Unlock()
			So(rec.readyCount(), ShouldEqual, 0)
		})
	})
}

func TestLiveHLS(t *testing.T) {
	Convey("Given a live media playlist", t, func() {
		s := newHLS("https://example.cdn/live/index.m3u8", nil, 2)
		pl, err := parsePlaylist([]byte(mediaPlaylist(100, 6, false)))
		So(err, ShouldBeNil)

		s.media[0] = &mediaState{uri: s.address, pl: pl.(*playlist.Media), fetchedAt: time.Now()}
		s.vars = []variant{{index: 0, uri: s.address}}
		s.target = 2
		s.isLive = true

		Convey("Playback starts the latency target behind the edge", func() {
			ctx := context.Background()
			seg, err := s.next(ctx, 0)
			So(err, ShouldBeNil)
			So(seg.req.url, ShouldEqual, "https://example.cdn/live/seg104.ts")
			So(s.behind(), ShouldEqual, 2)

			seg, err = s.next(ctx, 0)
			So(err, ShouldBeNil)
			So(seg.req.url, ShouldEqual, "https://example.cdn/live/seg105.ts")

			_, err = s.next(ctx, 0)
			So(err, ShouldEqual, errLiveEdge)
		})

		Convey("A direct media playlist has nothing to choose", func() {
			So(quality.Normalize(s.normalizer(quality.Auto)), ShouldBeEmpty)
		})
	})
}

const staticMPD = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT8S">
  <Period>
    <AdaptationSet mimeType="video/mp4" codecs="avc1.64001f" frameRate="30000/1001">
      <SegmentTemplate media="$RepresentationID$/seg-$Number%03d$.m4s" initialization="$RepresentationID$/init.mp4" duration="2000" timescale="1000" startNumber="1"/>
      <Representation id="v720" bandwidth="2500000" width="1280" height="720"/>
      <Representation id="v360" bandwidth="800000" width="640" height="360"/>
      <Representation id="v1080" bandwidth="5000000" width="1920" height="1080"/>
    </AdaptationSet>
    <AdaptationSet mimeType="audio/mp4">
      <Representation id="a1" bandwidth="128000"/>
    </AdaptationSet>
  </Period>
</MPD>`

func TestDASH(t *testing.T) {
	Convey("Given a static MPD", t, func() {
		var mu sync.Mutex
		var paths []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			paths = append(paths, r.URL.Path)
			mu.Unlock()

			if strings.HasSuffix(r.URL.Path, ".mpd") {
				_, _ = w.Write([]byte(staticMPD))
				return
			}
			_, _ = w.Write(make([]byte, 500))
		}))
		defer srv.Close()

		rec := &recorder{}
		e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
		defer e.Destroy()

		e.Load(source.New(srv.URL+"/vod/manifest.mpd", ""), fastConfig())
		So(eventually(func() bool { return rec.readyCount() == 1 }), ShouldBeTrue)

		Convey("Video representations become tracks ordered by height", func() {
			tracks := e.QualityTracks()
			So(lo.Map(tracks, func(t quality.Track, _ int) int { return t.Index }), ShouldResemble, []int{2, 0, 1})
		})

		Convey("Segments are numbered from the template", func() {
			So(eventually(func() bool { return e.Stats().BufferSeconds == 8 }), ShouldBeTrue)

			mu.Lock()
			defer mu.Unlock()
			So(paths, ShouldContain, "/vod/v360/init.mp4")
			So(lo.SomeBy(paths, func(p string) bool { return strings.HasSuffix(p, "/seg-001.m4s") }), ShouldBeTrue)
			So(lo.SomeBy(paths, func(p string) bool { return strings.HasSuffix(p, "/seg-004.m4s") }), ShouldBeTrue)
			So(lo.SomeBy(paths, func(p string) bool { return strings.HasSuffix(p, "/seg-005.m4s") }), ShouldBeFalse)
		})

		Convey("Frame rate and codecs come from the adaptation set", func() {
			stats := e.Stats()
			So(stats.Codec, ShouldEqual, "avc1.64001f")
			So(stats.FPS, ShouldEqual, 30)
		})
	})

	Convey("Template expansion", t, func() {
		So(expandTemplate("$RepresentationID$/$Number%05d$.m4s", "v1", 100, 42), ShouldEqual, "v1/00042.m4s")
		So(expandTemplate("b$Bandwidth$-$Number$.ts", "v1", 800000, 7), ShouldEqual, "b800000-7.ts")
		So(expandTemplate("cost$$-$Number$", "v1", 0, 1), ShouldEqual, "cost$-1")
	})

	Convey("ISO durations", t, func() {
		d, err := parseISODuration("PT1H2M3.5S")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, time.Hour+2*time.Minute+3500*time.Millisecond)

		d, err = parseISODuration("P1DT1S")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, 24*time.Hour+time.Second)

		_, err = parseISODuration("PT")
		So(err, ShouldNotBeNil)
		_, err = parseISODuration("garbage")
		So(err, ShouldNotBeNil)
	})

	Convey("Frame rates", t, func() {
		So(parseFrameRate("25"), ShouldEqual, 25)
		So(parseFrameRate("30000/1001"), ShouldAlmostEqual, 29.97, 0.01)
		So(parseFrameRate("1/0"), ShouldEqual, 0)
		So(parseFrameRate(""), ShouldEqual, 0)
	})
}

func TestProgressive(t *testing.T) {
	Convey("Given a progressive file served with range support", t, func() {
		data := make([]byte, 1_200_000)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "video/mp4")
			http.ServeContent(w, r, "movie.mp4", time.Time{}, bytes.NewReader(data))
		}))
		defer srv.Close()

		rec := &recorder{}
		e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
		defer e.Destroy()

		cfg := fastConfig()
		cfg.BufferingGoalSeconds = 60
		e.Load(source.New(srv.URL+"/movie.mp4", ""), cfg)
		So(eventually(func() bool { return rec.readyCount() == 1 }), ShouldBeTrue)

		Convey("There are no quality tracks", func() {
			So(e.QualityTracks(), ShouldBeEmpty)
		})

		Convey("The file is downloaded in chunks until the end", func() {
			So(eventually(func() bool {
				e.mu.Lock()
				defer e.mu.Unlock()
				return e.buf.ended
			}), ShouldBeTrue)

			stats := e.Stats()
			So(stats.BufferSeconds, ShouldAlmostEqual, 4.8, 0.001)
			So(stats.Codec, ShouldEqual, "video/mp4")
		})
	})

	Convey("Given a progressive file on the local disk", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "clip.mp4")
		So(os.WriteFile(path, make([]byte, 300_000), 0o644), ShouldBeNil)

		play := func(address string) *recorder {
			rec := &recorder{}
			e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
			defer e.Destroy()

			e.Load(source.New(address, ""), fastConfig())
			So(eventually(func() bool { return rec.readyCount() == 1 }), ShouldBeTrue)
			So(eventually(func() bool {
				e.mu.Lock()
				defer e.mu.Unlock()
				return e.buf.level > 0
			}), ShouldBeTrue)
			return rec
		}

		Convey("A bare path plays without retries", func() {
			rec := play(path)
			So(rec.errors(), ShouldBeEmpty)
			rec.mu.Lock()
			So(rec.retries, ShouldBeEmpty)
			rec.mu.Unlock()
		})

		Convey("A file URL plays without retries", func() {
			rec := play((&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String())
			So(rec.errors(), ShouldBeEmpty)
			rec.mu.Lock()
			So(rec.retries, ShouldBeEmpty)
			rec.mu.Unlock()
		})

		Convey("A missing file fails at once", func() {
			rec := &recorder{}
			e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
			defer e.Destroy()

			cfg := fastConfig()
			cfg.RetryBaseDelay = time.Second
			e.Load(source.New(filepath.Join(dir, "missing.mp4"), ""), cfg)

			So(eventually(func() bool { return len(rec.errors()) == 1 }), ShouldBeTrue)
			err := rec.errors()[0]
			So(err.Kind, ShouldEqual, engine.ManifestLoadFailed)
			So(err.Error(), ShouldContainSubstring, "404")
			rec.mu.Lock()
			So(rec.retries, ShouldBeEmpty)
			rec.mu.Unlock()
			So(rec.readyCount(), ShouldEqual, 0)
		})
	})

	Convey("Given a session that downloaded a whole file", t, func() {
		var mu sync.Mutex
		conns := make(map[http.ConnState]int)
		count := func(state http.ConnState) int {
			mu.Lock()
			defer mu.Unlock()
			return conns[state]
		}

		srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.ServeContent(w, r, "movie.mp4", time.Time{}, bytes.NewReader(make([]byte, 1000)))
		}))
		srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
			mu.Lock()
			defer mu.Unlock()
			conns[state]++
		}
		srv.Start()
		defer srv.Close()

		rec := &recorder{}
		e := New(rec.callbacks(), Options{Tick: 10 * time.Millisecond})
		defer e.Destroy()
		e.Load(source.New(srv.URL+"/movie.mp4", ""), fastConfig())
		So(eventually(func() bool {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.buf.ended
		}), ShouldBeTrue)

		Convey("Destroy closes its idle connections", func() {
			So(count(http.StateNew), ShouldBeGreaterThan, 0)
			So(count(http.StateClosed), ShouldEqual, 0)

			// the client pools the connection after the last body is read
			time.Sleep(50 * time.Millisecond)
			e.Destroy()
			So(eventually(func() bool { return count(http.StateClosed) == count(http.StateNew) }), ShouldBeTrue)
		})
	})

	Convey("Content-Range totals", t, func() {
		So(contentRangeTotal("bytes 0-0/1234"), ShouldEqual, 1234)
		So(contentRangeTotal("bytes 0-0/*"), ShouldEqual, -1)
		So(contentRangeTotal(""), ShouldEqual, -1)
	})
}

func TestBuffer(t *testing.T) {
	Convey("Given the adaptive low latency goals", t, func() {
		cfg := profile.Resolve(profile.LowLatency, false, true)
		b := buffer{level: 1}

		Convey("Nothing drains while paused", func() {
			So(b.tick(5, false, cfg).changed, ShouldBeFalse)
			So(b.level, ShouldEqual, 1)
		})

		Convey("Running dry while playing stalls", func() {
			tr := b.tick(1.5, true, cfg)
			So(tr, ShouldResemble, transition{changed: true, buffering: true})

			Convey("Refilling to the rebuffering goal resumes", func() {
				b.level = cfg.RebufferingGoalSeconds
				So(b.tick(0.25, true, cfg), ShouldResemble, transition{changed: true, buffering: false})
			})

			Convey("After the threshold any media is enough and the playhead skips", func() {
				b.level = 1
				So(b.tick(1, true, cfg).changed, ShouldBeFalse)
				tr := b.tick(1, true, cfg)
				So(tr.skipped, ShouldBeTrue)
				So(tr.buffering, ShouldBeFalse)
				So(b.level, ShouldEqual, 0.5)
			})
		})

		Convey("The end of the presentation is not a stall", func() {
			b.ended = true
			So(b.tick(2, true, cfg).changed, ShouldBeFalse)
		})
	})

	Convey("Without adaptive buffering stalls wait for the rebuffering goal", t, func() {
		cfg := profile.Resolve(profile.Balanced, false, false)
		b := buffer{stalled: true, level: 5}
		So(b.tick(30, true, cfg).changed, ShouldBeFalse)
		b.level = 10
		So(b.tick(0.25, true, cfg).changed, ShouldBeTrue)
	})
}

func TestABR(t *testing.T) {
	vars := []variant{
		{index: 0, height: 360, bandwidth: 800_000},
		{index: 1, height: 1080, bandwidth: 5_000_000},
		{index: 2, height: 720, bandwidth: 2_500_000},
	}

	Convey("ABR keeps within 80% of the estimate", t, func() {
		So(choose(vars, 0, 0), ShouldEqual, 0)
		So(choose(vars, 3_000_000, 0), ShouldEqual, 0)
		So(choose(vars, 3_200_000, 0), ShouldEqual, 2)
		So(choose(vars, 10_000_000, 0), ShouldEqual, 1)
		So(choose(vars, 100_000, 0), ShouldEqual, 0)
	})

	Convey("The data saver caps the height", t, func() {
		So(choose(vars, 10_000_000, profile.DataSaverMaxHeight), ShouldEqual, 0)
	})

	Convey("The estimator weighs new samples", t, func() {
		var est estimator
		est.add(1_000_000, time.Second)
		So(est.estimate(), ShouldEqual, 8_000_000)
		est.add(0, time.Second)
		So(est.estimate(), ShouldEqual, 8_000_000)
		est.add(500_000, time.Second)
		So(est.estimate(), ShouldAlmostEqual, 6_800_000, 1)
	})
}
