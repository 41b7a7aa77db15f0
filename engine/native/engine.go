// Package native implements the headless adaptive engine used for HLS, DASH and progressive addresses.
//
// The engine downloads segments ahead of a simulated playhead, keeping the buffer between the
// profile's goals, and picks renditions from an EWMA throughput estimate.
package native

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/network"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

// DefaultTick is the period of the buffer clock.
const DefaultTick = 250 * time.Millisecond

// Options configures the engine.
type Options struct {
	// Fingerprint sends https requests with a browser TLS fingerprint.
	// Proxied sources always use it.
	Fingerprint bool
	UserAgent   string
	// Tick overrides DefaultTick.
	Tick time.Duration
}

// OptionsFromConfig reads the network settings.
func OptionsFromConfig() Options {
	return Options{
		Fingerprint: viper.GetBool(key.NetworkTLSFingerprint),
		UserAgent:   viper.GetString(key.NetworkUserAgent),
	}
}

// Constructor returns an engine.Constructor for the registry.
func Constructor(opts Options) engine.Constructor {
	return func(cb engine.Callbacks) (engine.Engine, error) {
		return New(cb, opts), nil
	}
}

// Engine is the native adaptive engine.
type Engine struct {
	cb   engine.Callbacks
	opts Options

	mu         sync.Mutex
	cfg        profile.BufferConfig
	intent     engine.Intent
	stream     stream
	vars       []variant
	pinned     int
	current    int
	buf        buffer
	est        estimator
	live       bool
	behind     float64
	cancel     context.CancelFunc
	httpClient *http.Client
	destroyed  bool

	wg sync.WaitGroup
}

// New creates an idle engine.
func New(cb engine.Callbacks, opts Options) *Engine {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	return &Engine{
		cb:     cb,
		opts:   opts,
		intent: engine.DefaultIntent(),
		pinned: quality.Auto,
	}
}

func (e *Engine) Load(src source.StreamSource, cfg profile.BufferConfig) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	if e.cancel != nil {
		e.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.cfg = cfg
	e.stream = nil
	e.vars = nil
	e.pinned = quality.Auto
	e.current = 0
	e.buf = buffer{}
	e.est = estimator{}
	e.live, e.behind = false, 0
	e.wg.Add(1)
	e.mu.Unlock()

	go e.run(ctx, src)
}

func (e *Engine) config() profile.BufferConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) client(src source.StreamSource) *fetcher {
	filters := network.FiltersFor(src)
	client := network.NewClient(network.Options{
		Fingerprint: e.opts.Fingerprint || len(filters) > 0,
		UserAgent:   e.opts.UserAgent,
		Filters:     filters,
	})

	e.mu.Lock()
	prev := e.httpClient
	e.httpClient = client
	e.mu.Unlock()
	if prev != nil {
		prev.CloseIdleConnections()
	}

	return &fetcher{
		client:  client,
		cfg:     e.config,
		onRetry: e.cb.Retry,
	}
}

func (e *Engine) run(ctx context.Context, src source.StreamSource) {
	defer e.wg.Done()

	if err := src.Validate(); err != nil {
		e.fail(ctx, engine.Wrap(engine.FatalEngineError, engine.Wrap(engine.ManifestLoadFailed, err, "invalid address"), ""))
		return
	}

	f := e.client(src)
	format := source.DetectFormat(src.Address)
	st := newStream(format, locate(src.Address), f, e.config().LiveLatencyTargetSegments)

	log.Infof("native: opening %s stream %q", format, src.Title())
	if err := st.open(ctx); err != nil {
		e.fail(ctx, err)
		return
	}

	e.mu.Lock()
	if ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	e.stream = st
	e.vars = st.variants()
	e.current = choose(e.vars, 0, e.cfg.MaxHeight)
	e.live = st.live()
	tracks := e.tracksLocked()
	e.mu.Unlock()

	log.Infof("native: %d variants, live=%t", len(e.vars), st.live())
	e.cb.Tracks(tracks)
	e.cb.Ready()

	e.wg.Add(1)
	go e.clock(ctx)

	e.download(ctx, f, st)
}

// download keeps the buffer filled up to the buffering goal.
func (e *Engine) download(ctx context.Context, f *fetcher, st stream) {
	for ctx.Err() == nil {
		e.mu.Lock()
		full := e.buf.full(e.cfg)
		v := e.pickLocked()
		e.mu.Unlock()

		if full {
			if sleep(ctx, e.opts.Tick) != nil {
				return
			}
			continue
		}

		seg, err := st.next(ctx, v)
		switch {
		case errors.Is(err, errEndOfStream):
			e.mu.Lock()
			e.buf.ended = true
			e.mu.Unlock()
			log.Infof("native: end of stream")
			return
		case errors.Is(err, errLiveEdge):
			if sleep(ctx, time.Duration(st.refresh()*float64(time.Second))) != nil {
				return
			}
			continue
		case err != nil:
			e.fail(ctx, err)
			return
		}

		if seg.init != nil {
			resp, err := f.fetch(ctx, *seg.init, engine.PlaybackStalled, nil)
			if err != nil {
				e.fail(ctx, err)
				return
			}
			e.measure(resp)
		}

		resp, err := f.fetch(ctx, seg.req, engine.PlaybackStalled, nil)
		if err != nil {
			e.fail(ctx, err)
			return
		}

		seconds := st.account(seg, resp)
		e.mu.Lock()
		e.est.add(len(resp.body), resp.elapsed)
		e.buf.level += seconds
		e.live, e.behind = st.live(), st.behind()
		e.mu.Unlock()
	}
}

func (e *Engine) measure(resp response) {
	e.mu.Lock()
	e.est.add(len(resp.body), resp.elapsed)
	e.mu.Unlock()
}

// pickLocked returns the variant to download next.
func (e *Engine) pickLocked() int {
	if e.pinned != quality.Auto {
		return e.pinned
	}

	next := choose(e.vars, e.est.estimate(), e.cfg.MaxHeight)
	if next != e.current {
		log.Debugf("native: abr switch %d -> %d (estimate %.0f bps)", e.current, next, e.est.estimate())
	}
	e.current = next
	return next
}

// clock drains the buffer while playing and reports stalls.
func (e *Engine) clock(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.Tick)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			e.mu.Lock()
			t := e.buf.tick(dt, e.intent.Playing, e.cfg)
			e.mu.Unlock()

			if t.skipped {
				log.Infof("native: stalled too long, skipped %.1fs ahead", e.config().StallSkipSeconds)
			}
			if t.changed && ctx.Err() == nil {
				e.cb.Buffering(t.buffering)
			}
		}
	}
}

func (e *Engine) fail(ctx context.Context, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}
	info := engine.AsInfo(err)
	log.Errorf("native: %s", info)
	e.cb.Error(info)
}

func (e *Engine) SetPlaying(playing bool) {
	e.mu.Lock()
	e.intent.Playing = playing
	e.mu.Unlock()
}

func (e *Engine) SetVolume(volume float64) {
	e.mu.Lock()
	e.intent.Volume = engine.ClampVolume(volume)
	e.mu.Unlock()
}

func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	e.intent.Muted = muted
	e.mu.Unlock()
}

func (e *Engine) tracksLocked() []quality.Track {
	if e.stream == nil {
		return []quality.Track{}
	}
	return quality.Normalize(e.stream.normalizer(e.pinned))
}

func (e *Engine) QualityTracks() []quality.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracksLocked()
}

func (e *Engine) SelectQuality(index int) {
	e.mu.Lock()
	if index != quality.Auto {
		if _, ok := quality.Find(e.tracksLocked(), index); !ok {
			e.mu.Unlock()
			return
		}
	}
	if e.stream == nil || e.pinned == index {
		e.mu.Unlock()
		return
	}
	e.pinned = index
	tracks := e.tracksLocked()
	e.mu.Unlock()

	e.cb.Tracks(tracks)
}

func (e *Engine) Stats() engine.Sample {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return engine.Sample{}
	}

	s := engine.Sample{
		BufferSeconds: e.buf.level,
		Codec:         engine.UnknownCodec,
	}

	idx := e.current
	if e.pinned != quality.Auto {
		idx = e.pinned
	}
	if idx >= 0 && idx < len(e.vars) {
		v := e.vars[idx]
		s.BitrateKbps = v.bandwidth / 1000
		s.FPS = int(math.Round(v.fps))
		if v.codecs != "" {
			s.Codec = v.codecs
		}
	}
	if s.BitrateKbps == 0 {
		s.BitrateKbps = int(e.est.estimate() / 1000)
	}

	if e.live {
		s.LatencySeconds = e.behind + e.buf.level
	}

	return s
}

// Reconfigure applies new goals to the running session.
func (e *Engine) Reconfigure(cfg profile.BufferConfig) bool {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return true
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	client := e.httpClient
	e.httpClient = nil
	e.mu.Unlock()
	if client != nil {
		client.CloseIdleConnections()
	}
}
