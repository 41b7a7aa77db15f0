// Package player supervises one playback engine at a time: it owns the playback state
// machine, forwards user intents, samples telemetry and publishes everything on a bus.
//
// All work runs on a single goroutine fed by a mailbox. Engine callbacks, user intents
// and sampler ticks are posted as closures and executed in order, so the controller is
// the only writer of its state and of the active engine reference.
package player

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

// RetryState describes the engine's most recent retry.
type RetryState struct {
	Attempt     int
	LastError   *engine.ErrorInfo
	NextRetryAt time.Time
}

// Options configures a Controller.
type Options struct {
	// Factory builds the engine for a route.
	Factory engine.Factory
	// Settings are resolved into the buffer configuration of every load.
	Settings profile.Settings
	// Autoplay is the play intent a fresh load starts with.
	Autoplay bool
	// SampleInterval is the telemetry period, DefaultSampleInterval when zero.
	SampleInterval time.Duration
	// Volume defaults to full volume.
	Volume mo.Option[float64]
	Muted  bool
}

// Controller is the playback supervisor.
type Controller struct {
	opts Options
	bus  *Bus

	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
	closed bool
	done   chan struct{}
	once   sync.Once

	// Owned by the loop goroutine.
	engine     engine.Engine
	generation uint64
	src        source.StreamSource
	route      source.Route
	settings   profile.Settings
	cfg        profile.BufferConfig
	intent     engine.Intent
	sampler    *sampler

	// Snapshot for readers, written only by the loop goroutine.
	view    sync.RWMutex
	state   State
	tracks  []quality.Track
	latest  engine.Sample
	retry   RetryState
	session string
	failure *engine.ErrorInfo
}

// New starts a controller in Idle.
func New(opts Options) *Controller {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}

	c := &Controller{
		opts:     opts,
		bus:      NewBus(),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		settings: opts.Settings,
		cfg:      opts.Settings.Resolve(),
		intent: engine.Intent{
			Playing: opts.Autoplay,
			Volume:  engine.ClampVolume(opts.Volume.OrElse(1)),
			Muted:   opts.Muted,
		},
		state:  Idle,
		tracks: []quality.Track{},
	}

	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.done)

	for range c.notify {
		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		closed := c.closed
		c.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if closed {
			return
		}
	}
}

// post queues fn for the loop. It reports false once the controller is closed.
func (c *Controller) post(fn func()) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, fn)
	c.mu.Unlock()

	c.wake()
	return true
}

func (c *Controller) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// call runs fn on the loop and waits for it.
func (c *Controller) call(fn func()) bool {
	applied := make(chan struct{})
	if !c.post(func() {
		fn()
		close(applied)
	}) {
		return false
	}

	select {
	case <-applied:
		return true
	case <-c.done:
		return false
	}
}

// Subscribe returns a handle receiving the given event kinds, every kind when none is given.
func (c *Controller) Subscribe(kinds ...EventKind) *Subscription {
	return c.bus.Subscribe(DefaultBuffer, kinds...)
}

// Load tears down the current engine and starts loading src on the route its address
// classifies to. It returns once the new engine was asked to load.
func (c *Controller) Load(src source.StreamSource) {
	c.LoadRoute(src, source.Classify(src.Address))
}

// LoadRoute is Load with an explicit route.
func (c *Controller) LoadRoute(src source.StreamSource, route source.Route) {
	c.call(func() {
		c.load(src, route, c.opts.Autoplay)
	})
}

// Reload loads the current source again with the current play intent.
// It is the only way out of Error.
func (c *Controller) Reload() {
	c.call(func() {
		if c.src.Address == "" {
			return
		}
		c.load(c.src, c.route, c.intent.Playing)
	})
}

// Play records the play intent and resumes playback.
func (c *Controller) Play() {
	c.call(func() { c.setPlaying(true) })
}

// Pause records the pause intent and pauses playback.
func (c *Controller) Pause() {
	c.call(func() { c.setPlaying(false) })
}

// Toggle flips the play intent.
func (c *Controller) Toggle() {
	c.call(func() { c.setPlaying(!c.intent.Playing) })
}

// SelectQuality pins a track, quality.Auto restores ABR. It reports false when
// the request was rejected: no active engine or an unknown index.
func (c *Controller) SelectQuality(index int) bool {
	var applied bool
	c.call(func() { applied = c.selectQuality(index) })
	return applied
}

// SetVolume sets the volume, clamped to [0, 1].
func (c *Controller) SetVolume(volume float64) {
	c.call(func() {
		c.intent.Volume = engine.ClampVolume(volume)
		if c.engine != nil {
			c.engine.SetVolume(c.intent.Volume)
		}
	})
}

// SetMuted mutes or unmutes.
func (c *Controller) SetMuted(muted bool) {
	c.call(func() {
		c.intent.Muted = muted
		if c.engine != nil {
			c.engine.SetMuted(muted)
		}
	})
}

// ApplySettings resolves new settings and hands them to the engine, reloading
// the source when the engine cannot apply them live.
func (c *Controller) ApplySettings(s profile.Settings) {
	c.call(func() { c.applySettings(s) })
}

// Close destroys the engine, stops the sampler and closes every subscription.
// It is safe to call more than once.
func (c *Controller) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.queue = append(c.queue, func() {
			c.teardown()
			c.transition(triggerUnload)
			c.bus.Close()
		})
		c.closed = true
		c.mu.Unlock()
		c.wake()
	})
	<-c.done
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.view.RLock()
	defer c.view.RUnlock()
	return c.state
}

// Tracks returns the current quality tracks.
func (c *Controller) Tracks() []quality.Track {
	c.view.RLock()
	defer c.view.RUnlock()
	return slices.Clone(c.tracks)
}

// Latest returns the most recent telemetry sample.
func (c *Controller) Latest() engine.Sample {
	c.view.RLock()
	defer c.view.RUnlock()
	return c.latest
}

// Retry returns the engine's latest retry.
func (c *Controller) Retry() RetryState {
	c.view.RLock()
	defer c.view.RUnlock()
	return c.retry
}

// Session returns the ID of the current load, empty before the first one.
func (c *Controller) Session() string {
	c.view.RLock()
	defer c.view.RUnlock()
	return c.session
}

// Failure returns the error that moved the controller into Error.
func (c *Controller) Failure() *engine.ErrorInfo {
	c.view.RLock()
	defer c.view.RUnlock()
	return c.failure
}

// Source returns the source of the current load.
func (c *Controller) Source() source.StreamSource {
	var src source.StreamSource
	c.call(func() { src = c.src })
	return src
}

// Intent returns the current user intent.
func (c *Controller) Intent() engine.Intent {
	var intent engine.Intent
	c.call(func() { intent = c.intent })
	return intent
}

func (c *Controller) load(src source.StreamSource, route source.Route, playing bool) {
	c.teardown()

	c.generation++
	gen := c.generation
	c.src, c.route = src, route
	c.cfg = c.settings.Resolve()
	c.intent.Playing = playing

	session := uuid.NewString()
	c.view.Lock()
	c.session = session
	c.retry = RetryState{}
	c.failure = nil
	c.latest = engine.Sample{}
	c.view.Unlock()

	log.WithFields(log.Fields{
		"session": session,
		"route":   route.String(),
		"profile": string(c.cfg.Profile),
	}).Infof("loading %s", src.Address)

	c.publish(Event{Kind: SessionStarted, Source: src, Route: route})
	c.transition(triggerLoad)
	c.setTracks([]quality.Track{})

	if err := src.Validate(); err != nil {
		c.fail(engine.Wrap(engine.SourceUnsupported, err, "invalid source"))
		return
	}

	if c.opts.Factory == nil {
		c.fail(engine.Newf(engine.EngineInitFailed, "no engine factory"))
		return
	}

	e, err := c.opts.Factory.New(route, c.callbacks(gen))
	if err != nil {
		c.fail(engine.AsInfo(err))
		return
	}

	c.engine = e
	e.SetVolume(c.intent.Volume)
	e.SetMuted(c.intent.Muted)
	e.SetPlaying(c.intent.Playing)
	e.Load(src, c.cfg)
}

// callbacks binds engine events to the generation they were created for.
func (c *Controller) callbacks(gen uint64) engine.Callbacks {
	guard := func(name string, fn func()) {
		c.post(func() {
			if gen != c.generation || c.engine == nil {
				log.Debugf("dropping stale %s from load %d, current %d", name, gen, c.generation)
				return
			}
			fn()
		})
	}

	return engine.Callbacks{
		OnReady: func() {
			guard("ready", c.onReady)
		},
		OnError: func(info *engine.ErrorInfo) {
			guard("error", func() { c.fail(info) })
		},
		OnBufferingChanged: func(buffering bool) {
			guard("buffering", func() { c.onBuffering(buffering) })
		},
		OnQualityTracksChanged: func(tracks []quality.Track) {
			guard("tracks", func() { c.onTracks(tracks) })
		},
		OnRetry: func(attempt int, next time.Time, cause *engine.ErrorInfo) {
			guard("retry", func() { c.onRetry(attempt, next, cause) })
		},
	}
}

func (c *Controller) onReady() {
	if !c.transition(triggerReady) {
		return
	}

	c.view.Lock()
	c.retry = RetryState{}
	c.view.Unlock()

	gen := c.generation
	c.sampler = startSampler(c.opts.SampleInterval, func(s *sampler) {
		c.post(func() { c.sample(s, gen) })
	})

	c.setTracks(c.engine.QualityTracks())
	c.transition(triggerSettle)
}

func (c *Controller) sample(s *sampler, gen uint64) {
	if !s.live() || gen != c.generation || c.engine == nil {
		return
	}

	sample := c.engine.Stats()
	c.view.Lock()
	c.latest = sample
	c.view.Unlock()
	c.publish(Event{Kind: TelemetrySampled, Sample: sample})
}

func (c *Controller) onBuffering(buffering bool) {
	if buffering {
		c.transition(triggerStall)
		return
	}
	c.transition(triggerResume)
}

func (c *Controller) onTracks(tracks []quality.Track) {
	if !c.State().Active() {
		return
	}
	c.setTracks(tracks)
}

func (c *Controller) onRetry(attempt int, next time.Time, cause *engine.ErrorInfo) {
	retry := RetryState{Attempt: attempt, LastError: cause, NextRetryAt: next}

	c.view.Lock()
	c.retry = retry
	c.view.Unlock()

	log.Warnf("engine retry %d at %s: %v", attempt, next.Format(time.TimeOnly), cause)
	c.publish(Event{Kind: Retrying, Retry: retry})
}

func (c *Controller) fail(info *engine.ErrorInfo) {
	if info == nil {
		info = engine.Newf(engine.FatalEngineError, "engine failed")
	}
	if !c.transition(triggerFail) {
		return
	}

	log.WithFields(log.Fields{"session": c.Session(), "kind": info.Kind.String()}).Error(info.Error())

	c.view.Lock()
	c.failure = info
	c.view.Unlock()

	c.teardown()
	c.setTracks([]quality.Track{})
	c.publish(Event{Kind: Failed, Err: info})
}

func (c *Controller) setPlaying(playing bool) {
	c.intent.Playing = playing
	if c.engine != nil {
		c.engine.SetPlaying(playing)
	}

	if playing {
		c.transition(triggerPlay)
	} else {
		c.transition(triggerPause)
	}
}

func (c *Controller) selectQuality(index int) bool {
	if !c.State().Active() || c.engine == nil {
		log.Debugf("quality %d rejected in %s", index, c.State())
		return false
	}
	if index != quality.Auto {
		if _, ok := quality.Find(c.Tracks(), index); !ok {
			log.Debugf("quality %d is not a known track", index)
			return false
		}
	}

	c.engine.SelectQuality(index)
	c.setTracks(c.engine.QualityTracks())
	return true
}

func (c *Controller) applySettings(s profile.Settings) {
	c.settings = s
	cfg := s.Resolve()
	if cfg == c.cfg {
		return
	}
	c.cfg = cfg

	if c.engine == nil || !c.State().Active() {
		return
	}

	if c.engine.Reconfigure(cfg) {
		log.Infof("applied %s buffering live", cfg.Profile)
		return
	}

	log.Infof("reloading to apply %s buffering", cfg.Profile)
	c.load(c.src, c.route, c.intent.Playing)
}

// teardown stops the sampler before destroying the engine.
func (c *Controller) teardown() {
	c.sampler.halt()
	c.sampler = nil

	if c.engine != nil {
		c.engine.Destroy()
		c.engine = nil
	}
}

// transition applies a trigger, publishing StateChanged when the state moves.
func (c *Controller) transition(on trigger) bool {
	c.view.Lock()
	from := c.state
	to, ok := next(from, on, c.intent.Playing)
	if ok {
		c.state = to
	}
	c.view.Unlock()

	if !ok {
		return false
	}
	if from != to {
		log.Debugf("state %s -> %s on %s", from, to, on)
		c.publish(Event{Kind: StateChanged, From: from, To: to})
	}
	return true
}

func (c *Controller) setTracks(tracks []quality.Track) {
	if tracks == nil {
		tracks = []quality.Track{}
	}

	c.view.Lock()
	same := slices.Equal(c.tracks, tracks)
	if !same {
		c.tracks = slices.Clone(tracks)
	}
	c.view.Unlock()

	if !same {
		c.publish(Event{Kind: TracksChanged, Tracks: slices.Clone(tracks)})
	}
}

func (c *Controller) publish(ev Event) {
	ev.Session = c.Session()
	c.bus.Publish(ev)
}
