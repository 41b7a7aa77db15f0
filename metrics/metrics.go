// Package metrics exposes playback telemetry and lifecycle counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/player"
)

const namespace = "streamctl"

// Metrics holds the collectors fed from controller events.
type Metrics struct {
	registry *prometheus.Registry

	bitrate  prometheus.Gauge
	buffer   prometheus.Gauge
	latency  prometheus.Gauge
	fps      prometheus.Gauge
	state    *prometheus.GaugeVec
	tracks   prometheus.Gauge
	samples  prometheus.Counter
	changes  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	retries  prometheus.Counter
	sessions *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bitrate:  gauge("bitrate_kbps", "Bitrate of the latest telemetry sample"),
		buffer:   gauge("buffer_seconds", "Buffered media ahead of the play position"),
		latency:  gauge("latency_seconds", "Distance from the live edge"),
		fps:      gauge("fps", "Frames per second of the latest sample"),
		tracks:   gauge("quality_tracks", "Number of selectable quality tracks"),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current playback state, 0 otherwise",
		}, []string{"state"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_samples_total",
			Help:      "Total number of telemetry samples",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of playback state transitions",
		}, []string{"from", "to"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of terminal playback errors by kind",
		}, []string{"kind"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of engine request retries",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of loads by engine route",
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.bitrate, m.buffer, m.latency, m.fps, m.tracks, m.state,
		m.samples, m.changes, m.errors, m.retries, m.sessions,
	)
	m.setState(player.Idle)

	return m
}

// Observe updates the collectors from one event.
func (m *Metrics) Observe(ev player.Event) {
	switch ev.Kind {
	case player.TelemetrySampled:
		m.samples.Inc()
		m.bitrate.Set(float64(ev.Sample.BitrateKbps))
		m.buffer.Set(ev.Sample.BufferSeconds)
		m.latency.Set(ev.Sample.LatencySeconds)
		m.fps.Set(float64(ev.Sample.FPS))
	case player.StateChanged:
		m.changes.WithLabelValues(string(ev.From), string(ev.To)).Inc()
		m.setState(ev.To)
	case player.TracksChanged:
		m.tracks.Set(float64(len(ev.Tracks)))
	case player.Failed:
		kind := "unknown"
		if ev.Err != nil {
			kind = ev.Err.Kind.String()
		}
		m.errors.WithLabelValues(kind).Inc()
	case player.Retrying:
		m.retries.Inc()
	case player.SessionStarted:
		m.sessions.WithLabelValues(ev.Route.String()).Inc()
	}
}

func (m *Metrics) setState(current player.State) {
	for _, s := range player.States() {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
}

// Run observes sub until it is closed or ctx is done.
func (m *Metrics) Run(ctx context.Context, sub *player.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			m.Observe(ev)
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Infof("serving metrics on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics serve: %w", err)
	}
	return nil
}
