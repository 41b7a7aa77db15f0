// Package network provides the shared HTTP stack used by the engines: a tuned transport,
// an optional Chrome TLS fingerprint, and the per-request filter hook.
package network

import (
	"net/http"
	"time"
)

// Client is the shared HTTP client for short requests such as manifest probes.
var Client = &http.Client{
	Timeout:   time.Minute,
	Transport: newTransport(),
}

// newTransport initializes a tuned http.Transport. Segment downloads are many small
// requests against few hosts, so the per-host pool is large.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100
	t.MaxConnsPerHost = 200
	t.IdleConnTimeout = 30 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = 30 * time.Second
	return t
}

// Options configures a session client.
type Options struct {
	// Fingerprint routes https requests through the Chrome fingerprint transport.
	Fingerprint bool
	// UserAgent is set on requests that carry none.
	UserAgent string
	// Filters run on every outbound request, in order.
	Filters []Filter
	// Timeout bounds each request. Zero means no client-level timeout.
	Timeout time.Duration
}

// NewClient builds a client for one playback session. Besides http and https it
// reads file URLs from the local filesystem.
func NewClient(opts Options) *http.Client {
	t := newTransport()
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	var base http.RoundTripper = t
	if opts.Fingerprint {
		base = NewFingerprintTransport(base)
	}

	filters := opts.Filters
	if opts.UserAgent != "" {
		filters = append([]Filter{UserAgent(opts.UserAgent)}, filters...)
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: Wrap(base, filters...),
	}
}

// closeIdle releases idle connections of rt when it keeps any.
func closeIdle(rt http.RoundTripper) {
	if c, ok := rt.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
