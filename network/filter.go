package network

import (
	"net/http"

	"github.com/samber/lo"
	"github.com/streamctl/streamctl/source"
)

// SNIMaskHeader carries the configured mask on every request of a proxied source.
const SNIMaskHeader = "X-SNI-Mask"

// Filter mutates an outbound request before it is sent.
type Filter interface {
	Apply(req *http.Request)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(req *http.Request)

func (f FilterFunc) Apply(req *http.Request) { f(req) }

// SNIMask injects the mask header. An empty mask is a no-op.
type SNIMask string

func (m SNIMask) Apply(req *http.Request) {
	if m != "" {
		req.Header.Set(SNIMaskHeader, string(m))
	}
}

// UserAgent sets the user agent on requests without one.
type UserAgent string

func (ua UserAgent) Apply(req *http.Request) {
	if ua != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", string(ua))
	}
}

// FiltersFor returns the filters a source requires: the mask filter when the proxy is active.
func FiltersFor(src source.StreamSource) []Filter {
	if mask, ok := src.Mask(); ok {
		return []Filter{SNIMask(mask)}
	}
	return nil
}

// Headers applies filters to an empty request and returns the resulting headers.
// Used for backends that take static headers instead of an interceptor.
func Headers(filters ...Filter) map[string]string {
	req := &http.Request{Header: make(http.Header)}
	for _, f := range filters {
		f.Apply(req)
	}

	return lo.MapValues(req.Header, func(values []string, _ string) string {
		return values[0]
	})
}

// filterTransport runs filters on a clone of each request.
type filterTransport struct {
	base    http.RoundTripper
	filters []Filter
}

// Wrap returns a RoundTripper running filters before base. Without filters base is returned.
func Wrap(base http.RoundTripper, filters ...Filter) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	filters = lo.Filter(filters, func(f Filter, _ int) bool { return f != nil })
	if len(filters) == 0 {
		return base
	}
	return &filterTransport{base: base, filters: filters}
}

func (t *filterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for _, f := range t.filters {
		f.Apply(clone)
	}
	return t.base.RoundTrip(clone)
}

func (t *filterTransport) CloseIdleConnections() { closeIdle(t.base) }
