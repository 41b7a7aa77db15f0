package source

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// Route identifies the engine family that plays an address.
type Route int

const (
	// NativeAdaptive plays manifests and container files with the built-in adaptive engine.
	NativeAdaptive Route = iota
	// Compatibility plays embeddable video hosts through a general purpose player.
	Compatibility
	// EmbedFallback hands the address to an isolated frame without telemetry.
	EmbedFallback
)

var routeNames = map[Route]string{
	NativeAdaptive: "native",
	Compatibility:  "compatibility",
	EmbedFallback:  "embed",
}

func (r Route) String() string {
	if name, ok := routeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("route(%d)", int(r))
}

// ParseRoute converts a route name back into a Route.
func ParseRoute(s string) (Route, error) {
	for r, name := range routeNames {
		if strings.EqualFold(s, name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown route %q", s)
}

// Routes returns all route names, in declaration order.
func Routes() []string {
	return []string{NativeAdaptive.String(), Compatibility.String(), EmbedFallback.String()}
}

// vendorEmbedHosts ship their own embeddable players and are never manifest URLs.
var vendorEmbedHosts = []string{
	"ok.ru",
	"vk.com",
	"vkvideo.ru",
	"rutube.ru",
	"dzen.ru",
	"facebook.com",
}

// videoHosts are general embeddable video hosts a compatibility player can resolve.
var videoHosts = []string{
	"youtube.com",
	"youtu.be",
	"twitch.tv",
	"vimeo.com",
	"dailymotion.com",
	"kick.com",
	"soundcloud.com",
	"streamable.com",
	"wistia.com",
}

var mediaExtensions = []string{
	".m3u8", ".m3u", ".mpd",
	".mp4", ".m4v", ".webm", ".ts", ".mkv", ".mov", ".ogv", ".flv",
}

var manifestFragments = []string{
	"playlist.m3u8",
	"master.m3u8",
	"manifest.mpd",
}

// Classify maps an address to its engine route without any I/O.
// Rules are applied in order: vendor embed hosts, media extensions and
// manifest fragments, embeddable video hosts, then the embed fallback.
func Classify(address string) Route {
	addr := strings.ToLower(strings.TrimSpace(address))
	host, p := split(addr)

	if matchHost(host, vendorEmbedHosts) {
		return EmbedFallback
	}

	if hasMediaExtension(p) || containsAny(p, manifestFragments) {
		return NativeAdaptive
	}

	if matchHost(host, videoHosts) {
		return Compatibility
	}

	return EmbedFallback
}

// split returns the lowercased host and path of addr, with query and fragment removed.
// An address without a scheme starts with its host, up to the first slash.
func split(addr string) (host, p string) {
	u, err := url.Parse(addr)
	switch {
	case err == nil && u.Host != "":
		return strings.TrimPrefix(u.Hostname(), "www."), u.Path
	case err == nil && u.Scheme != "" && u.Opaque == "":
		return "", u.Path
	}

	p = addr
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	host, _, _ = strings.Cut(p, "/")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimPrefix(host, "www."), p
}

func hasMediaExtension(p string) bool {
	ext := path.Ext(p)
	if ext == "" {
		return false
	}
	for _, e := range mediaExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// matchHost reports whether host is one of hosts or a subdomain of one.
func matchHost(host string, hosts []string) bool {
	if host == "" {
		return false
	}
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
