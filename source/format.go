package source

import (
	"path"
	"strings"
)

// Format is the manifest family of a NativeAdaptive address.
type Format int

const (
	Progressive Format = iota
	HLS
	DASH
)

func (f Format) String() string {
	switch f {
	case HLS:
		return "hls"
	case DASH:
		return "dash"
	default:
		return "progressive"
	}
}

// DetectFormat guesses the manifest family from the address alone.
func DetectFormat(address string) Format {
	addr := strings.ToLower(strings.TrimSpace(address))
	_, p := split(addr)

	switch path.Ext(p) {
	case ".m3u8", ".m3u":
		return HLS
	case ".mpd":
		return DASH
	}

	switch {
	case strings.Contains(addr, ".m3u8"):
		return HLS
	case strings.Contains(addr, ".mpd"):
		return DASH
	}
	return Progressive
}
