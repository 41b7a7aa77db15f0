// Package quality normalizes each engine's notion of a quality variant into a single ordered track list.
//
// Every engine family exposes variants in its own vocabulary: HLS "levels",
// DASH "bitrate lists", and the track-list of the mpv player. Each family gets a
// Normalizer translating into Track; Normalize orders the result.
package quality

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Auto is the reserved index meaning "let ABR choose". It is never part of a track list.
const Auto = -1

// Track is one selectable rendition.
type Track struct {
	// Index addresses the rendition in the engine's own variant list.
	Index int
	// Height is the vertical resolution in pixels, when known.
	Height mo.Option[int]
	// Bandwidth is the advertised bitrate in bits per second, when known.
	Bandwidth mo.Option[int]
	// Active is set on the track pinned by the controller. Under ABR no track is active.
	Active bool
}

// Normalizer converts an engine-specific variant list into tracks.
type Normalizer interface {
	Tracks() []Track
}

// Normalize returns the normalizer's tracks sorted by descending height,
// unknown heights last, ties broken by descending bandwidth.
func Normalize(n Normalizer) []Track {
	if n == nil {
		return []Track{}
	}

	tracks := lo.Filter(n.Tracks(), func(t Track, _ int) bool {
		return t.Index >= 0
	})
	Sort(tracks)
	return tracks
}

// Sort orders tracks in place.
func Sort(tracks []Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		hi, iok := tracks[i].Height.Get()
		hj, jok := tracks[j].Height.Get()

		switch {
		case iok && !jok:
			return true
		case !iok && jok:
			return false
		case iok && jok && hi != hj:
			return hi > hj
		}

		return tracks[i].Bandwidth.OrElse(0) > tracks[j].Bandwidth.OrElse(0)
	})
}

// Find returns the track with the given engine index.
func Find(tracks []Track, index int) (Track, bool) {
	return lo.Find(tracks, func(t Track) bool {
		return t.Index == index
	})
}

// Pin marks the track with index as active and clears every other flag.
// Auto clears all flags.
func Pin(tracks []Track, index int) []Track {
	return lo.Map(tracks, func(t Track, _ int) Track {
		t.Active = index != Auto && t.Index == index
		return t
	})
}

// Label renders a short human readable description.
func Label(t Track) string {
	height, hok := t.Height.Get()
	bw, bok := t.Bandwidth.Get()

	switch {
	case hok && bok:
		return fmt.Sprintf("%dp · %s", height, FormatBandwidth(bw))
	case hok:
		return fmt.Sprintf("%dp", height)
	case bok:
		return FormatBandwidth(bw)
	default:
		return fmt.Sprintf("track %d", t.Index)
	}
}

// FormatBandwidth renders bits per second as kbps or Mbps.
func FormatBandwidth(bps int) string {
	if bps >= 1_000_000 {
		return fmt.Sprintf("%.1f Mbps", float64(bps)/1_000_000)
	}
	return fmt.Sprintf("%d kbps", bps/1000)
}

func optionalPositive(v int) mo.Option[int] {
	if v > 0 {
		return mo.Some(v)
	}
	return mo.None[int]()
}
