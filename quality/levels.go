package quality

import (
	"strconv"
	"strings"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

// Levels adapts the variants of an HLS multivariant playlist.
// Track indexes are positions in Variants.
type Levels struct {
	Variants []*playlist.MultivariantVariant
	// Pinned is the variant index pinned by the controller, or Auto.
	Pinned int
}

// Tracks implements Normalizer.
func (l Levels) Tracks() []Track {
	tracks := make([]Track, 0, len(l.Variants))
	for i, v := range l.Variants {
		if v == nil {
			continue
		}

		bw := v.Bandwidth
		if v.AverageBandwidth != nil && *v.AverageBandwidth > 0 {
			bw = *v.AverageBandwidth
		}

		tracks = append(tracks, Track{
			Index:     i,
			Height:    optionalPositive(ResolutionHeight(v.Resolution)),
			Bandwidth: optionalPositive(bw),
			Active:    l.Pinned != Auto && l.Pinned == i,
		})
	}
	return tracks
}

// ResolutionHeight extracts the height from a "WIDTHxHEIGHT" attribute; 0 when malformed.
func ResolutionHeight(resolution string) int {
	_, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(resolution)), "x")
	if !ok {
		return 0
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return height
}
