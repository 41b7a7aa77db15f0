package native

import (
	"context"
	"errors"

	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

var (
	// errEndOfStream is returned by next after the last segment of a finished presentation.
	errEndOfStream = errors.New("end of stream")
	// errLiveEdge is returned by next when a live presentation has no new segment yet.
	errLiveEdge = errors.New("at live edge")
)

// segment is one downloadable chunk of media.
type segment struct {
	req request
	// init is the initialization section to download first, if it changed.
	init *request
	// duration is the media time in seconds, zero when only the body can tell.
	duration float64
}

// stream is one manifest family.
type stream interface {
	// open fetches and parses the stream description.
	open(ctx context.Context) error
	// variants lists the renditions, index being the manifest position.
	variants() []variant
	// normalizer exposes the renditions as quality tracks, nil when there is nothing to choose.
	normalizer(pinned int) quality.Normalizer
	// next returns the next segment of variant v.
	next(ctx context.Context, v int) (segment, error)
	// account returns the media seconds contained in a downloaded segment.
	account(seg segment, resp response) float64
	// live reports whether the presentation has a moving edge.
	live() bool
	// behind is the distance in seconds between the next segment and the live edge.
	behind() float64
	// refresh is how long to wait at the live edge before asking again.
	refresh() float64
}

func newStream(format source.Format, address string, f *fetcher, latencySegments int) stream {
	switch format {
	case source.HLS:
		return newHLS(address, f, latencySegments)
	case source.DASH:
		return newDASH(address, f, latencySegments)
	default:
		return newProgressive(address, f)
	}
}
