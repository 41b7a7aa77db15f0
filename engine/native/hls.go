package native

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/quality"
)

// mediaState is a loaded media playlist.
type mediaState struct {
	uri       string
	pl        *playlist.Media
	fetchedAt time.Time
}

// hlsStream follows a multivariant or media playlist.
type hlsStream struct {
	address         string
	fetch           *fetcher
	latencySegments int

	master *playlist.Multivariant
	media  map[int]*mediaState
	vars   []variant

	// nextSeq is the media sequence number of the next segment, -1 before the first.
	nextSeq  int
	edgeSeq  int
	target   float64
	isLive   bool
	lastInit string
}

func newHLS(address string, f *fetcher, latencySegments int) *hlsStream {
	return &hlsStream{
		address:         address,
		fetch:           f,
		latencySegments: max(latencySegments, 1),
		media:           make(map[int]*mediaState),
		nextSeq:         -1,
	}
}

func parsePlaylist(body []byte) (playlist.Playlist, error) {
	pl, err := playlist.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}
	return pl, nil
}

func (s *hlsStream) open(ctx context.Context) error {
	var pl playlist.Playlist
	_, err := s.fetch.fetch(ctx, request{url: s.address}, engine.ManifestLoadFailed, func(body []byte) (err error) {
		pl, err = parsePlaylist(body)
		return err
	})
	if err != nil {
		return err
	}

	switch p := pl.(type) {
	case *playlist.Multivariant:
		if len(p.Variants) == 0 {
			return engine.Wrap(engine.FatalEngineError, engine.Newf(engine.ManifestLoadFailed, "multivariant playlist has no variants"), "")
		}
		s.master = p
		for i, v := range p.Variants {
			bw := v.Bandwidth
			if v.AverageBandwidth != nil && *v.AverageBandwidth > 0 {
				bw = *v.AverageBandwidth
			}
			fps := 0.0
			if v.FrameRate != nil {
				fps = *v.FrameRate
			}
			s.vars = append(s.vars, variant{
				index:     i,
				height:    quality.ResolutionHeight(v.Resolution),
				bandwidth: bw,
				uri:       resolve(s.address, v.URI),
				codecs:    strings.Join(v.Codecs, ","),
				fps:       fps,
			})
		}
	case *playlist.Media:
		s.media[0] = &mediaState{uri: s.address, pl: p, fetchedAt: time.Now()}
		s.target = float64(p.TargetDuration)
		s.isLive = !p.Endlist
		s.vars = []variant{{index: 0, uri: s.address}}
	default:
		return engine.Wrap(engine.FatalEngineError, engine.Newf(engine.ManifestLoadFailed, "unsupported playlist %T", pl), "")
	}

	return nil
}

func (s *hlsStream) variants() []variant {
	return s.vars
}

func (s *hlsStream) normalizer(pinned int) quality.Normalizer {
	if s.master == nil {
		return nil
	}
	return quality.Levels{Variants: s.master.Variants, Pinned: pinned}
}

// playlistFor returns the media playlist of variant v, loading it on first use
// and reloading it once per target duration while the presentation is live.
func (s *hlsStream) playlistFor(ctx context.Context, v int) (*mediaState, error) {
	ms, ok := s.media[v]
	if ok && (ms.pl.Endlist || time.Since(ms.fetchedAt).Seconds() < float64(ms.pl.TargetDuration)) {
		return ms, nil
	}

	uri := s.address
	if v >= 0 && v < len(s.vars) {
		uri = s.vars[v].uri
	}

	var media *playlist.Media
	_, err := s.fetch.fetch(ctx, request{url: uri}, engine.ManifestLoadFailed, func(body []byte) error {
		pl, err := parsePlaylist(body)
		if err != nil {
			return err
		}
		m, ok := pl.(*playlist.Media)
		if !ok {
			return fmt.Errorf("expected a media playlist, got %T", pl)
		}
		media = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	ms = &mediaState{uri: uri, pl: media, fetchedAt: time.Now()}
	s.media[v] = ms
	s.target = float64(media.TargetDuration)
	s.isLive = !media.Endlist
	return ms, nil
}

func (s *hlsStream) next(ctx context.Context, v int) (segment, error) {
	ms, err := s.playlistFor(ctx, v)
	if err != nil {
		return segment{}, err
	}

	pl := ms.pl
	first := pl.MediaSequence
	last := first + len(pl.Segments) - 1
	s.edgeSeq = last

	if s.nextSeq < 0 {
		s.nextSeq = first
		if !pl.Endlist {
			s.nextSeq = max(first, last-s.latencySegments+1)
		}
	}
	if s.nextSeq < first {
		s.nextSeq = first
	}

	if s.nextSeq > last {
		if pl.Endlist {
			return segment{}, errEndOfStream
		}
		return segment{}, errLiveEdge
	}

	seg := pl.Segments[s.nextSeq-first]
	s.nextSeq++

	out := segment{
		req:      request{url: resolve(ms.uri, seg.URI)},
		duration: seg.Duration.Seconds(),
	}

	if pl.Map != nil {
		init := resolve(ms.uri, pl.Map.URI)
		if init != s.lastInit {
			out.init = &request{url: init}
			s.lastInit = init
		}
	}

	return out, nil
}

func (s *hlsStream) account(seg segment, _ response) float64 {
	return seg.duration
}

func (s *hlsStream) live() bool {
	return s.isLive
}

func (s *hlsStream) behind() float64 {
	if !s.live() || s.nextSeq < 0 {
		return 0
	}
	return float64(max(s.edgeSeq-s.nextSeq+1, 0)) * s.target
}

func (s *hlsStream) refresh() float64 {
	return max(s.target/2, 0.25)
}
