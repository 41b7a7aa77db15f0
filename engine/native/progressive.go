package native

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/quality"
)

const (
	progressiveChunk = 512 << 10
	// progressiveNominalBps converts downloaded bytes to media seconds; a container
	// file carries no bitrate the engine could read without demuxing.
	progressiveNominalBps = 2_000_000
)

// progressiveStream downloads a single file in ranged chunks.
type progressiveStream struct {
	address string
	fetch   *fetcher

	offset      int64
	size        int64
	contentType string
	ended       bool
}

func newProgressive(address string, f *fetcher) *progressiveStream {
	return &progressiveStream{address: address, fetch: f, size: -1}
}

// open probes the first byte to learn the size and check that the file is reachable.
func (s *progressiveStream) open(ctx context.Context) error {
	resp, err := s.fetch.fetch(ctx, request{url: s.address, rng: &[2]int64{0, 0}}, engine.ManifestLoadFailed, nil)
	if err != nil {
		return err
	}

	s.contentType = strings.TrimSpace(strings.Split(resp.header.Get("Content-Type"), ";")[0])
	if resp.status == http.StatusPartialContent {
		s.size = contentRangeTotal(resp.header.Get("Content-Range"))
	} else {
		s.size = int64(len(resp.body))
	}
	return nil
}

func (s *progressiveStream) variants() []variant {
	return []variant{{index: 0, codecs: s.contentType}}
}

func (s *progressiveStream) normalizer(int) quality.Normalizer {
	return nil
}

func (s *progressiveStream) next(context.Context, int) (segment, error) {
	if s.ended || (s.size >= 0 && s.offset >= s.size) {
		return segment{}, errEndOfStream
	}

	end := s.offset + progressiveChunk - 1
	if s.size >= 0 {
		end = min(end, s.size-1)
	}
	return segment{req: request{url: s.address, rng: &[2]int64{s.offset, end}}}, nil
}

// account advances the offset. A server ignoring ranges sends the whole file at once.
func (s *progressiveStream) account(_ segment, resp response) float64 {
	n := int64(len(resp.body))
	if resp.status != http.StatusPartialContent || n < progressiveChunk {
		s.ended = true
	}
	s.offset += n
	return float64(n*8) / progressiveNominalBps
}

func (s *progressiveStream) live() bool      { return false }
func (s *progressiveStream) behind() float64 { return 0 }
func (s *progressiveStream) refresh() float64 {
	return 1
}

// contentRangeTotal returns the total of "bytes 0-0/1234", -1 when unknown.
func contentRangeTotal(v string) int64 {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return -1
	}
	return n
}
