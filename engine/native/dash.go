package native

import (
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/quality"
)

type mpd struct {
	XMLName                   xml.Name `xml:"MPD"`
	Type                      string   `xml:"type,attr"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
	AvailabilityStartTime     string   `xml:"availabilityStartTime,attr"`
	MinimumUpdatePeriod       string   `xml:"minimumUpdatePeriod,attr"`
	BaseURL                   string   `xml:"BaseURL"`
	Periods                   []period `xml:"Period"`
}

type period struct {
	BaseURL        string          `xml:"BaseURL"`
	AdaptationSets []adaptationSet `xml:"AdaptationSet"`
}

type adaptationSet struct {
	MimeType        string           `xml:"mimeType,attr"`
	ContentType     string           `xml:"contentType,attr"`
	Codecs          string           `xml:"codecs,attr"`
	FrameRate       string           `xml:"frameRate,attr"`
	BaseURL         string           `xml:"BaseURL"`
	SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
	Representations []representation `xml:"Representation"`
}

type representation struct {
	ID              string           `xml:"id,attr"`
	Bandwidth       int              `xml:"bandwidth,attr"`
	Width           int              `xml:"width,attr"`
	Height          int              `xml:"height,attr"`
	Codecs          string           `xml:"codecs,attr"`
	FrameRate       string           `xml:"frameRate,attr"`
	MimeType        string           `xml:"mimeType,attr"`
	BaseURL         string           `xml:"BaseURL"`
	SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
}

type segmentTemplate struct {
	Media          string `xml:"media,attr"`
	Initialization string `xml:"initialization,attr"`
	StartNumber    *int   `xml:"startNumber,attr"`
	Duration       int    `xml:"duration,attr"`
	Timescale      int    `xml:"timescale,attr"`
}

func (a adaptationSet) video() bool {
	if strings.HasPrefix(a.MimeType, "video/") || a.ContentType == "video" {
		return true
	}
	for _, r := range a.Representations {
		if r.Height > 0 || strings.HasPrefix(r.MimeType, "video/") {
			return true
		}
	}
	return false
}

// dashRep is a representation with its effective template and base.
type dashRep struct {
	representation
	base     string
	tmpl     segmentTemplate
	segDur   float64
	startNum int
	codecs   string
	fps      float64
}

// dashStream follows an MPD with number-based segment templates.
type dashStream struct {
	address         string
	fetch           *fetcher
	latencySegments int

	dynamic   bool
	total     float64
	available time.Time
	reps      []dashRep
	vars      []variant

	// nextNum is the number of the next segment, -1 before the first.
	nextNum  int
	edgeNum  int
	lastInit string
}

func newDASH(address string, f *fetcher, latencySegments int) *dashStream {
	return &dashStream{
		address:         address,
		fetch:           f,
		latencySegments: max(latencySegments, 1),
		nextNum:         -1,
	}
}

func parseMPD(body []byte) (*mpd, error) {
	var m mpd
	if err := xml.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("parse mpd: %w", err)
	}
	if len(m.Periods) == 0 {
		return nil, fmt.Errorf("parse mpd: no period")
	}
	return &m, nil
}

func (s *dashStream) open(ctx context.Context) error {
	var m *mpd
	_, err := s.fetch.fetch(ctx, request{url: s.address}, engine.ManifestLoadFailed, func(body []byte) (err error) {
		m, err = parseMPD(body)
		return err
	})
	if err != nil {
		return err
	}

	unsupported := func(format string, args ...any) error {
		return engine.Wrap(engine.FatalEngineError, engine.Newf(engine.ManifestLoadFailed, format, args...), "unsupported manifest")
	}

	s.dynamic = m.Type == "dynamic"
	if d, err := parseISODuration(m.MediaPresentationDuration); err == nil {
		s.total = d.Seconds()
	}
	if s.dynamic {
		t, err := time.Parse(time.RFC3339, m.AvailabilityStartTime)
		if err != nil {
			return unsupported("dynamic mpd without availabilityStartTime")
		}
		s.available = t
	} else if s.total <= 0 {
		return unsupported("static mpd without mediaPresentationDuration")
	}

	p := m.Periods[0]
	base := s.address
	for _, b := range []string{m.BaseURL, p.BaseURL} {
		if b = strings.TrimSpace(b); b != "" {
			base = resolve(base, b)
		}
	}

	for _, as := range p.AdaptationSets {
		if !as.video() {
			continue
		}

		for _, r := range as.Representations {
			tmpl := as.SegmentTemplate
			if r.SegmentTemplate != nil {
				tmpl = r.SegmentTemplate
			}
			if tmpl == nil || tmpl.Media == "" || tmpl.Duration <= 0 {
				return unsupported("representation %q has no number based SegmentTemplate", r.ID)
			}

			timescale := max(tmpl.Timescale, 1)
			start := 1
			if tmpl.StartNumber != nil {
				start = *tmpl.StartNumber
			}

			repBase := base
			for _, b := range []string{as.BaseURL, r.BaseURL} {
				if b = strings.TrimSpace(b); b != "" {
					repBase = resolve(repBase, b)
				}
			}

			codecs := r.Codecs
			if codecs == "" {
				codecs = as.Codecs
			}
			fps := parseFrameRate(r.FrameRate)
			if fps == 0 {
				fps = parseFrameRate(as.FrameRate)
			}

			s.reps = append(s.reps, dashRep{
				representation: r,
				base:           repBase,
				tmpl:           *tmpl,
				segDur:         float64(tmpl.Duration) / float64(timescale),
				startNum:       start,
				codecs:         codecs,
				fps:            fps,
			})
		}
		break
	}

	if len(s.reps) == 0 {
		return unsupported("no video representation")
	}

	for i, r := range s.reps {
		s.vars = append(s.vars, variant{
			index:     i,
			height:    r.Height,
			bandwidth: r.Bandwidth,
			codecs:    r.codecs,
			fps:       r.fps,
		})
	}

	return nil
}

func (s *dashStream) variants() []variant {
	return s.vars
}

func (s *dashStream) normalizer(pinned int) quality.Normalizer {
	reps := make([]quality.Representation, len(s.reps))
	for i, r := range s.reps {
		reps[i] = quality.Representation{ID: r.ID, Bandwidth: r.Bandwidth, Width: r.Width, Height: r.Height}
	}
	return quality.BitrateList{Representations: reps, Pinned: pinned}
}

// liveEdge is the number of the newest complete segment of rep.
func (s *dashStream) liveEdge(rep dashRep, now time.Time) int {
	elapsed := now.Sub(s.available).Seconds()
	return rep.startNum + int(math.Floor(elapsed/rep.segDur)) - 1
}

func (s *dashStream) next(_ context.Context, v int) (segment, error) {
	if v < 0 || v >= len(s.reps) {
		v = 0
	}
	rep := s.reps[v]

	if s.dynamic {
		s.edgeNum = s.liveEdge(rep, time.Now())
	} else {
		s.edgeNum = rep.startNum + int(math.Ceil(s.total/rep.segDur)) - 1
	}

	if s.nextNum < 0 {
		s.nextNum = rep.startNum
		if s.dynamic {
			s.nextNum = max(rep.startNum, s.edgeNum-s.latencySegments+1)
		}
	}

	if s.nextNum > s.edgeNum {
		if s.dynamic {
			return segment{}, errLiveEdge
		}
		return segment{}, errEndOfStream
	}

	num := s.nextNum
	s.nextNum++

	out := segment{
		req:      request{url: resolve(rep.base, expandTemplate(rep.tmpl.Media, rep.ID, rep.Bandwidth, num))},
		duration: rep.segDur,
	}

	if rep.tmpl.Initialization != "" {
		init := resolve(rep.base, expandTemplate(rep.tmpl.Initialization, rep.ID, rep.Bandwidth, num))
		if init != s.lastInit {
			out.init = &request{url: init}
			s.lastInit = init
		}
	}

	return out, nil
}

func (s *dashStream) account(seg segment, _ response) float64 {
	return seg.duration
}

func (s *dashStream) live() bool {
	return s.dynamic
}

func (s *dashStream) behind() float64 {
	if !s.dynamic || s.nextNum < 0 || len(s.reps) == 0 {
		return 0
	}
	return float64(max(s.edgeNum-s.nextNum+1, 0)) * s.reps[0].segDur
}

func (s *dashStream) refresh() float64 {
	if len(s.reps) == 0 {
		return 1
	}
	return max(s.reps[0].segDur/2, 0.25)
}

var templateVar = regexp.MustCompile(`\$(RepresentationID|Number|Bandwidth)(%0(\d+)d)?\$`)

// expandTemplate substitutes $RepresentationID$, $Number$ and $Bandwidth$,
// honoring printf width tags such as $Number%05d$, and unescapes $$.
func expandTemplate(tmpl, id string, bandwidth, number int) string {
	out := templateVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		parts := templateVar.FindStringSubmatch(m)
		width, _ := strconv.Atoi(parts[3])

		switch parts[1] {
		case "RepresentationID":
			return id
		case "Bandwidth":
			return fmt.Sprintf("%0*d", width, bandwidth)
		default:
			return fmt.Sprintf("%0*d", width, number)
		}
	})
	return strings.ReplaceAll(out, "$$", "$")
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// parseISODuration parses the xs:duration subset used by MPDs (days and time parts).
func parseISODuration(s string) (time.Duration, error) {
	m := isoDuration.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(v * float64(unit))
	}
	return total, nil
}

// parseFrameRate accepts "25" and "30000/1001".
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
