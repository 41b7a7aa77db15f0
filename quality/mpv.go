package quality

// MPVTrack is a video entry of mpv's track-list property.
type MPVTrack struct {
	ID       int     `json:"id"`
	Type     string  `json:"type"`
	DemuxW   int     `json:"demux-w"`
	DemuxH   int     `json:"demux-h"`
	Bitrate  int     `json:"hls-bitrate"`
	DemuxBR  int     `json:"demux-bitrate"`
	Codec    string  `json:"codec"`
	FPS      float64 `json:"demux-fps"`
	Selected bool    `json:"selected"`
}

// MPVTrackList adapts mpv's track-list. Track indexes are mpv track ids,
// which is what the "vid" property expects.
type MPVTrackList struct {
	Entries []MPVTrack
	// Pinned is the track id pinned by the controller, or Auto.
	Pinned int
}

// Tracks implements Normalizer. Audio and subtitle entries are skipped.
func (m MPVTrackList) Tracks() []Track {
	var tracks []Track
	for _, e := range m.Entries {
		if e.Type != "video" {
			continue
		}

		bw := e.Bitrate
		if bw == 0 {
			bw = e.DemuxBR
		}

		tracks = append(tracks, Track{
			Index:     e.ID,
			Height:    optionalPositive(e.DemuxH),
			Bandwidth: optionalPositive(bw),
			Active:    m.Pinned != Auto && m.Pinned == e.ID,
		})
	}
	return tracks
}
