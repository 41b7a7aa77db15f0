package quality

// Representation is one entry of a DASH-style bitrate list.
type Representation struct {
	ID        string
	Bandwidth int
	Width     int
	Height    int
}

// BitrateList adapts a DASH adaptation set. Track indexes are positions in Representations.
type BitrateList struct {
	Representations []Representation
	Pinned          int
}

// Tracks implements Normalizer.
func (b BitrateList) Tracks() []Track {
	tracks := make([]Track, 0, len(b.Representations))
	for i, r := range b.Representations {
		tracks = append(tracks, Track{
			Index:     i,
			Height:    optionalPositive(r.Height),
			Bandwidth: optionalPositive(r.Bandwidth),
			Active:    b.Pinned != Auto && b.Pinned == i,
		})
	}
	return tracks
}
