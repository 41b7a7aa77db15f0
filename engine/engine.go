// Package engine defines the uniform contract every playback backend is driven through.
// The architecture supports three backends: a headless adaptive client (native), the mpv
// player over JSON-IPC (mpv) and an isolated frame handed to the system browser (embed).
package engine

import (
	"time"

	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

// Engine encapsulates the capabilities the playback controller needs from a backend.
//
// Every method is fire-and-forget: failures are delivered through Callbacks.OnError
// and never returned across this boundary.
type Engine interface {
	// Load starts loading the source asynchronously. Completion is signalled
	// only through OnReady or OnError.
	Load(src source.StreamSource, cfg profile.BufferConfig)

	// SetPlaying records the play intent. Callable before ready.
	SetPlaying(playing bool)

	// SetVolume sets the volume in [0, 1]. Callable before ready.
	SetVolume(volume float64)

	// SetMuted mutes or unmutes. Callable before ready.
	SetMuted(muted bool)

	// QualityTracks returns the normalized track list, empty before the manifest is parsed.
	QualityTracks() []quality.Track

	// SelectQuality pins the track with the given index, quality.Auto restores ABR.
	// Unknown indexes are ignored.
	SelectQuality(index int)

	// Stats returns a best-effort telemetry sample. Unavailable fields are zero.
	Stats() Sample

	// Reconfigure applies new buffering parameters to a live session.
	// It returns false when the backend needs a reload to honor them.
	Reconfigure(cfg profile.BufferConfig) bool

	// Destroy releases every resource. It is safe to call more than once.
	Destroy()
}

// Callbacks are the events an engine reports. Nil callbacks are skipped.
type Callbacks struct {
	OnReady                func()
	OnError                func(*ErrorInfo)
	OnBufferingChanged     func(buffering bool)
	OnQualityTracksChanged func([]quality.Track)
	// OnRetry reports an engine-level retry of a failed request before it happens.
	OnRetry func(attempt int, next time.Time, cause *ErrorInfo)
}

// Ready invokes OnReady if set.
func (c Callbacks) Ready() {
	if c.OnReady != nil {
		c.OnReady()
	}
}

// Error invokes OnError if set.
func (c Callbacks) Error(info *ErrorInfo) {
	if c.OnError != nil {
		c.OnError(info)
	}
}

// Buffering invokes OnBufferingChanged if set.
func (c Callbacks) Buffering(buffering bool) {
	if c.OnBufferingChanged != nil {
		c.OnBufferingChanged(buffering)
	}
}

// Tracks invokes OnQualityTracksChanged if set.
func (c Callbacks) Tracks(tracks []quality.Track) {
	if c.OnQualityTracksChanged != nil {
		c.OnQualityTracksChanged(tracks)
	}
}

// Retry invokes OnRetry if set.
func (c Callbacks) Retry(attempt int, next time.Time, cause *ErrorInfo) {
	if c.OnRetry != nil {
		c.OnRetry(attempt, next, cause)
	}
}

// Intent is the user intent an engine has to remember until it is ready.
type Intent struct {
	Playing bool
	Volume  float64
	Muted   bool
}

// DefaultIntent is full volume, unmuted, not playing.
func DefaultIntent() Intent {
	return Intent{Volume: 1}
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
