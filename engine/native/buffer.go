package native

import (
	"github.com/streamctl/streamctl/profile"
)

// buffer models the media buffered ahead of the playhead, in seconds.
type buffer struct {
	level      float64
	stalled    bool
	stalledFor float64
	// ended is set once the last segment has been downloaded.
	ended bool
	skips int
}

// transition is a change of the buffering flag.
type transition struct {
	changed   bool
	buffering bool
	skipped   bool
}

// tick advances the playhead by dt seconds.
//
// While playing, an empty buffer stalls playback. A stall ends once the buffer
// holds RebufferingGoalSeconds (or whatever is left after the last segment),
// or, with StallSkipSeconds set, after StallThresholdSeconds as soon as any
// media is available, jumping the playhead forward.
func (b *buffer) tick(dt float64, playing bool, cfg profile.BufferConfig) transition {
	if b.stalled {
		return b.recover(dt, playing, cfg)
	}

	if !playing {
		return transition{}
	}

	b.level -= dt
	if b.level > 0 {
		return transition{}
	}

	b.level = 0
	if b.ended {
		return transition{}
	}

	b.stalled = true
	b.stalledFor = 0
	return transition{changed: true, buffering: true}
}

func (b *buffer) recover(dt float64, playing bool, cfg profile.BufferConfig) transition {
	if b.level >= cfg.RebufferingGoalSeconds || (b.ended && b.level > 0) {
		b.stalled = false
		return transition{changed: true, buffering: false}
	}

	if !playing {
		return transition{}
	}

	b.stalledFor += dt
	if cfg.StallSkipSeconds > 0 && b.stalledFor >= cfg.StallThresholdSeconds && b.level > 0 {
		b.level = max(b.level-cfg.StallSkipSeconds, 0)
		b.stalled = false
		b.skips++
		return transition{changed: true, buffering: false, skipped: true}
	}

	return transition{}
}

// full reports whether the downloader should wait.
func (b *buffer) full(cfg profile.BufferConfig) bool {
	return b.level >= cfg.BufferingGoalSeconds
}
