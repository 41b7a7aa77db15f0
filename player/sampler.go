package player

import (
	"sync/atomic"
	"time"
)

// DefaultSampleInterval is the telemetry period.
const DefaultSampleInterval = time.Second

// sampler ticks at a fixed interval until stopped.
// alive is cleared before anything is torn down, so a tick already queued
// on the controller can tell it is stale.
type sampler struct {
	alive atomic.Bool
	stop  chan struct{}
	done  chan struct{}
}

func startSampler(interval time.Duration, tick func(s *sampler)) *sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}

	s := &sampler{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.alive.Store(true)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if s.alive.Load() {
					tick(s)
				}
			}
		}
	}()

	return s
}

func (s *sampler) live() bool {
	return s != nil && s.alive.Load()
}

// halt stops the ticker and waits for it. Nil and repeated calls are no-ops.
func (s *sampler) halt() {
	if s == nil || !s.alive.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done
}
