package native

import (
	"time"
)

const (
	// ewmaAlpha weighs the newest throughput sample.
	ewmaAlpha = 0.3
	// safety is the share of the estimate a variant may use.
	safety = 0.8
)

// variant is one rendition the engine can download.
type variant struct {
	index     int
	height    int
	bandwidth int
	uri       string
	codecs    string
	fps       float64
}

// estimator is an exponentially weighted throughput average in bits per second.
type estimator struct {
	bps float64
	n   int
}

func (e *estimator) add(bytes int, elapsed time.Duration) {
	if bytes <= 0 || elapsed <= 0 {
		return
	}

	sample := float64(bytes*8) / elapsed.Seconds()
	if e.n == 0 {
		e.bps = sample
	} else {
		e.bps = ewmaAlpha*sample + (1-ewmaAlpha)*e.bps
	}
	e.n++
}

func (e *estimator) estimate() float64 {
	return e.bps
}

// choose returns the index of the best variant for the estimate.
// Variants taller than maxHeight are excluded unless nothing else is left;
// without an estimate the lowest bandwidth candidate is used.
func choose(variants []variant, estimate float64, maxHeight int) int {
	if len(variants) == 0 {
		return 0
	}

	candidates := variants
	if maxHeight > 0 {
		var capped []variant
		for _, v := range variants {
			if v.height == 0 || v.height <= maxHeight {
				capped = append(capped, v)
			}
		}
		if len(capped) > 0 {
			candidates = capped
		}
	}

	lowest := candidates[0]
	for _, v := range candidates[1:] {
		if v.bandwidth < lowest.bandwidth {
			lowest = v
		}
	}

	if estimate <= 0 {
		return lowest.index
	}

	budget := estimate * safety
	best, found := variant{}, false
	for _, v := range candidates {
		if float64(v.bandwidth) > budget {
			continue
		}
		if !found || v.bandwidth > best.bandwidth || (v.bandwidth == best.bandwidth && v.height > best.height) {
			best, found = v, true
		}
	}

	if !found {
		return lowest.index
	}
	return best.index
}
