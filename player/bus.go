package player

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

// EventKind identifies what an Event carries.
type EventKind int

const (
	// StateChanged carries From and To.
	StateChanged EventKind = iota + 1
	// TracksChanged carries Tracks.
	TracksChanged
	// TelemetrySampled carries Sample.
	TelemetrySampled
	// Failed carries Err.
	Failed
	// Retrying carries Retry.
	Retrying
	// SessionStarted carries Source and Route.
	SessionStarted
)

var kindNames = map[EventKind]string{
	StateChanged:     "StateChanged",
	TracksChanged:    "TracksChanged",
	TelemetrySampled: "TelemetrySampled",
	Failed:           "Failed",
	Retrying:         "Retrying",
	SessionStarted:   "SessionStarted",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "EventKind(?)"
}

// Event is one message published by the controller.
type Event struct {
	Kind    EventKind
	Session string
	Time    time.Time

	From, To State
	Tracks   []quality.Track
	Sample   engine.Sample
	Err      *engine.ErrorInfo
	Retry    RetryState
	Source   source.StreamSource
	Route    source.Route
}

// DefaultBuffer is the channel capacity of a subscription.
const DefaultBuffer = 64

const dropLogEvery = 100

// Bus fans controller events out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full loses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber for the given kinds, or every kind when none is given.
// On a closed bus the returned subscription's channel is already closed.
func (b *Bus) Subscribe(buffer int, kinds ...EventKind) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	s := &Subscription{
		bus:   b,
		ch:    make(chan Event, buffer),
		kinds: lo.SliceToMap(kinds, func(k EventKind) (EventKind, struct{}) { return k, struct{}{} }),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every interested subscriber.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.wants(ev.Kind) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			n := s.dropped.Add(1)
			if n == 1 || n%dropLogEvery == 0 {
				log.Warnf("subscriber dropped %d events, last %s", n, ev.Kind)
			}
		}
	}
}

// Close closes every subscription. Later subscriptions are closed on creation.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.closed = true
		close(s.ch)
	}
	clear(b.subs)
}

// Subscription is a typed handle on the bus.
type Subscription struct {
	bus     *Bus
	ch      chan Event
	kinds   map[EventKind]struct{}
	dropped atomic.Uint64
	closed  bool
}

func (s *Subscription) wants(kind EventKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// C is closed when the subscription or the bus is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped is the number of events lost because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.bus.subs, s)
	close(s.ch)
}
