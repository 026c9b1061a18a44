// Package eventbus fans out progress events (assessment phases, snapshot
// refreshes) to in-process listeners such as the debug log.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	TopicPhase           = "assessment.phase"
	TopicAssessmentDone  = "assessment.done"
	TopicAssessmentError = "assessment.failed"
	TopicSnapshot        = "snapshot.refreshed"
	TopicSnapshotError   = "snapshot.failed"
)

// Event is a small in-memory signal.
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels; slow ones drop events.
type Event struct {
	Topic string
	Time  time.Time
	// Subject identifies what the event is about (e.g. an assessment ID).
	Subject string
	Data    any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int, topics ...string) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}}
}

type subscriber struct {
	ch     chan Event
	topics map[string]struct{} // nil = all topics
	mu     sync.Mutex
	closed bool
}

func (s *subscriber) wants(topic string) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

func (s *subscriber) offer(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type memBus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Topic) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if !s.offer(e) {
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a listener for topics (all topics when none given).
func (b *memBus) Subscribe(buffer int, topics ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	if len(topics) > 0 {
		s.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.close()
		})
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func Dropped(b Bus) uint64 {
	if mb, ok := b.(*memBus); ok {
		return mb.dropped.Load()
	}
	return 0
}
