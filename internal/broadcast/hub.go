package broadcast

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/auto-dns/docker-metrics-stream/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Topic string

const (
	TopicMetrics Topic = "metrics"
	TopicEvents  Topic = "events"
)

// Message is one delivered item. Exactly one of Batch and Event is set, matching the topic.
type Message struct {
	Topic Topic                  `json:"topic"`
	Batch *domain.Batch          `json:"batch,omitempty"`
	Event *domain.LifecycleEvent `json:"event,omitempty"`
}

// Subscription receives the messages of one topic in publish order.
type Subscription struct {
	ID    string
	Topic Topic
	C     <-chan Message

	mu     sync.RWMutex
	ch     chan Message
	closed bool
}

// offer delivers msg without blocking and reports whether it was accepted.
func (s *Subscription) offer(msg Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type subscriberLists map[Topic][]*Subscription

// Hub fans messages out to subscribers. Subscriber lists are copy-on-write: publishers read an
// immutable snapshot without locking, and publishing never blocks. A subscriber whose buffer is
// full misses that message.
type Hub struct {
	logger zerolog.Logger
	buffer int

	mu   sync.Mutex // serializes writers
	subs atomic.Pointer[subscriberLists]
}

func NewHub(defaultBuffer int, logger zerolog.Logger) *Hub {
	if defaultBuffer <= 0 {
		defaultBuffer = 1
	}
	h := &Hub{
		logger: logger.With().Str("component", "broadcast").Logger(),
		buffer: defaultBuffer,
	}
	h.subs.Store(&subscriberLists{})
	return h
}

// Subscribe registers a subscriber on topic. A non-positive buffer uses the hub default.
func (h *Hub) Subscribe(topic Topic, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = h.buffer
	}
	ch := make(chan Message, buffer)
	sub := &Subscription{
		ID:    uuid.NewString(),
		Topic: topic,
		C:     ch,
		ch:    ch,
	}

	n := h.update(topic, func(current []*Subscription) []*Subscription {
		return append(slices.Clone(current), sub)
	})

	metrics.SetBroadcastSubscribers(string(topic), n)
	h.logger.Debug().Str("subscription", sub.ID).Msgf("Subscriber added to %s", topic)
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	n := h.update(sub.Topic, func(current []*Subscription) []*Subscription {
		return slices.DeleteFunc(slices.Clone(current), func(s *Subscription) bool { return s == sub })
	})
	sub.close()

	metrics.SetBroadcastSubscribers(string(sub.Topic), n)
	h.logger.Debug().Str("subscription", sub.ID).Msgf("Subscriber removed from %s", sub.Topic)
}

// Subscribers returns the number of current subscribers on topic.
func (h *Hub) Subscribers(topic Topic) int {
	return len((*h.subs.Load())[topic])
}

// PublishBatch delivers batch on the metrics topic.
func (h *Hub) PublishBatch(batch domain.Batch) {
	h.publish(Message{Topic: TopicMetrics, Batch: &batch})
}

// PublishEvent delivers ev on the events topic.
func (h *Hub) PublishEvent(ev domain.LifecycleEvent) {
	h.publish(Message{Topic: TopicEvents, Event: &ev})
}

func (h *Hub) publish(msg Message) {
	subs := (*h.subs.Load())[msg.Topic]
	if len(subs) == 0 {
		h.logger.Trace().Msgf("No subscribers on %s, dropping message", msg.Topic)
		return
	}
	for _, sub := range subs {
		if !sub.offer(msg) {
			metrics.RecordBroadcastDropped(string(msg.Topic))
			h.logger.Debug().Str("subscription", sub.ID).Msgf("Subscriber buffer full on %s, message dropped", msg.Topic)
		}
	}
}

// update swaps in a new list for topic and returns its length.
func (h *Hub) update(topic Topic, fn func([]*Subscription) []*Subscription) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := *h.subs.Load()
	next := make(subscriberLists, len(current)+1)
	for t, list := range current {
		next[t] = list
	}
	next[topic] = fn(current[topic])
	h.subs.Store(&next)
	return len(next[topic])
}
