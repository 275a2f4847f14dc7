// Package pubsub is the in-process change notification bus behind GraphQL
// subscriptions.
//
// Publish delivers synchronously to every live subscription on the exact
// topic. Delivery never blocks the publisher: each subscription has a
// buffered channel and an event that does not fit is dropped for that
// subscriber only.
package pubsub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"blog/internal/metrics"
	"blog/internal/models"
)

// PostTopic is the single channel for post events. Subscribers narrow it
// with a Filter.
const PostTopic = "post"

// CommentTopic is the per-post channel for comment events.
func CommentTopic(postID string) string {
	return "comment:" + postID
}

// Event is one change notification. Exactly one of Post and Comment is set.
type Event struct {
	Topic    string
	Mutation models.MutationType
	Post     *models.Post
	Comment  *models.Comment
}

// Filter reports whether a subscriber wants ev. A nil Filter accepts all.
type Filter func(ev Event) bool

type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64

	buffer  int
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(buffer int, log *zap.Logger, m *metrics.Metrics) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs:    make(map[string]map[uint64]*Subscription),
		buffer:  buffer,
		log:     log,
		metrics: m,
	}
}

// Subscription is a live stream of events on one topic. Its channel is closed
// when the subscription ends.
type Subscription struct {
	bus    *Bus
	topic  string
	id     uint64
	ch     chan Event
	filter Filter
	once   sync.Once

	mu   sync.Mutex
	stop func() bool
}

func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Topic() string { return s.topic }

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
	})
}

// Subscribe registers interest in topic until ctx is done or Close is called.
func (b *Bus) Subscribe(ctx context.Context, topic string, filter Filter) *Subscription {
	b.mu.Lock()
	b.nextID++
	s := &Subscription{
		bus:    b,
		topic:  topic,
		id:     b.nextID,
		ch:     make(chan Event, b.buffer),
		filter: filter,
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][s.id] = s
	b.mu.Unlock()

	b.metrics.SubscriptionOpened()
	stop := context.AfterFunc(ctx, s.Close)
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[s.topic]
	if _, ok := subs[s.id]; !ok {
		return
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(b.subs, s.topic)
	}
	close(s.ch)
	b.metrics.SubscriptionClosed()
}

// Publish fans ev out to the subscribers of topic and returns how many
// received it.
func (b *Bus) Publish(topic string, ev Event) int {
	ev.Topic = topic
	b.metrics.EventPublished(topic, string(ev.Mutation))

	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, s := range b.subs[topic] {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		select {
		case s.ch <- ev:
			delivered++
		default:
			b.metrics.EventDropped(topic)
			b.log.Warn("subscriber buffer full, dropping event",
				zap.String("topic", topic),
				zap.Uint64("subscription", s.id),
				zap.String("mutation", string(ev.Mutation)))
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
