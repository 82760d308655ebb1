// Package realtime fans mutation events out to live subscribers.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/ctxutil"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

const DefaultBufferSize = 100

// Bus is what the mutation side needs from the fan-out.
type Bus interface {
	Publish(ctx context.Context, ev Event)
	Subscribe(ctx context.Context, retroID uuid.UUID, topics ...Topic) *Subscription
}

type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	metrics       *observability.Metrics
	bufferSize    int
	subscriptions map[Topic]map[*Subscription]struct{}
	closed        bool
}

var _ Bus = (*Hub)(nil)

func NewHub(log *logger.Logger, metrics *observability.Metrics, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		log:           log.With("component", "EventHub"),
		metrics:       metrics,
		bufferSize:    bufferSize,
		subscriptions: make(map[Topic]map[*Subscription]struct{}),
	}
}

// Subscription receives the events of one retro. Filtering happens on the
// subscriber side: the raw buffer sees every event of its topics, so a
// subscriber can lag on traffic from other retros too.
type Subscription struct {
	ID      uuid.UUID
	RetroID uuid.UUID
	Topics  []Topic

	hub       *Hub
	raw       chan Event
	out       chan Event
	done      chan struct{}
	closeOnce sync.Once
	missed    atomic.Uint64
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.out }

// Missed counts events dropped because the buffer was full.
func (s *Subscription) Missed() uint64 { return s.missed.Load() }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.hub != nil {
			s.hub.remove(s)
		}
		close(s.done)
	})
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.raw:
			if ev.RetroID != s.RetroID {
				continue
			}
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}

// Subscribe registers for the given topics, or all topics when none are
// given. The subscription ends when ctx is done or Close is called.
func (h *Hub) Subscribe(ctx context.Context, retroID uuid.UUID, topics ...Topic) *Subscription {
	if len(topics) == 0 {
		topics = Topics
	}
	sub := &Subscription{
		ID:      uuid.New(),
		RetroID: retroID,
		Topics:  append([]Topic(nil), topics...),
		hub:     h,
		raw:     make(chan Event, h.bufferSize),
		out:     make(chan Event),
		done:    make(chan struct{}),
	}
	go sub.pump()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.hub = nil
		sub.Close()
		return sub
	}
	for _, t := range sub.Topics {
		subs, ok := h.subscriptions[t]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.subscriptions[t] = subs
		}
		subs[sub] = struct{}{}
		h.metrics.AddBusSubscribers(string(t), 1)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	h.log.Debug("subscribed", "subscription_id", sub.ID, "retro_id", retroID, "topics", sub.Topics)
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range sub.Topics {
		subs, ok := h.subscriptions[t]
		if !ok {
			continue
		}
		if _, ok := subs[sub]; !ok {
			continue
		}
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscriptions, t)
		}
		h.metrics.AddBusSubscribers(string(t), -1)
	}
	h.log.Debug("unsubscribed", "subscription_id", sub.ID, "retro_id", sub.RetroID)
}

// Publish never blocks. A subscriber whose buffer is full misses the event;
// the publisher and every other subscriber are unaffected.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.metrics.IncBusPublished(string(ev.Topic))
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscriptions[ev.Topic] {
		select {
		case sub.raw <- ev:
			h.metrics.IncBusDelivered(string(ev.Topic))
		default:
			sub.missed.Add(1)
			h.metrics.IncBusDropped(string(ev.Topic))
			kv := append([]interface{}{
				"subscription_id", sub.ID,
				"topic", ev.Topic,
				"retro_id", ev.RetroID,
			}, ctxutil.LogFields(ctx)...)
			h.log.Warn("Dropping event; subscriber buffer full", kv...)
		}
	}
}

func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[topic])
}

// Close ends every subscription. Later subscriptions end immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := map[*Subscription]struct{}{}
	for _, subs := range h.subscriptions {
		for sub := range subs {
			all[sub] = struct{}{}
		}
	}
	h.mu.Unlock()
	for sub := range all {
		sub.Close()
	}
}
