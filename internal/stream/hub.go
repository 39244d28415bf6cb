// Package stream fans bot events out to live subscribers.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"signalbot/internal/notify"
)

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SubscriberBufferSize: 64,
	}
}

// Hub distributes events to subscribers. It implements
// notify.NotificationChannel so it can sit behind a MultiNotifier.
//
// Broadcasting never blocks: a subscriber whose buffer is full misses the
// event and its drop count grows.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	stopped     bool

	metricsMu       sync.Mutex
	eventsReceived  uint64
	eventsDelivered uint64
	eventsDropped   uint64
}

// Subscriber receives events on C until it is unsubscribed or the hub stops.
type Subscriber struct {
	ID        string
	C         <-chan notify.Event
	CreatedAt time.Time

	ch      chan notify.Event
	types   map[notify.EventType]bool // nil means every type
	dropped atomic.Uint64
}

// Dropped returns how many events this subscriber missed.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscriber) wants(t notify.EventType) bool {
	return s.types == nil || s.types[t]
}

// NewHub creates a new hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string]*Subscriber),
	}
}

// Name implements notify.NotificationChannel.
func (h *Hub) Name() string { return "stream" }

// IsEnabled implements notify.NotificationChannel.
func (h *Hub) IsEnabled() bool { return true }

// Subscribe registers a subscriber for the given event types, or for every
// type when none are given. On a stopped hub the returned channel is
// already closed.
func (h *Hub) Subscribe(types ...notify.EventType) *Subscriber {
	ch := make(chan notify.Event, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        uuid.NewString(),
		C:         ch,
		CreatedAt: time.Now(),
		ch:        ch,
	}
	if len(types) > 0 {
		sub.types = make(map[notify.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(ch)
		return sub
	}
	h.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.ID]; ok {
		delete(h.subscribers, sub.ID)
		close(sub.ch)
	}
}

// Send broadcasts e to every interested subscriber.
func (h *Hub) Send(_ context.Context, e notify.Event) error {
	// Held for the whole broadcast so Unsubscribe cannot close a channel
	// mid-send; sends never block.
	h.mu.Lock()
	defer h.mu.Unlock()

	var delivered, dropped uint64
	for _, sub := range h.subscribers {
		if !sub.wants(e.Type) {
			continue
		}
		select {
		case sub.ch <- e:
			delivered++
		default:
			sub.dropped.Add(1)
			dropped++
		}
	}

	h.metricsMu.Lock()
	h.eventsReceived++
	h.eventsDelivered += delivered
	h.eventsDropped += dropped
	h.metricsMu.Unlock()
	return nil
}

// Stop closes every subscriber channel. Later subscribers get a closed
// channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	for id, sub := range h.subscribers {
		close(sub.ch)
		delete(h.subscribers, id)
	}
}

// Close implements io.Closer for notifier shutdown.
func (h *Hub) Close() error {
	h.Stop()
	return nil
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	EventsReceived  uint64
	EventsDelivered uint64
	EventsDropped   uint64
	Subscribers     int
}

// GetMetrics returns hub metrics.
func (h *Hub) GetMetrics() HubMetrics {
	h.metricsMu.Lock()
	m := HubMetrics{
		EventsReceived:  h.eventsReceived,
		EventsDelivered: h.eventsDelivered,
		EventsDropped:   h.eventsDropped,
	}
	h.metricsMu.Unlock()

	m.Subscribers = h.SubscriberCount()
	return m
}
