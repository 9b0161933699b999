package events

import (
	"log/slog"
	"sync"
	"time"
)

// subscriberBuffer bounds each subscriber's channel. Slow consumers drop
// events rather than stall the orchestration goroutine.
const subscriberBuffer = 64

// Bus fans events out to per-session subscribers. Events published to a
// session with no subscribers are dropped at the sink.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	logger *slog.Logger
}

// NewBus returns an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a consumer for a session's events. The returned cancel
// func closes the channel and removes the subscription.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan Event)
	}
	b.subs[sessionID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[sessionID]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subs, sessionID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its session. Ordering
// per session is the caller's responsibility: each slice publishes from a
// single goroutine.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"session_id", ev.SessionID, "type", ev.Type)
		}
	}
}

// SubscriberCount reports the subscribers for a session.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
