package comms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistory is the number of events an InMemoryBus retains.
const DefaultHistory = 500

// InMemoryBus is a thread-safe in-process event bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[Topic][]handlerEntry
	history  []*Event
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus keeping the last maxHistory events.
// A non-positive maxHistory uses DefaultHistory.
func NewInMemoryBus(maxHistory int) *InMemoryBus {
	if maxHistory <= 0 {
		maxHistory = DefaultHistory
	}
	return &InMemoryBus{
		handlers: make(map[Topic][]handlerEntry),
		maxHist:  maxHistory,
	}
}

// NewEvent builds an event with a fresh ID and payload encoded as JSON.
func NewEvent(topic Topic, subject string, payload any) (*Event, error) {
	ev := &Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", topic, err)
		}
		ev.Payload = data
	}
	return ev, nil
}

// Publish appends ev to the history and calls every handler subscribed to
// ev.Topic or TopicAll. Handlers run synchronously outside the lock.
func (b *InMemoryBus) Publish(ctx context.Context, ev *Event) error {
	if ev.Topic == "" || ev.Topic == TopicAll {
		return fmt.Errorf("publish: invalid topic %q", ev.Topic)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	var targets []Handler
	for _, e := range b.handlers[ev.Topic] {
		targets = append(targets, e.handler)
	}
	for _, e := range b.handlers[TopicAll] {
		targets = append(targets, e.handler)
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish: %d handler error(s): %w", len(errs), errs[0])
	}
	return nil
}

// Subscribe registers handler for topic. Use TopicAll to receive everything.
// The returned function unsubscribes the handler.
func (b *InMemoryBus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			entries := b.handlers[topic]
			filtered := entries[:0]
			for _, e := range entries {
				if e.id != id {
					filtered = append(filtered, e)
				}
			}
			if len(filtered) == 0 {
				delete(b.handlers, topic)
			} else {
				b.handlers[topic] = filtered
			}
		})
	}
}

// History returns the most recent limit events on topic in chronological
// order. TopicAll matches every event; limit <= 0 means no limit.
func (b *InMemoryBus) History(topic Topic, limit int) ([]*Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Event
	for i := len(b.history) - 1; i >= 0; i-- {
		ev := b.history[i]
		if topic == TopicAll || ev.Topic == topic {
			result = append(result, ev)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result, nil
}
