// Package sse implements a Server-Sent Events hub that relays bus events to
// connected clients.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/GoCodeAlone/pacer/comms"
)

// clientBuffer is how many events a slow client may fall behind before
// events are dropped for it.
const clientBuffer = 64

type message struct {
	id    string
	topic comms.Topic
	data  []byte
}

type client struct {
	ch    chan message
	topic comms.Topic
}

// Hub manages SSE client connections and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	bus     comms.Bus
	logger  *slog.Logger
}

// NewHub creates a Hub. Call Attach to start relaying events from bus.
func NewHub(bus comms.Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		bus:     bus,
		logger:  logger,
	}
}

// Attach subscribes the hub to all topics on its bus. The returned function
// detaches it.
func (h *Hub) Attach() (detach func()) {
	if h.bus == nil {
		return func() {}
	}
	return h.bus.Subscribe(comms.TopicAll, h.Relay)
}

// Relay is a comms.Handler that forwards ev to every matching client.
func (h *Hub) Relay(_ context.Context, ev *comms.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse relay %s: %w", ev.Topic, err)
	}
	h.broadcast(message{id: ev.ID, topic: ev.Topic, data: data})
	return nil
}

func (h *Hub) broadcast(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.topic != comms.TopicAll && c.topic != m.topic {
			continue
		}
		select {
		case c.ch <- m:
		default:
			h.logger.Debug("sse client behind, event dropped", slog.String("topic", string(m.topic)))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeSSE handles an SSE connection request. The optional topic query
// parameter narrows the stream; replay=N first sends the last N events
// from the bus history.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := comms.TopicAll
	if t := r.URL.Query().Get("topic"); t != "" {
		topic = comms.Topic(t)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	c := &client{ch: make(chan message, clientBuffer), topic: topic}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	if n, err := strconv.Atoi(r.URL.Query().Get("replay")); err == nil && n > 0 && h.bus != nil {
		hist, _ := h.bus.History(topic, n)
		for _, ev := range hist {
			if data, err := json.Marshal(ev); err == nil {
				writeMessage(w, message{id: ev.ID, topic: ev.Topic, data: data})
			}
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-c.ch:
			writeMessage(w, m)
			flusher.Flush()
		}
	}
}

func writeMessage(w http.ResponseWriter, m message) {
	if m.id != "" {
		fmt.Fprintf(w, "id: %s\n", m.id) //nolint:errcheck
	}
	fmt.Fprintf(w, "event: %s\n", m.topic) //nolint:errcheck
	// Each SSE "data:" line must not contain newlines
	for _, line := range strings.Split(string(m.data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck
}
