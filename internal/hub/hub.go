// Package hub fans events out to browser clients over Server-Sent Events.
//
// Each event goes out as a named SSE frame (event: <type>) with a
// monotonically increasing id. The latest status line and the latest
// adapter edge are retained and replayed to clients that connect later,
// so a fresh page shows the current state without waiting for a change.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wifiscout/internal/service"
)

type client struct {
	id     string
	frames chan []byte
}

// Hub manages SSE client connections
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	retained map[string][]byte
	seq      uint64

	register   chan *client
	unregister chan *client
	broadcast  chan service.Event
	done       chan struct{}

	keepalive time.Duration
	log       logrus.FieldLogger
}

// New creates a new Hub
func New(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		retained:   make(map[string][]byte),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan service.Event, 256),
		done:       make(chan struct{}),
		keepalive:  30 * time.Second,
		log:        log,
	}
}

// retainKey groups event types whose latest value is replayed on connect.
// Empty means the event is not retained.
func retainKey(t service.EventType) string {
	switch t {
	case service.EventStatusChanged:
		return "status"
	case service.EventAdapterMissing, service.EventAdapterRestored:
		return "adapter"
	}
	return ""
}

// Run starts the hub's event loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case event := <-h.broadcast:
			h.fanout(event)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	// replay in a fixed order so status follows the adapter edge
	for _, key := range []string{"adapter", "status"} {
		if frame, ok := h.retained[key]; ok {
			c.frames <- frame
		}
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.WithField("client", c.id).Debugf("SSE client connected (total: %d)", total)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.frames)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.WithField("client", c.id).Debugf("SSE client disconnected (total: %d)", total)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.frames)
	}
}

func (h *Hub) fanout(event service.Event) {
	h.mu.Lock()
	h.seq++
	frame, err := encodeFrame(h.seq, event)
	if err != nil {
		h.mu.Unlock()
		h.log.WithError(err).WithField("type", event.Type).Warn("SSE: failed to encode event")
		return
	}
	if key := retainKey(event.Type); key != "" {
		h.retained[key] = frame
	}
	for c := range h.clients {
		select {
		case c.frames <- frame:
		default:
			h.log.WithField("client", c.id).Debug("SSE client is slow, skipping event")
		}
	}
	h.mu.Unlock()
}

func encodeFrame(id uint64, event service.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, data)
	return b.Bytes(), nil
}

// Broadcast queues an event for every connected client. It never blocks;
// events are dropped when the queue is full.
func (h *Hub) Broadcast(event service.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.WithField("type", event.Type).Warn("SSE: broadcast queue full, dropping event")
	}
}

// Forward broadcasts everything received on events until ctx ends
func (h *Hub) Forward(ctx context.Context, events <-chan service.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			h.Broadcast(event)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams events to one client until it goes away or the hub stops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		frames: make(chan []byte, 64),
	}
	select {
	case h.register <- c:
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.frames:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
		flusher.Flush()
	}
}
