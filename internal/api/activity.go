package api

import (
	"encoding/json"
	"net/http"
	"sync"
)

// ─── Live Activity Feed ─────────────────────────────────────────────────────
// The web UI shows a running feed of household events (completions,
// rewards) without polling. Delivered via Server-Sent Events for
// simplicity and HTTP/2 compatibility.

// ActivityEvent is one item on the household activity feed.
type ActivityEvent struct {
	Type      string  `json:"type"` // "completion", "reward", "rejection"
	ChoreID   string  `json:"chore_id,omitempty"`
	Title     string  `json:"title,omitempty"`
	PersonID  string  `json:"person_id,omitempty"`
	Amount    string  `json:"amount,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	Message   string  `json:"message,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// ActivityHub manages SSE subscribers for the live activity feed.
type ActivityHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewActivityHub creates a new broadcast hub.
func NewActivityHub() *ActivityHub {
	return &ActivityHub{
		clients: make(map[chan []byte]struct{}),
	}
}

// Broadcast sends an event to all connected clients.
func (h *ActivityHub) Broadcast(event ActivityEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client too slow — drop message
		}
	}
}

// Subscribe registers a new client. Returns the channel and an unsubscribe func.
func (h *ActivityHub) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (h *ActivityHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleSSE serves the live activity feed.
// GET /api/activity/live
func (h *ActivityHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch, unsub := h.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-ch:
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
