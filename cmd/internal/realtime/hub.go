package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// Hub is the in-memory subscriber registry + broadcast fanout primitive.
// One deployment serves one doctor-patient conversation, so the hub fans
// every change event out to every connected client.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	members map[string]*Client

	metrics *Metrics
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		log:     log,
		members: make(map[string]*Client),
		metrics: metrics,
	}
}

// Join adds a client to membership.
func (h *Hub) Join(client *Client) {
	if h == nil || client == nil || client.SessionID == "" {
		return
	}

	h.mu.Lock()
	h.members[client.SessionID] = client
	n := len(h.members)
	h.mu.Unlock()

	h.log.Info("hub.member.join", "session_id", client.SessionID, "members", n)
}

// Leave removes a client from membership and signals shutdown for that client.
func (h *Hub) Leave(sessionID string) {
	if h == nil || sessionID == "" {
		return
	}

	var cl *Client

	h.mu.Lock()
	cl = h.members[sessionID]
	delete(h.members, sessionID)
	n := len(h.members)
	h.mu.Unlock()

	// Signal client shutdown after removing from membership.
	// This ordering avoids race windows where a broadcaster still holds a
	// pointer while the client goroutines are being torn down.
	if cl != nil {
		cl.Close()
	}

	h.log.Info("hub.member.leave", "session_id", sessionID, "members", n)
}

// Members returns the current subscriber count.
func (h *Hub) Members() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// BroadcastChange wraps a change event and fans it out to all members.
func (h *Hub) BroadcastChange(ev ChangeEvent) {
	if h == nil {
		return
	}

	env, err := NewChangeEnvelope(ev, time.Now().UTC())
	if err != nil {
		h.log.Error("hub.broadcast.encode_fail", "err", err, "kind", string(ev.Kind))
		return
	}
	h.Broadcast(env)
}

// Broadcast fans an envelope out to all members.
// Non-blocking: if a member queue is full or the client is shutting down, it is dropped.
func (h *Hub) Broadcast(env Envelope) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, m := range h.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- env:
			h.metrics.EventSent()
		default:
			// Drop rather than block the whole feed.
			h.metrics.EventDropped()
			h.log.Warn("hub.broadcast.drop", "session_id", m.SessionID, "type", env.Type)
		}
	}
}
