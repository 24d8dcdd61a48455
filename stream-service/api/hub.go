package api

import "sync"

// Hub fans snapshots out to the SSE clients of each user. Every client has a
// one-slot mailbox: a slow client skips intermediate snapshots and only sees
// the latest one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[chan []byte]struct{})}
}

func (h *Hub) addClient(userID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[chan []byte]struct{})
		h.clients[userID] = set
	}
	set[ch] = struct{}{}
}

func (h *Hub) removeClient(userID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

// HasClients reports whether userID has an open stream on this instance.
func (h *Hub) HasClients(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Broadcast delivers data to every client of userID, replacing any snapshot
// still waiting in a client's mailbox.
func (h *Hub) Broadcast(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients[userID] {
		select {
		case ch <- data:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- data:
		default:
		}
	}
}
