package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Broadcaster broadcasts events to subscribed WebSocket clients. Kept as
// an interface so a future Redis-backed fan-out can stand in for
// horizontal scaling without touching callers.
type Broadcaster interface {
	Broadcast(deliberationID string, event *WSEvent)
}

type broadcastMsg struct {
	deliberationID string
	event          *WSEvent
}

// Hub manages WebSocket connections and broadcasts deliberation events
// to clients subscribed to a given deliberation: cell completions, tier
// advances, champion declarations.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	byDeliberationID map[string]map[*Client]bool

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:          make(map[*Client]bool),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		broadcast:        make(chan *broadcastMsg, 256),
		byDeliberationID: make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's event loop; call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	log.Debug().Str("client_id", client.id).Str("user_id", client.userID).Int("total_clients", len(h.clients)).Msg("websocket client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	client.subs.mu.RLock()
	for delibID := range client.subs.deliberations {
		if clients, ok := h.byDeliberationID[delibID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byDeliberationID, delibID)
			}
		}
	}
	client.subs.mu.RUnlock()

	log.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("websocket client unregistered")
}

// Broadcast implements Broadcaster.
func (h *Hub) Broadcast(deliberationID string, event *WSEvent) {
	h.broadcast <- &broadcastMsg{deliberationID: deliberationID, event: event}
}

func (h *Hub) broadcastEvent(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.byDeliberationID[msg.deliberationID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- msg.event:
		default:
			log.Warn().Str("client_id", client.id).Str("event_type", msg.event.Type).Msg("websocket client buffer full, dropping message")
		}
	}
}

// Subscribe adds a subscription for a client.
func (h *Hub) Subscribe(client *Client, deliberationID string) {
	if deliberationID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()
	client.subs.deliberations[deliberationID] = true
	if h.byDeliberationID[deliberationID] == nil {
		h.byDeliberationID[deliberationID] = make(map[*Client]bool)
	}
	h.byDeliberationID[deliberationID][client] = true
}

// Unsubscribe removes a subscription for a client.
func (h *Hub) Unsubscribe(client *Client, deliberationID string) {
	if deliberationID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()
	delete(client.subs.deliberations, deliberationID)
	if clients, ok := h.byDeliberationID[deliberationID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.byDeliberationID, deliberationID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
