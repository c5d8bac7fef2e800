package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains active dashboard connections and broadcasts fleet events to all of them
type Hub struct {
	// Registered clients
	clients map[*Client]struct{}

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Messages sent to each client right after it connects
	welcome func() [][]byte

	done chan struct{}

	// Mutex for thread-safe client map access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetWelcome sets the messages replayed to new clients, typically the
// current snapshot and route plan. Call before Run.
func (h *Hub) SetWelcome(fn func() [][]byte) {
	h.welcome = fn
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			if h.welcome != nil {
				for _, msg := range h.welcome() {
					select {
					case client.send <- msg:
					default:
					}
				}
			}
			log.Printf("✅ [WEBSOCKET] Dashboard connected: %s (total: %d)", client.ID, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("🔴 [WEBSOCKET] Dashboard disconnected: %s (remaining: %d)", client.ID, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full, disconnect
					close(client.send)
					delete(h.clients, client)
					log.Printf("⚠️ Client buffer full, disconnecting: %s", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast sends raw message bytes to every connected client
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// BroadcastJSON marshals data and sends it to every connected client
func (h *Hub) BroadcastJSON(data interface{}) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ Failed to marshal broadcast message: %v", err)
		return
	}
	h.Broadcast(dataBytes)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
