package http

import (
	"sync"

	"github.com/teamflow/teamflow-cli/internal/proto"
)

const clientSendBuffer = 64

// wsClient is one realtime connection as seen by the hub.
type wsClient struct {
	id       string
	userID   int64
	name     string
	send     chan proto.Frame
	drop     chan struct{}
	dropOnce sync.Once
	rooms    map[string]struct{}
}

func newWSClient(id string, userID int64, name string) *wsClient {
	return &wsClient{
		id:     id,
		userID: userID,
		name:   name,
		send:   make(chan proto.Frame, clientSendBuffer),
		drop:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
}

func (c *wsClient) disconnect() {
	c.dropOnce.Do(func() { close(c.drop) })
}

// Hub tracks project rooms and the connections joined to them.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*wsClient]struct{}
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*wsClient]struct{}),
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister removes c from the hub and every room it joined.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
}

// join adds c to room. Returns true if newly added.
func (h *Hub) join(c *wsClient, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.rooms[room]; ok {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*wsClient]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

// leave removes c from room. Returns true if removed.
func (h *Hub) leave(c *wsClient, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	h.leaveLocked(c, room)
	return true
}

func (h *Hub) leaveLocked(c *wsClient, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) inRoom(c *wsClient, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// Broadcast sends frame to every connection in room except skip, which may be nil.
// Slow consumers whose buffer is full are disconnected rather than silently skipped.
func (h *Hub) Broadcast(room string, frame proto.Frame, skip *wsClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.rooms[room] {
		if c == skip {
			continue
		}
		select {
		case c.send <- frame:
			sent++
		default:
			c.disconnect()
		}
	}
	return sent
}

// RoomSize returns how many connections are joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// DisconnectAll drops every live connection and forgets it immediately, so
// room sizes observed afterwards only count new connections. Clients see an
// abnormal close.
func (h *Hub) DisconnectAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.clients)
	for c := range h.clients {
		for room := range c.rooms {
			h.leaveLocked(c, room)
		}
		delete(h.clients, c)
		c.disconnect()
	}
	return n
}
