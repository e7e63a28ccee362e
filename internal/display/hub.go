package display

import (
	"sync"

	"go.uber.org/zap"
)

// Client is one connected display. Send is buffered; a client that cannot
// drain it fast enough loses events rather than stalling the broadcast, which
// is acceptable because events are re-fetch cues, not state.
type Client struct {
	ID           string
	DepartmentID string
	Send         chan []byte
}

// Hub fans turn events out to the connected displays of a department.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
	logger  *zap.Logger
}

// NewHub constructs a hub. buffer sizes each client's send channel.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		buffer:  buffer,
		logger:  logger,
	}
}

// Register attaches a display for one department and returns its client.
func (h *Hub) Register(id, departmentID string) *Client {
	client := &Client{
		ID:           id,
		DepartmentID: departmentID,
		Send:         make(chan []byte, h.buffer),
	}
	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()
	return client
}

// Unregister detaches a display and closes its channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(client.Send)
}

// Broadcast delivers a payload to every display subscribed to the department.
// An empty department id reaches all displays.
func (h *Hub) Broadcast(departmentID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if departmentID != "" && client.DepartmentID != "" && client.DepartmentID != departmentID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("dropping display event for slow client",
				zap.String("client_id", client.ID),
				zap.String("department_id", client.DepartmentID))
		}
	}
}

// ClientCount reports the number of connected displays.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
