package notify

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
)

// Hub fans notifications out to connected websocket clients. The client
// set is owned by the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Notification
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	connected atomic.Int64
	dropped   atomic.Int64
	log       *logger.Logger
	now       func() time.Time
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Notification, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
		now:        time.Now,
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.connected.Add(1)
			h.log.WithFields(map[string]interface{}{
				"user_id": client.UserID,
				"clients": len(h.clients),
			}).Debug("Websocket client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.log.WithFields(map[string]interface{}{
					"user_id": client.UserID,
					"clients": len(h.clients),
				}).Debug("Websocket client disconnected")
			}
		case n := <-h.broadcast:
			h.deliver(n)
		}
	}
}

// join and leave give up once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.connected.Add(-1)
}

func (h *Hub) deliver(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.log.WithFields(map[string]interface{}{
			"type":  n.Type,
			"error": err.Error(),
		}).Error("Failed to encode notification")
		return
	}

	for client := range h.clients {
		if !n.addressedTo(client.UserID, client.Role) {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.remove(client)
		}
	}
}

// Publish queues n for delivery. When the queue is full the notification
// is dropped.
func (h *Hub) Publish(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = h.now()
	}

	select {
	case h.broadcast <- n:
	default:
		h.dropped.Add(1)
		h.log.WithFields(map[string]interface{}{
			"type": n.Type,
		}).Warn("Notification queue full, dropping notification")
	}
}

// Connected reports the number of live websocket clients.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// Dropped reports how many notifications were discarded.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
