package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"referral-ledger-go/internal/models"
	"referral-ledger-go/internal/monitoring"

	"go.uber.org/zap"
)

const publishBuffer = 256

// Message is the frame written to websocket clients
type Message struct {
	Type      string             `json:"type"`
	RoomID    string             `json:"room_id,omitempty"`
	UserID    string             `json:"user_id"`
	Timestamp int64              `json:"timestamp"`
	Data      *models.LiveUpdate `json:"data,omitempty"`
}

// Hub fans committed live updates out to the clients of their addressee.
// Every user has a personal room; a user may hold several connections.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	publish    chan models.LiveUpdate
	done       chan struct{}
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan models.LiveUpdate, publishBuffer),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// Run owns client registration and delivery until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case update := <-h.publish:
			h.sendToRoom(roomFor(update.UserId), Message{
				Type:      update.Type,
				RoomID:    roomFor(update.UserId),
				UserID:    update.UserId,
				Timestamp: update.Timestamp.Unix(),
				Data:      &update,
			})
		}
	}
}

// Publish queues an update for delivery. It never blocks the caller; when the
// queue is full the update is only available through the pull feed.
func (h *Hub) Publish(update models.LiveUpdate) {
	select {
	case h.publish <- update:
	default:
		zap.L().Warn("Push queue full, dropping update",
			zap.String("update_id", update.Id),
			zap.String("user_id", update.UserId))
	}
}

// ClientCount returns the number of connections for a user
func (h *Hub) ClientCount(userId string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomFor(userId)])
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room := roomFor(client.UserID)
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	monitoring.PushClients.Inc()
	zap.L().Info("Push client registered", zap.String("user_id", client.UserID))

	h.sendToClient(room, client, Message{
		Type:      "welcome",
		UserID:    client.UserID,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dropClient(roomFor(client.UserID), client)
}

func (h *Hub) sendToRoom(roomID string, message Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.rooms[roomID] {
		h.sendToClient(roomID, client, message)
	}
}

// sendToClient drops clients that cannot keep up. Callers hold the lock.
func (h *Hub) sendToClient(roomID string, client *Client, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		zap.L().Error("Failed to encode push message", zap.Error(err))
		return
	}

	select {
	case client.send <- data:
	default:
		zap.L().Warn("Dropping slow push client", zap.String("user_id", client.UserID))
		h.dropClient(roomID, client)
	}
}

func (h *Hub) dropClient(roomID string, client *Client) {
	room, ok := h.rooms[roomID]
	if !ok || !room[client] {
		return
	}

	delete(room, client)
	close(client.send)
	monitoring.PushClients.Dec()
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	zap.L().Info("Push client unregistered", zap.String("user_id", client.UserID))
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for roomID, room := range h.rooms {
		for client := range room {
			h.dropClient(roomID, client)
		}
	}
}

func roomFor(userId string) string {
	return "user_" + userId
}
