package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-chat/internal/models"
	"social-chat/internal/observability"
)

// Client is one websocket connection with serialized writes. Gorilla allows
// a single concurrent writer per connection.
type Client struct {
	UserID      int64
	SessionID   string
	ConnectedAt time.Time

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, userID int64, sessionID string) *Client {
	return &Client{
		UserID:      userID,
		SessionID:   sessionID,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// Send writes one event frame to the client.
func (c *Client) Send(event models.WSEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(event)
}

// Close tears the underlying connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hub tracks live clients on two axes: per-conversation rooms for the live
// view and per-user sets for private notifications. Delivery is best effort;
// a client that fails a write is dropped from every index.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	users map[int64]map[*Client]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		users: make(map[int64]map[*Client]struct{}),
	}
}

// JoinRoom adds the client to a conversation's live view.
func (h *Hub) JoinRoom(conversationID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][client] = struct{}{}
}

// LeaveRoom removes the client from a conversation's live view.
func (h *Hub) LeaveRoom(conversationID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(conversationID, client)
}

// Attach registers the client's personal notification destination.
func (h *Hub) Attach(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[*Client]struct{})
	}
	h.users[client.UserID][client] = struct{}{}
}

// Detach removes the client's personal destination.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromUser(client)
}

// BroadcastToConversation pushes the event to every live viewer of the
// conversation.
func (h *Hub) BroadcastToConversation(conversationID string, event models.WSEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for client := range h.rooms[conversationID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, client := range clients {
		if err := client.Send(event); err != nil {
			log.Printf("ws write failed conversation=%s user=%d: %v", conversationID, client.UserID, err)
			failed = append(failed, client)
			continue
		}
		observability.IncWSEvent("conversation", event.Type)
	}
	h.dropFailed(conversationID, failed)
}

// SendToUser pushes the event to each of the user's personal connections.
// An offline user is a no-op.
func (h *Hub) SendToUser(userID int64, event models.WSEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.users[userID]))
	for client := range h.users[userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, client := range clients {
		if err := client.Send(event); err != nil {
			log.Printf("ws write failed user=%d: %v", userID, err)
			failed = append(failed, client)
			continue
		}
		observability.IncWSEvent("user", event.Type)
	}
	h.dropFailed("", failed)
}

// RoomSize reports the number of live viewers of a conversation.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) dropFailed(conversationID string, failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range failed {
		_ = client.Close()
		if conversationID != "" {
			h.removeFromRoom(conversationID, client)
		}
		h.removeFromUser(client)
	}
}

func (h *Hub) removeFromRoom(conversationID string, client *Client) {
	room := h.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
}

func (h *Hub) removeFromUser(client *Client) {
	set := h.users[client.UserID]
	if set == nil {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.users, client.UserID)
	}
}
