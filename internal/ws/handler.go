package ws

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"social-chat/internal/apperrors"
	"social-chat/internal/chat"
	"social-chat/internal/middleware"
	"social-chat/internal/models"
	"social-chat/internal/observability"
	"social-chat/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced at the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the websocket endpoints: the per-conversation live view and
// the per-user personal destination.
type Handler struct {
	hub           *Hub
	tracker       *presence.Tracker
	conversations *chat.ConversationService
}

// NewHandler constructs the websocket handler.
func NewHandler(hub *Hub, tracker *presence.Tracker, conversations *chat.ConversationService) *Handler {
	return &Handler{hub: hub, tracker: tracker, conversations: conversations}
}

// inboundFrame is what clients are allowed to send upstream. Everything
// else on the socket is ignored.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LiveView attaches the caller to a conversation's live message stream.
// Membership is checked before the upgrade so rejections stay plain HTTP.
func (h *Handler) LiveView(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	conversationID := c.Param("id")

	ctx, span := otel.Tracer("ws").Start(c.Request.Context(), "ws.live_view")
	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.Int64("user.id", userID),
	)

	if _, err := h.conversations.Get(ctx, userID, conversationID); err != nil {
		span.End()
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	span.End()
	if err != nil {
		log.Printf("ws upgrade failed conversation=%s user=%d: %v", conversationID, userID, err)
		return
	}

	client := NewClient(conn, userID, uuid.NewString())
	h.hub.JoinRoom(conversationID, client)
	observability.IncWSActive("conversation")
	log.Printf("ws live view joined conversation=%s user=%d ip=%s", conversationID, userID, observability.IPFromRequest(c.Request))
	defer func() {
		h.hub.LeaveRoom(conversationID, client)
		observability.DecWSActive("conversation")
		_ = client.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		if frame.Type == "typing" {
			h.relayTyping(conversationID, userID, frame.Data)
		}
	}
}

// Personal attaches the caller's private destination: conversation updates
// and presence events arrive here. The connection doubles as the presence
// session; heartbeats ride the same socket.
func (h *Handler) Personal(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed user=%d: %v", userID, err)
		return
	}

	sessionID := uuid.NewString()
	client := NewClient(conn, userID, sessionID)
	h.hub.Attach(client)
	h.tracker.Connect(c.Request.Context(), userID, sessionID)
	observability.IncWSActive("user")
	log.Printf("ws personal attached user=%d session=%s ip=%s", userID, sessionID, observability.IPFromRequest(c.Request))
	defer func() {
		h.tracker.Disconnect(c.Request.Context(), userID, sessionID)
		h.hub.Detach(client)
		observability.DecWSActive("user")
		_ = client.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		if frame.Type == "heartbeat" {
			if !h.tracker.Heartbeat(userID) {
				// Swept while the socket was silent; force a reconnect.
				return
			}
		}
	}
}

func (h *Handler) relayTyping(conversationID string, userID int64, data json.RawMessage) {
	var indicator struct {
		IsTyping bool `json:"is_typing"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &indicator); err != nil {
			return
		}
	}
	h.hub.BroadcastToConversation(conversationID, models.WSEvent{
		Type: models.EventTyping,
		Data: models.TypingIndicator{
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       indicator.IsTyping,
		},
	})
}
