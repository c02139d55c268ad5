package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-chat/internal/apperrors"
	"social-chat/internal/chat"
	"social-chat/internal/middleware"
	"social-chat/internal/presence"
)

// ChatHandler exposes the REST surface of the chat service.
type ChatHandler struct {
	ingress       *chat.Ingress
	conversations *chat.ConversationService
	tracker       *presence.Tracker
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(ingress *chat.Ingress, conversations *chat.ConversationService, tracker *presence.Tracker) *ChatHandler {
	return &ChatHandler{ingress: ingress, conversations: conversations, tracker: tracker}
}

// Register mounts the chat routes on the given group.
func (h *ChatHandler) Register(group *gin.RouterGroup) {
	group.POST("/conversations", h.CreateConversation)
	group.POST("/conversations/direct", h.GetOrCreateDirect)
	group.GET("/conversations", h.ListConversations)
	group.GET("/conversations/:id", h.GetConversation)
	group.GET("/conversations/:id/messages", h.History)
	group.POST("/conversations/:id/messages", h.SendMessage)
	group.POST("/conversations/:id/read", h.MarkAsRead)
	group.GET("/conversations/:id/presence", h.ConversationPresence)
	group.GET("/presence", h.AllPresence)
	group.POST("/heartbeat", h.Heartbeat)
}

// SendMessage admits a message into the pipeline. 202 signals acceptance,
// not delivery; persistence happens asynchronously.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req chat.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.ConversationID = c.Param("id")

	envelope, err := h.ingress.Send(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, envelope)
}

// CreateConversation opens a new conversation for the caller.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req chat.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	conversation, err := h.conversations.Create(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, conversation)
}

// ListConversations returns the caller's enriched conversation list.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	updates, err := h.conversations.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": updates})
}

// GetConversation returns one conversation the caller participates in.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conversation, err := h.conversations.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// History returns one page of messages, oldest first.
func (h *ChatHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))

	messages, err := h.conversations.History(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), page, size)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "page": page, "size": size})
}

// MarkAsRead advances the caller's delivery entries in the conversation.
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	updated, err := h.conversations.MarkAsRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// ConversationPresence reports the live status of a conversation's
// participants.
func (h *ChatHandler) ConversationPresence(c *gin.Context) {
	conversation, err := h.conversations.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	presences, err := h.tracker.Snapshot(c.Request.Context(), conversation.ParticipantIDs)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": presences})
}

// GetOrCreateDirect finds or opens the direct conversation with the other
// user.
func (h *ChatHandler) GetOrCreateDirect(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	conversation, err := h.conversations.GetOrCreateDirect(c.Request.Context(), middleware.CurrentUserID(c), req.UserID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// AllPresence reports the live status of every active user.
func (h *ChatHandler) AllPresence(c *gin.Context) {
	presences, err := h.tracker.AllPresence(c.Request.Context())
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": presences})
}

// Heartbeat refreshes the caller's presence session without a websocket
// frame. Clients on flaky sockets use this as a fallback; no body is needed
// since the session is found by the authenticated user id.
func (h *ChatHandler) Heartbeat(c *gin.Context) {
	active := h.tracker.Heartbeat(middleware.CurrentUserID(c))
	c.JSON(http.StatusOK, gin.H{"active": active})
}
