package models

import "time"

// PresenceStatus is a user's live connection state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "ONLINE"
	PresenceOffline PresenceStatus = "OFFLINE"
)

// Participant carries user details attached to conversation payloads.
type Participant struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// MessageView is the full representation pushed to the conversation's
// live-view destination.
type MessageView struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	SenderID       int64             `json:"sender_id"`
	SenderName     string            `json:"sender_name,omitempty"`
	Content        string            `json:"content,omitempty"`
	Attachments    []MediaAttachment `json:"attachments,omitempty"`
	Kind           MessageKind       `json:"kind"`
	SentAt         time.Time         `json:"sent_at"`
}

// MessageSummary is the condensed form used on notification destinations.
// It deliberately carries no attachment payload.
type MessageSummary struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       int64       `json:"sender_id"`
	SenderName     string      `json:"sender_name,omitempty"`
	Kind           MessageKind `json:"kind"`
	PreviewText    string      `json:"preview_text"`
	SentAt         time.Time   `json:"sent_at"`
}

// ConversationUpdate is pushed to each participant's private notification
// destination when a new message lands.
type ConversationUpdate struct {
	ConversationID   string           `json:"conversation_id"`
	ConversationType ConversationType `json:"conversation_type"`
	ConversationName string           `json:"conversation_name,omitempty"`
	LastMessage      *MessageSummary  `json:"last_message,omitempty"`
	UnreadCount      int              `json:"unread_count"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Participants     []Participant    `json:"participants,omitempty"`
}

// UserPresence is the presence record pushed to interested users and
// returned by presence queries.
type UserPresence struct {
	UserID   int64          `json:"user_id"`
	Username string         `json:"username"`
	Status   PresenceStatus `json:"status"`
	LastSeen *time.Time     `json:"last_seen,omitempty"`
}

// WSEvent wraps every frame written to a websocket client.
type WSEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// TypingIndicator is relayed to a conversation's live viewers; it is never
// brokered or persisted.
type TypingIndicator struct {
	ConversationID string `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// Event type names used on websocket frames.
const (
	EventMessage            = "message"
	EventConversationUpdate = "conversation_update"
	EventPresence           = "presence"
	EventTyping             = "typing"
)
