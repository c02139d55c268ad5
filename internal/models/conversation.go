package models

import "time"

// ConversationType distinguishes two-party chats from named groups.
type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

// EntityStatus marks soft-deleted rows.
type EntityStatus string

const (
	StatusActive  EntityStatus = "ACTIVE"
	StatusDeleted EntityStatus = "DELETED"
)

// LastMessage is the denormalized summary kept on a conversation for
// list-view efficiency.
type LastMessage struct {
	MessageID string      `db:"last_message_id" json:"message_id"`
	Content   string      `db:"last_message_content" json:"content"`
	SenderID  int64       `db:"last_message_sender_id" json:"sender_id"`
	Kind      MessageKind `db:"last_message_kind" json:"kind"`
	SentAt    time.Time   `db:"last_message_sent_at" json:"sent_at"`
}

// Conversation is a channel between a fixed set of participants.
type Conversation struct {
	ID             string           `db:"id" json:"id"`
	Type           ConversationType `db:"type" json:"type"`
	Name           string           `db:"name" json:"name,omitempty"`
	ParticipantIDs []int64          `json:"participant_ids"`
	CreatedBy      int64            `db:"created_by" json:"created_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
	LastMessage    *LastMessage     `json:"last_message,omitempty"`
	Status         EntityStatus     `db:"status" json:"-"`
	DeletedAt      *time.Time       `db:"deleted_at" json:"-"`
}

// HasParticipant reports membership of a user in the conversation.
func (c Conversation) HasParticipant(userID int64) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
