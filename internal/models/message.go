package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind classifies a message by its attachments.
type MessageKind string

const (
	KindText   MessageKind = "TEXT"
	KindImage  MessageKind = "IMAGE"
	KindVideo  MessageKind = "VIDEO"
	KindSystem MessageKind = "SYSTEM"
)

// DeliveryStatus tracks per-participant message state. Transitions are
// monotonic: SENT -> DELIVERED -> READ.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryRead      DeliveryStatus = "READ"
)

// AttachmentMetadata is a free-form JSON blob stored alongside an attachment.
type AttachmentMetadata map[string]any

func (m AttachmentMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *AttachmentMetadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, m)
	case string:
		return json.Unmarshal([]byte(data), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}

// MediaAttachment references media already uploaded to the binary store.
type MediaAttachment struct {
	Type      string             `db:"type" json:"type"`
	StorageID string             `db:"storage_id" json:"storage_id"`
	URL       string             `db:"url" json:"url"`
	Metadata  AttachmentMetadata `db:"metadata" json:"metadata,omitempty"`
}

// StatusEntry holds one participant's delivery state for a message.
type StatusEntry struct {
	UserID    int64          `db:"user_id" json:"user_id"`
	Status    DeliveryStatus `db:"status" json:"status"`
	Timestamp time.Time      `db:"updated_at" json:"timestamp"`
}

// Message is the durable chat message. Immutable except for delivery-status
// transitions and soft delete.
type Message struct {
	ID             string            `db:"id" json:"id"`
	ConversationID string            `db:"conversation_id" json:"conversation_id"`
	SenderID       int64             `db:"sender_id" json:"sender_id"`
	SenderName     string            `db:"-" json:"sender_name,omitempty"`
	Content        string            `db:"content" json:"content,omitempty"`
	Attachments    []MediaAttachment `json:"attachments,omitempty"`
	Kind           MessageKind       `db:"kind" json:"kind"`
	SentAt         time.Time         `db:"sent_at" json:"sent_at"`
	StatusList     []StatusEntry     `json:"status_list,omitempty"`
	Status         EntityStatus      `db:"status" json:"-"`
	DeletedAt      *time.Time        `db:"deleted_at" json:"-"`
}
