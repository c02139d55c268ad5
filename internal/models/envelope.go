package models

import "time"

// Envelope is the transient payload carried on the broker between the
// ingress, processor and broadcast stages. MessageID is empty on the input
// channel and populated before the output-channel publish.
type Envelope struct {
	MessageID      string            `json:"message_id,omitempty"`
	ConversationID string            `json:"conversation_id"`
	SenderID       int64             `json:"sender_id"`
	Content        string            `json:"content,omitempty"`
	Attachments    []MediaAttachment `json:"attachments,omitempty"`
	Kind           MessageKind       `json:"kind"`
	SentAt         time.Time         `json:"sent_at"`
}
