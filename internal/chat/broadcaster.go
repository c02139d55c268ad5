package chat

import (
	"context"
	"encoding/json"
	"log"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
	"social-chat/internal/observability"
	"social-chat/internal/repositories"
)

// Sink delivers websocket events to connected clients. Delivery is
// best effort; an offline recipient is a no-op, not an error.
type Sink interface {
	BroadcastToConversation(conversationID string, event models.WSEvent)
	SendToUser(userID int64, event models.WSEvent)
}

// Broadcaster consumes the output channel and fans each persisted message
// out to two destinations: the conversation's live view gets the full
// message, and every participant's private destination gets a condensed
// conversation update. Fan-out failures are absorbed so one unreachable
// client cannot dead-letter a delivered message.
type Broadcaster struct {
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	sink          Sink
}

// NewBroadcaster constructs the fan-out stage.
func NewBroadcaster(conversations repositories.ConversationRepository, users repositories.UserRepository, sink Sink) *Broadcaster {
	return &Broadcaster{conversations: conversations, users: users, sink: sink}
}

// Handle fans out one output-channel delivery. The live view and the
// notification fan-out are independent: only a structurally bad payload
// dead-letters the delivery.
func (b *Broadcaster) Handle(ctx context.Context, body []byte) error {
	var envelope models.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apperrors.Wrap(apperrors.CodeConsumeFailed, "decode output envelope", err)
	}

	conversation, convErr := b.conversations.GetActive(ctx, envelope.ConversationID)

	// Name enrichment is cosmetic; a directory failure degrades the payload
	// rather than failing the fan-out.
	var names map[int64]string
	if convErr == nil {
		names = b.displayNames(ctx, conversation.ParticipantIDs)
	}

	// The live view needs nothing beyond the envelope itself; it is
	// published even when the conversation lookup fails.
	view := models.MessageView{
		ID:             envelope.MessageID,
		ConversationID: envelope.ConversationID,
		SenderID:       envelope.SenderID,
		SenderName:     names[envelope.SenderID],
		Content:        envelope.Content,
		Attachments:    envelope.Attachments,
		Kind:           envelope.Kind,
		SentAt:         envelope.SentAt,
	}
	b.sink.BroadcastToConversation(envelope.ConversationID, models.WSEvent{Type: models.EventMessage, Data: view})
	observability.IncBroadcast("live_view", "ok")

	if convErr != nil {
		log.Printf("broadcast notification skipped conversation=%s: %v", envelope.ConversationID, convErr)
		observability.IncBroadcast("notification", "error")
		return nil
	}

	summary := models.MessageSummary{
		ID:             envelope.MessageID,
		ConversationID: conversation.ID,
		SenderID:       envelope.SenderID,
		SenderName:     names[envelope.SenderID],
		Kind:           envelope.Kind,
		PreviewText:    PreviewText(envelope.Content, envelope.Kind),
		SentAt:         envelope.SentAt,
	}
	participants := make([]models.Participant, 0, len(conversation.ParticipantIDs))
	for _, participantID := range conversation.ParticipantIDs {
		participants = append(participants, models.Participant{
			UserID:      participantID,
			DisplayName: names[participantID],
		})
	}

	update := models.ConversationUpdate{
		ConversationID:   conversation.ID,
		ConversationType: conversation.Type,
		ConversationName: conversation.Name,
		LastMessage:      &summary,
		UnreadCount:      1,
		UpdatedAt:        envelope.SentAt,
		Participants:     participants,
	}
	for _, participantID := range conversation.ParticipantIDs {
		b.sink.SendToUser(participantID, models.WSEvent{Type: models.EventConversationUpdate, Data: update})
		observability.IncBroadcast("notification", "ok")
	}

	log.Printf("message broadcast id=%s conversation=%s recipients=%d", envelope.MessageID, conversation.ID, len(conversation.ParticipantIDs))
	return nil
}

func (b *Broadcaster) displayNames(ctx context.Context, userIDs []int64) map[int64]string {
	users, err := b.users.Bulk(ctx, userIDs)
	if err != nil {
		log.Printf("broadcast name enrichment failed: %v", err)
		observability.IncBroadcast("enrichment", "error")
		return map[int64]string{}
	}
	names := make(map[int64]string, len(users))
	for _, user := range users {
		names[user.ID] = user.DisplayNameOrUsername()
	}
	return names
}
