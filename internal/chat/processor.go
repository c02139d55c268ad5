package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
	"social-chat/internal/rabbitmq"
	"social-chat/internal/repositories"
)

// Processor is the durable stage of the pipeline. It consumes the input
// channel, persists the message with its delivery-status list and refreshed
// conversation summary, then republishes on the output channel. A failure
// at any step rejects the delivery to the dead-letter queue.
type Processor struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	publisher     Publisher

	now func() time.Time
}

// NewProcessor constructs the processing stage.
func NewProcessor(conversations repositories.ConversationRepository, messages repositories.MessageRepository, publisher Publisher) *Processor {
	return &Processor{
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		now:           time.Now,
	}
}

// Handle processes one input-channel delivery.
func (p *Processor) Handle(ctx context.Context, body []byte) error {
	var envelope models.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apperrors.Wrap(apperrors.CodeConsumeFailed, "decode input envelope", err)
	}

	// Membership is resolved again here: the status list reflects the
	// participant set at processing time, not at send time.
	conversation, err := p.conversations.GetActive(ctx, envelope.ConversationID)
	if err != nil {
		return err
	}

	processedAt := p.now().UTC()
	statusList := make([]models.StatusEntry, 0, len(conversation.ParticipantIDs))
	for _, participantID := range conversation.ParticipantIDs {
		status := models.DeliverySent
		if participantID == envelope.SenderID {
			status = models.DeliveryRead
		}
		statusList = append(statusList, models.StatusEntry{
			UserID:    participantID,
			Status:    status,
			Timestamp: processedAt,
		})
	}

	message := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       envelope.SenderID,
		Content:        envelope.Content,
		Attachments:    envelope.Attachments,
		Kind:           envelope.Kind,
		SentAt:         envelope.SentAt,
		StatusList:     statusList,
		Status:         models.StatusActive,
	}
	if err := p.messages.Create(ctx, message); err != nil {
		return err
	}

	envelope.MessageID = message.ID
	if err := p.publisher.Publish(ctx, rabbitmq.OutputRoutingKey, envelope); err != nil {
		return apperrors.Wrap(apperrors.CodePublishFailed, "publish to output channel", err)
	}

	log.Printf("message persisted id=%s conversation=%s participants=%d", message.ID, conversation.ID, len(statusList))
	return nil
}
