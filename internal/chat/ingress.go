package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
	"social-chat/internal/rabbitmq"
	"social-chat/internal/ratelimit"
	"social-chat/internal/repositories"
	"social-chat/internal/sanitize"
)

// Publisher pushes pipeline payloads onto the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Ingress validates inbound sends and hands them to the broker. It never
// touches message storage; persistence happens downstream in the processor.
type Ingress struct {
	conversations    repositories.ConversationRepository
	limiter          *ratelimit.Limiter
	publisher        Publisher
	maxMessageLength int

	now func() time.Time
}

// NewIngress constructs the ingress stage.
func NewIngress(conversations repositories.ConversationRepository, limiter *ratelimit.Limiter, publisher Publisher, maxMessageLength int) *Ingress {
	return &Ingress{
		conversations:    conversations,
		limiter:          limiter,
		publisher:        publisher,
		maxMessageLength: maxMessageLength,
		now:              time.Now,
	}
}

// SendRequest carries one inbound message from a client. The conversation id
// comes from the route, not the body.
type SendRequest struct {
	ConversationID string                   `json:"-"`
	Content        string                   `json:"content"`
	Attachments    []models.MediaAttachment `json:"attachments"`
}

// Send admits, sanitizes and publishes one message. The returned envelope is
// an acceptance echo; the message id is assigned later by the processor.
func (i *Ingress) Send(ctx context.Context, senderID int64, req SendRequest) (models.Envelope, error) {
	if err := i.limiter.Allow(senderID); err != nil {
		return models.Envelope{}, err
	}

	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		return models.Envelope{}, apperrors.New(apperrors.CodeEmptyContent, "message has no content and no attachments")
	}

	if err := sanitize.ValidateLength(req.Content, i.maxMessageLength); err != nil {
		return models.Envelope{}, err
	}
	content, err := sanitize.Clean(req.Content)
	if err != nil {
		return models.Envelope{}, err
	}

	conversation, err := i.conversations.GetActive(ctx, req.ConversationID)
	if err != nil {
		return models.Envelope{}, err
	}
	if !conversation.HasParticipant(senderID) {
		return models.Envelope{}, apperrors.New(apperrors.CodeNotAParticipant, "sender is not a participant")
	}

	if err := validateAttachments(req.Attachments); err != nil {
		return models.Envelope{}, err
	}

	envelope := models.Envelope{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    req.Attachments,
		Kind:           ClassifyKind(req.Attachments),
		SentAt:         i.now().UTC(),
	}

	if err := i.publisher.Publish(ctx, rabbitmq.InputRoutingKey, envelope); err != nil {
		return models.Envelope{}, apperrors.Wrap(apperrors.CodePublishFailed, "publish to input channel", err)
	}

	log.Printf("message accepted conversation=%s sender=%d kind=%s", conversation.ID, senderID, envelope.Kind)
	return envelope, nil
}

func validateAttachments(attachments []models.MediaAttachment) error {
	for _, attachment := range attachments {
		switch models.MessageKind(attachment.Type) {
		case models.KindImage, models.KindVideo:
		default:
			return apperrors.New(apperrors.CodeInvalidMediaType, "attachment type must be IMAGE or VIDEO")
		}
		if attachment.StorageID == "" {
			return apperrors.New(apperrors.CodeInvalidMediaType, "attachment is missing its storage id")
		}
	}
	return nil
}

// ClassifyKind derives the message kind from its attachments. Video wins
// over image in mixed sets.
func ClassifyKind(attachments []models.MediaAttachment) models.MessageKind {
	kind := models.KindText
	for _, attachment := range attachments {
		switch models.MessageKind(attachment.Type) {
		case models.KindVideo:
			return models.KindVideo
		case models.KindImage:
			kind = models.KindImage
		}
	}
	return kind
}
