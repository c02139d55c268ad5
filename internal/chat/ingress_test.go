package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat/internal/apperrors"
	"social-chat/internal/mocks"
	"social-chat/internal/models"
	"social-chat/internal/rabbitmq"
	"social-chat/internal/ratelimit"
)

func newTestIngress(conversations *mocks.ConversationRepository, publisher *mocks.Publisher) *Ingress {
	ingress := NewIngress(conversations, ratelimit.New(10, time.Second), publisher, 10000)
	ingress.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return ingress
}

func activeConversation(id string, participantIDs ...int64) models.Conversation {
	return models.Conversation{
		ID:             id,
		Type:           models.ConversationGroup,
		ParticipantIDs: participantIDs,
		Status:         models.StatusActive,
	}
}

func TestIngressSendPublishesEnvelope(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	publisher := new(mocks.Publisher)
	ingress := newTestIngress(conversations, publisher)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2, 3), nil)
	publisher.On("Publish", mock.Anything, rabbitmq.InputRoutingKey, mock.MatchedBy(func(payload any) bool {
		envelope, ok := payload.(models.Envelope)
		return ok && envelope.MessageID == "" && envelope.SenderID == 1 &&
			envelope.Content == "hello" && envelope.Kind == models.KindText
	})).Return(nil)

	envelope, err := ingress.Send(context.Background(), 1, SendRequest{
		ConversationID: "conv-1",
		Content:        "hello",
	})

	require.NoError(t, err)
	assert.Empty(t, envelope.MessageID)
	assert.Equal(t, "conv-1", envelope.ConversationID)
	assert.Equal(t, models.KindText, envelope.Kind)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), envelope.SentAt)
	publisher.AssertExpectations(t)
}

func TestIngressSendSanitizesContent(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	publisher := new(mocks.Publisher)
	ingress := newTestIngress(conversations, publisher)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	publisher.On("Publish", mock.Anything, rabbitmq.InputRoutingKey, mock.Anything).Return(nil)

	envelope, err := ingress.Send(context.Background(), 1, SendRequest{
		ConversationID: "conv-1",
		Content:        "<b>hi</b> & <i>bye</i>",
	})

	require.NoError(t, err)
	assert.Equal(t, "hi &amp; bye", envelope.Content)
}

func TestIngressSendRejectsDangerousContent(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	publisher := new(mocks.Publisher)
	ingress := newTestIngress(conversations, publisher)

	_, err := ingress.Send(context.Background(), 1, SendRequest{
		ConversationID: "conv-1",
		Content:        `<script>alert(1)</script>`,
	})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidContent))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngressSendRejectsEmptyMessage(t *testing.T) {
	ingress := newTestIngress(new(mocks.ConversationRepository), new(mocks.Publisher))

	_, err := ingress.Send(context.Background(), 1, SendRequest{
		ConversationID: "conv-1",
		Content:        "   ",
	})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmptyContent))
}

func TestIngressSendRejectsNonParticipant(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	publisher := new(mocks.Publisher)
	ingress := newTestIngress(conversations, publisher)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 2, 3), nil)

	_, err := ingress.Send(context.Background(), 1, SendRequest{
		ConversationID: "conv-1",
		Content:        "hello",
	})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotAParticipant))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngressSendRejectsUnknownAttachmentType(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	ingress := newTestIngress(conversations, new(mocks.Publisher))

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)

	_, err := ingress.Send(context.Background(), 1, SendRequest{
		ConversationID: "conv-1",
		Attachments: []models.MediaAttachment{
			{Type: "AUDIO", StorageID: "obj-1"},
		},
	})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidMediaType))
}

func TestIngressSendRateLimited(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	publisher := new(mocks.Publisher)
	ingress := newTestIngress(conversations, publisher)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	publisher.On("Publish", mock.Anything, rabbitmq.InputRoutingKey, mock.Anything).Return(nil)

	for n := 0; n < 10; n++ {
		_, err := ingress.Send(context.Background(), 1, SendRequest{ConversationID: "conv-1", Content: "hi"})
		require.NoError(t, err)
	}

	_, err := ingress.Send(context.Background(), 1, SendRequest{ConversationID: "conv-1", Content: "hi"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeRateLimited))
}

func TestIngressSendPublishFailure(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	publisher := new(mocks.Publisher)
	ingress := newTestIngress(conversations, publisher)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	publisher.On("Publish", mock.Anything, rabbitmq.InputRoutingKey, mock.Anything).
		Return(errors.New("broker down"))

	_, err := ingress.Send(context.Background(), 1, SendRequest{ConversationID: "conv-1", Content: "hi"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodePublishFailed))
}

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, models.KindText, ClassifyKind(nil))
	assert.Equal(t, models.KindImage, ClassifyKind([]models.MediaAttachment{{Type: "IMAGE"}}))
	assert.Equal(t, models.KindVideo, ClassifyKind([]models.MediaAttachment{
		{Type: "IMAGE"}, {Type: "VIDEO"},
	}))
}
