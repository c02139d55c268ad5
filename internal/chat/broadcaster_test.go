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
)

func TestBroadcasterFansOutBothDestinations(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	users := new(mocks.UserRepository)
	sink := new(mocks.Sink)
	broadcaster := NewBroadcaster(conversations, users, sink)

	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	users.On("Bulk", mock.Anything, []int64{1, 2}).Return([]models.User{
		{ID: 1, Username: "ana", DisplayName: "Ana"},
		{ID: 2, Username: "bo"},
	}, nil)

	sink.On("BroadcastToConversation", "conv-1", mock.MatchedBy(func(event models.WSEvent) bool {
		view, ok := event.Data.(models.MessageView)
		return ok && event.Type == models.EventMessage &&
			view.ID == "msg-1" && view.SenderName == "Ana" && view.Content == "hello"
	})).Once()

	matchUpdate := mock.MatchedBy(func(event models.WSEvent) bool {
		update, ok := event.Data.(models.ConversationUpdate)
		return ok && event.Type == models.EventConversationUpdate &&
			update.UnreadCount == 1 &&
			update.LastMessage != nil && update.LastMessage.PreviewText == "hello"
	})
	sink.On("SendToUser", int64(1), matchUpdate).Once()
	sink.On("SendToUser", int64(2), matchUpdate).Once()

	err := broadcaster.Handle(context.Background(), encodeEnvelope(t, models.Envelope{
		MessageID:      "msg-1",
		ConversationID: "conv-1",
		SenderID:       1,
		Content:        "hello",
		Kind:           models.KindText,
		SentAt:         sentAt,
	}))

	require.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestBroadcasterNotificationOmitsAttachments(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	users := new(mocks.UserRepository)
	sink := new(mocks.Sink)
	broadcaster := NewBroadcaster(conversations, users, sink)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	users.On("Bulk", mock.Anything, mock.Anything).Return([]models.User{}, nil)

	sink.On("BroadcastToConversation", "conv-1", mock.MatchedBy(func(event models.WSEvent) bool {
		view := event.Data.(models.MessageView)
		return len(view.Attachments) == 1
	})).Once()
	sink.On("SendToUser", mock.Anything, mock.MatchedBy(func(event models.WSEvent) bool {
		update := event.Data.(models.ConversationUpdate)
		return update.LastMessage.PreviewText == "Image"
	})).Times(2)

	err := broadcaster.Handle(context.Background(), encodeEnvelope(t, models.Envelope{
		MessageID:      "msg-2",
		ConversationID: "conv-1",
		SenderID:       1,
		Kind:           models.KindImage,
		Attachments: []models.MediaAttachment{
			{Type: "IMAGE", StorageID: "obj-1", URL: "https://cdn/obj-1"},
		},
	}))

	require.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestBroadcasterSurvivesDirectoryFailure(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	users := new(mocks.UserRepository)
	sink := new(mocks.Sink)
	broadcaster := NewBroadcaster(conversations, users, sink)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	users.On("Bulk", mock.Anything, mock.Anything).Return(nil, errors.New("directory down"))
	sink.On("BroadcastToConversation", mock.Anything, mock.Anything).Once()
	sink.On("SendToUser", mock.Anything, mock.Anything).Times(2)

	err := broadcaster.Handle(context.Background(), encodeEnvelope(t, models.Envelope{
		MessageID:      "msg-3",
		ConversationID: "conv-1",
		SenderID:       1,
		Content:        "hello",
		Kind:           models.KindText,
	}))

	require.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestBroadcasterRejectsMalformedPayload(t *testing.T) {
	broadcaster := NewBroadcaster(new(mocks.ConversationRepository), new(mocks.UserRepository), new(mocks.Sink))

	err := broadcaster.Handle(context.Background(), []byte("{not json"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConsumeFailed))
}

func TestBroadcasterLiveViewSurvivesConversationLookupFailure(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	sink := new(mocks.Sink)
	broadcaster := NewBroadcaster(conversations, new(mocks.UserRepository), sink)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(models.Conversation{}, apperrors.New(apperrors.CodeConversationNotFound, "conversation not found"))

	sink.On("BroadcastToConversation", "conv-1", mock.MatchedBy(func(event models.WSEvent) bool {
		view, ok := event.Data.(models.MessageView)
		return ok && view.ID == "msg-4" && view.Content == "hello"
	})).Once()

	err := broadcaster.Handle(context.Background(), encodeEnvelope(t, models.Envelope{
		MessageID:      "msg-4",
		ConversationID: "conv-1",
		SenderID:       1,
		Content:        "hello",
		Kind:           models.KindText,
	}))

	require.NoError(t, err, "a lookup failure must not dead-letter the delivery")
	sink.AssertExpectations(t)
	sink.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything)
}
