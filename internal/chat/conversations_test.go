package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat/internal/apperrors"
	"social-chat/internal/mocks"
	"social-chat/internal/models"
)

func newTestConversationService(conversations *mocks.ConversationRepository, messages *mocks.MessageRepository, users *mocks.UserRepository) *ConversationService {
	service := NewConversationService(conversations, messages, users)
	service.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return service
}

func TestCreateGroupConversation(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	users := new(mocks.UserRepository)
	service := newTestConversationService(conversations, new(mocks.MessageRepository), users)

	users.On("CountActive", mock.Anything, []int64{2, 3, 1}).Return(3, nil)
	conversations.On("Create", mock.Anything, mock.AnythingOfType("*models.Conversation")).Return(nil)

	conversation, err := service.Create(context.Background(), 1, CreateRequest{
		Type:           models.ConversationGroup,
		Name:           "weekend plans",
		ParticipantIDs: []int64{2, 3},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, conversation.ID)
	assert.Equal(t, []int64{2, 3, 1}, conversation.ParticipantIDs)
	assert.Equal(t, int64(1), conversation.CreatedBy)
	assert.Equal(t, models.StatusActive, conversation.Status)
}

func TestCreateDirectRequiresExactlyTwo(t *testing.T) {
	service := newTestConversationService(new(mocks.ConversationRepository), new(mocks.MessageRepository), new(mocks.UserRepository))

	_, err := service.Create(context.Background(), 1, CreateRequest{
		Type:           models.ConversationDirect,
		ParticipantIDs: []int64{2, 3},
	})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParticipantList))
}

func TestCreateRejectsUnknownType(t *testing.T) {
	service := newTestConversationService(new(mocks.ConversationRepository), new(mocks.MessageRepository), new(mocks.UserRepository))

	_, err := service.Create(context.Background(), 1, CreateRequest{
		Type:           "BROADCAST",
		ParticipantIDs: []int64{2, 3},
	})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidConversationType))
}

func TestCreateRejectsUnknownUsers(t *testing.T) {
	users := new(mocks.UserRepository)
	service := newTestConversationService(new(mocks.ConversationRepository), new(mocks.MessageRepository), users)

	users.On("CountActive", mock.Anything, []int64{2, 3, 1}).Return(2, nil)

	_, err := service.Create(context.Background(), 1, CreateRequest{
		Type:           models.ConversationGroup,
		ParticipantIDs: []int64{2, 3},
	})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeUserNotFound))
}

func TestCreateDirectReusesExisting(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	users := new(mocks.UserRepository)
	service := newTestConversationService(conversations, new(mocks.MessageRepository), users)

	existing := activeConversation("conv-direct", 1, 2)
	existing.Type = models.ConversationDirect
	users.On("CountActive", mock.Anything, []int64{1, 2}).Return(2, nil)
	conversations.On("FindDirectBetween", mock.Anything, int64(1), int64(2)).Return(existing, nil)

	conversation, err := service.GetOrCreateDirect(context.Background(), 1, 2)

	require.NoError(t, err)
	assert.Equal(t, "conv-direct", conversation.ID)
	conversations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetOrCreateDirectRejectsSelf(t *testing.T) {
	service := newTestConversationService(new(mocks.ConversationRepository), new(mocks.MessageRepository), new(mocks.UserRepository))

	_, err := service.GetOrCreateDirect(context.Background(), 1, 1)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParticipantList))
}

func TestGetEnforcesMembership(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	service := newTestConversationService(conversations, new(mocks.MessageRepository), new(mocks.UserRepository))

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 2, 3), nil)

	_, err := service.Get(context.Background(), 1, "conv-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotAParticipant))
}

func TestListEnrichesConversations(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	messages := new(mocks.MessageRepository)
	users := new(mocks.UserRepository)
	service := newTestConversationService(conversations, messages, users)

	sentAt := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	conversation := activeConversation("conv-1", 1, 2)
	conversation.LastMessage = &models.LastMessage{
		MessageID: "msg-9",
		Content:   "see you there",
		SenderID:  2,
		Kind:      models.KindText,
		SentAt:    sentAt,
	}

	conversations.On("ListForUser", mock.Anything, int64(1)).
		Return([]models.Conversation{conversation}, nil)
	users.On("Bulk", mock.Anything, mock.Anything).Return([]models.User{
		{ID: 1, Username: "ana", DisplayName: "Ana"},
		{ID: 2, Username: "bo", DisplayName: "Bo"},
	}, nil)
	messages.On("UnreadCount", mock.Anything, "conv-1", int64(1)).Return(4, nil)

	updates, err := service.List(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, 4, updates[0].UnreadCount)
	require.NotNil(t, updates[0].LastMessage)
	assert.Equal(t, "see you there", updates[0].LastMessage.PreviewText)
	assert.Equal(t, "Bo", updates[0].LastMessage.SenderName)
	require.Len(t, updates[0].Participants, 2)
}

func TestListMediaOnlyLastMessageKeepsLabel(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	messages := new(mocks.MessageRepository)
	users := new(mocks.UserRepository)
	service := newTestConversationService(conversations, messages, users)

	conversation := activeConversation("conv-1", 1, 2)
	conversation.LastMessage = &models.LastMessage{
		MessageID: "msg-10",
		SenderID:  2,
		Kind:      models.KindImage,
	}

	conversations.On("ListForUser", mock.Anything, int64(1)).
		Return([]models.Conversation{conversation}, nil)
	users.On("Bulk", mock.Anything, mock.Anything).Return([]models.User{}, nil)
	messages.On("UnreadCount", mock.Anything, "conv-1", int64(1)).Return(1, nil)

	updates, err := service.List(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].LastMessage)
	assert.Equal(t, "Image", updates[0].LastMessage.PreviewText)
	assert.Equal(t, models.KindImage, updates[0].LastMessage.Kind)
}

func TestHistoryClampsPaging(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	messages := new(mocks.MessageRepository)
	users := new(mocks.UserRepository)
	service := newTestConversationService(conversations, messages, users)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	messages.On("ListForConversation", mock.Anything, "conv-1", 0, maxHistoryPageSize).
		Return([]models.Message{}, nil)
	users.On("Bulk", mock.Anything, []int64{1, 2}).Return([]models.User{}, nil)

	_, err := service.History(context.Background(), 1, "conv-1", -5, 9999)

	require.NoError(t, err)
	messages.AssertExpectations(t)
}

func TestHistoryResolvesSenderNames(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	messages := new(mocks.MessageRepository)
	users := new(mocks.UserRepository)
	service := newTestConversationService(conversations, messages, users)

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	messages.On("ListForConversation", mock.Anything, "conv-1", 0, defaultHistoryPageSize).
		Return([]models.Message{
			{ID: "msg-1", ConversationID: "conv-1", SenderID: 2, Content: "hi"},
		}, nil)
	users.On("Bulk", mock.Anything, []int64{1, 2}).Return([]models.User{
		{ID: 1, Username: "ana"},
		{ID: 2, Username: "bo", DisplayName: "Bo"},
	}, nil)

	history, err := service.History(context.Background(), 1, "conv-1", 0, 0)

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Bo", history[0].SenderName)
}

func TestMarkAsRead(t *testing.T) {
	conversations := new(mocks.ConversationRepository)
	messages := new(mocks.MessageRepository)
	service := newTestConversationService(conversations, messages, new(mocks.UserRepository))

	conversations.On("GetActive", mock.Anything, "conv-1").
		Return(activeConversation("conv-1", 1, 2), nil)
	messages.On("MarkRead", mock.Anything, "conv-1", int64(1), mock.AnythingOfType("time.Time")).
		Return(int64(3), nil)

	updated, err := service.MarkAsRead(context.Background(), 1, "conv-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
}
