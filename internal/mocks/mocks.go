// Package mocks holds hand-written testify doubles shared by the package tests.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"social-chat/internal/models"
	"social-chat/internal/repositories"
)

// ConversationRepository mocks repositories.ConversationRepository.
type ConversationRepository struct {
	mock.Mock
}

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

func (m *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *ConversationRepository) GetActive(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(models.Conversation), args.Error(1)
}

func (m *ConversationRepository) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *ConversationRepository) FindDirectBetween(ctx context.Context, user1ID, user2ID int64) (models.Conversation, error) {
	args := m.Called(ctx, user1ID, user2ID)
	return args.Get(0).(models.Conversation), args.Error(1)
}

// MessageRepository mocks repositories.MessageRepository.
type MessageRepository struct {
	mock.Mock
}

var _ repositories.MessageRepository = (*MessageRepository)(nil)

func (m *MessageRepository) Create(ctx context.Context, message models.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) ListForConversation(ctx context.Context, conversationID string, page, size int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MessageRepository) MarkRead(ctx context.Context, conversationID string, userID int64, at time.Time) (int64, error) {
	args := m.Called(ctx, conversationID, userID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepository) UnreadCount(ctx context.Context, conversationID string, userID int64) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

// UserRepository mocks repositories.UserRepository.
type UserRepository struct {
	mock.Mock
}

var _ repositories.UserRepository = (*UserRepository)(nil)

func (m *UserRepository) Get(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepository) Bulk(ctx context.Context, userIDs []int64) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *UserRepository) ListActive(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *UserRepository) CountActive(ctx context.Context, userIDs []int64) (int, error) {
	args := m.Called(ctx, userIDs)
	return args.Int(0), args.Error(1)
}

func (m *UserRepository) TouchLastSeen(ctx context.Context, userID int64, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// Publisher mocks the broker publish side.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

// Sink records websocket fan-out calls.
type Sink struct {
	mock.Mock
}

func (m *Sink) BroadcastToConversation(conversationID string, event models.WSEvent) {
	m.Called(conversationID, event)
}

func (m *Sink) SendToUser(userID int64, event models.WSEvent) {
	m.Called(userID, event)
}
