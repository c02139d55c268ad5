package chat

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
	"social-chat/internal/repositories"
)

const (
	defaultHistoryPageSize = 50
	maxHistoryPageSize     = 100
)

// ConversationService owns conversation lifecycle and read-side queries.
type ConversationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository

	now func() time.Time
}

// NewConversationService constructs a ConversationService.
func NewConversationService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, users repositories.UserRepository) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		now:           time.Now,
	}
}

// CreateRequest carries the parameters for a new conversation.
type CreateRequest struct {
	Type           models.ConversationType `json:"type" binding:"required"`
	Name           string                  `json:"name"`
	ParticipantIDs []int64                 `json:"participant_ids" binding:"required"`
}

// Create validates and stores a new conversation. The creator is always a
// participant. Direct conversations are deduplicated against an existing
// active one between the same pair.
func (s *ConversationService) Create(ctx context.Context, creatorID int64, req CreateRequest) (models.Conversation, error) {
	participantIDs := dedupeIDs(append(req.ParticipantIDs, creatorID))

	switch req.Type {
	case models.ConversationDirect:
		if len(participantIDs) != 2 {
			return models.Conversation{}, apperrors.New(apperrors.CodeInvalidParticipantList,
				"direct conversation requires exactly two participants")
		}
	case models.ConversationGroup:
		if len(participantIDs) < 2 {
			return models.Conversation{}, apperrors.New(apperrors.CodeInvalidParticipantList,
				"group conversation requires at least two participants")
		}
	default:
		return models.Conversation{}, apperrors.New(apperrors.CodeInvalidConversationType,
			"conversation type must be DIRECT or GROUP")
	}

	active, err := s.users.CountActive(ctx, participantIDs)
	if err != nil {
		return models.Conversation{}, err
	}
	if active != len(participantIDs) {
		return models.Conversation{}, apperrors.New(apperrors.CodeUserNotFound,
			"participant list contains unknown users")
	}

	if req.Type == models.ConversationDirect {
		other := otherParticipant(participantIDs, creatorID)
		if existing, err := s.conversations.FindDirectBetween(ctx, creatorID, other); err == nil {
			return existing, nil
		} else if !apperrors.IsCode(err, apperrors.CodeConversationNotFound) {
			return models.Conversation{}, err
		}
	}

	now := s.now().UTC()
	conversation := models.Conversation{
		ID:             uuid.NewString(),
		Type:           req.Type,
		Name:           req.Name,
		ParticipantIDs: participantIDs,
		CreatedBy:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Status:         models.StatusActive,
	}
	if err := s.conversations.Create(ctx, &conversation); err != nil {
		return models.Conversation{}, err
	}

	log.Printf("conversation created id=%s type=%s participants=%d", conversation.ID, conversation.Type, len(participantIDs))
	return conversation, nil
}

// GetOrCreateDirect returns the direct conversation between the caller and
// the other user, creating it when absent.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, userID, otherID int64) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, apperrors.New(apperrors.CodeInvalidParticipantList,
			"cannot open a direct conversation with yourself")
	}
	return s.Create(ctx, userID, CreateRequest{
		Type:           models.ConversationDirect,
		ParticipantIDs: []int64{userID, otherID},
	})
}

// Get returns a conversation the caller participates in.
func (s *ConversationService) Get(ctx context.Context, userID int64, conversationID string) (models.Conversation, error) {
	conversation, err := s.conversations.GetActive(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conversation.HasParticipant(userID) {
		return models.Conversation{}, apperrors.New(apperrors.CodeNotAParticipant, "caller is not a participant")
	}
	return conversation, nil
}

// List returns the caller's conversations enriched with participant names
// and per-conversation unread counts, newest activity first.
func (s *ConversationService) List(ctx context.Context, userID int64) ([]models.ConversationUpdate, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	idSet := map[int64]struct{}{}
	for _, conversation := range conversations {
		for _, participantID := range conversation.ParticipantIDs {
			idSet[participantID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	users, err := s.users.Bulk(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	updates := make([]models.ConversationUpdate, 0, len(conversations))
	for _, conversation := range conversations {
		unread, err := s.messages.UnreadCount(ctx, conversation.ID, userID)
		if err != nil {
			return nil, err
		}

		participants := make([]models.Participant, 0, len(conversation.ParticipantIDs))
		for _, participantID := range conversation.ParticipantIDs {
			user := byID[participantID]
			participants = append(participants, models.Participant{
				UserID:      participantID,
				Username:    user.Username,
				DisplayName: user.DisplayNameOrUsername(),
			})
		}

		update := models.ConversationUpdate{
			ConversationID:   conversation.ID,
			ConversationType: conversation.Type,
			ConversationName: conversation.Name,
			UnreadCount:      unread,
			UpdatedAt:        conversation.UpdatedAt,
			Participants:     participants,
		}
		if last := conversation.LastMessage; last != nil {
			update.LastMessage = &models.MessageSummary{
				ID:             last.MessageID,
				ConversationID: conversation.ID,
				SenderID:       last.SenderID,
				SenderName:     byID[last.SenderID].DisplayNameOrUsername(),
				Kind:           last.Kind,
				PreviewText:    PreviewText(last.Content, last.Kind),
				SentAt:         last.SentAt,
			}
		}
		updates = append(updates, update)
	}
	return updates, nil
}

// History returns one page of a conversation's messages, oldest first, with
// sender names resolved. Page is zero-based; size is clamped to a sane range.
func (s *ConversationService) History(ctx context.Context, userID int64, conversationID string, page, size int) ([]models.Message, error) {
	conversation, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultHistoryPageSize
	}
	if size > maxHistoryPageSize {
		size = maxHistoryPageSize
	}

	messages, err := s.messages.ListForConversation(ctx, conversationID, page, size)
	if err != nil {
		return nil, err
	}

	users, err := s.users.Bulk(ctx, conversation.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, user := range users {
		names[user.ID] = user.DisplayNameOrUsername()
	}
	for i := range messages {
		messages[i].SenderName = names[messages[i].SenderID]
	}
	return messages, nil
}

// MarkAsRead advances all of the caller's delivery entries in the
// conversation to READ and reports how many changed.
func (s *ConversationService) MarkAsRead(ctx context.Context, userID int64, conversationID string) (int64, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	updated, err := s.messages.MarkRead(ctx, conversationID, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		log.Printf("marked read conversation=%s user=%d messages=%d", conversationID, userID, updated)
	}
	return updated, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func otherParticipant(ids []int64, selfID int64) int64 {
	for _, id := range ids {
		if id != selfID {
			return id
		}
	}
	return selfID
}
