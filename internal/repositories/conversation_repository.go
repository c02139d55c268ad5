package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetActive(ctx context.Context, conversationID string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error)
	FindDirectBetween(ctx context.Context, user1ID, user2ID int64) (models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type conversationRow struct {
	ID                  string              `db:"id"`
	Type                models.ConversationType `db:"type"`
	Name                string              `db:"name"`
	CreatedBy           int64               `db:"created_by"`
	CreatedAt           time.Time           `db:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at"`
	LastMessageID       sql.NullString      `db:"last_message_id"`
	LastMessageContent  sql.NullString      `db:"last_message_content"`
	LastMessageSenderID sql.NullInt64       `db:"last_message_sender_id"`
	LastMessageKind     sql.NullString      `db:"last_message_kind"`
	LastMessageSentAt   sql.NullTime        `db:"last_message_sent_at"`
	Status              models.EntityStatus `db:"status"`
	DeletedAt           sql.NullTime        `db:"deleted_at"`
}

func (row conversationRow) toModel() models.Conversation {
	conversation := models.Conversation{
		ID:        row.ID,
		Type:      row.Type,
		Name:      row.Name,
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Status:    row.Status,
	}
	if row.LastMessageID.Valid {
		conversation.LastMessage = &models.LastMessage{
			MessageID: row.LastMessageID.String,
			Content:   row.LastMessageContent.String,
			SenderID:  row.LastMessageSenderID.Int64,
			Kind:      models.MessageKind(row.LastMessageKind.String),
			SentAt:    row.LastMessageSentAt.Time,
		}
	}
	if row.DeletedAt.Valid {
		deletedAt := row.DeletedAt.Time
		conversation.DeletedAt = &deletedAt
	}
	return conversation
}

const conversationColumns = `id, type, name, created_by, created_at, updated_at,
    last_message_id, last_message_content, last_message_sender_id, last_message_kind,
    last_message_sent_at, status, deleted_at`

// Create stores a conversation and its participant set in one transaction.
func (r *ConversationRepo) Create(ctx context.Context, conversation *models.Conversation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, type, name, created_by, created_at, updated_at, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conversation.ID, conversation.Type, conversation.Name, conversation.CreatedBy,
		conversation.CreatedAt, conversation.UpdatedAt, conversation.Status,
	); err != nil {
		return err
	}

	for i, participantID := range conversation.ParticipantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, seq) VALUES ($1, $2, $3)`,
			conversation.ID, participantID, i,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetActive fetches an active conversation with its participants.
func (r *ConversationRepo) GetActive(ctx context.Context, conversationID string) (models.Conversation, error) {
	var row conversationRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1 AND status='ACTIVE'`,
		conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, apperrors.New(apperrors.CodeConversationNotFound, "conversation not found")
	}
	if err != nil {
		return models.Conversation{}, err
	}

	conversation := row.toModel()
	if conversation.ParticipantIDs, err = r.participantIDs(ctx, conversationID); err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

// ListForUser returns the user's active conversations, most recently updated first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	var rows []conversationRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+conversationColumns+` FROM conversations c
         WHERE c.status='ACTIVE'
           AND EXISTS (SELECT 1 FROM conversation_participants cp
                       WHERE cp.conversation_id = c.id AND cp.user_id = $1)
         ORDER BY c.updated_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		conversation := row.toModel()
		if conversation.ParticipantIDs, err = r.participantIDs(ctx, conversation.ID); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

// FindDirectBetween locates an existing active direct conversation with
// exactly the two given participants.
func (r *ConversationRepo) FindDirectBetween(ctx context.Context, user1ID, user2ID int64) (models.Conversation, error) {
	var row conversationRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+conversationColumns+` FROM conversations c
         WHERE c.type='DIRECT' AND c.status='ACTIVE'
           AND EXISTS (SELECT 1 FROM conversation_participants cp
                       WHERE cp.conversation_id=c.id AND cp.user_id=$1)
           AND EXISTS (SELECT 1 FROM conversation_participants cp
                       WHERE cp.conversation_id=c.id AND cp.user_id=$2)
           AND (SELECT COUNT(*) FROM conversation_participants cp
                WHERE cp.conversation_id=c.id) = 2
         ORDER BY c.created_at ASC
         LIMIT 1`,
		user1ID, user2ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, apperrors.New(apperrors.CodeConversationNotFound, "direct conversation not found")
	}
	if err != nil {
		return models.Conversation{}, err
	}

	conversation := row.toModel()
	if conversation.ParticipantIDs, err = r.participantIDs(ctx, conversation.ID); err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *ConversationRepo) participantIDs(ctx context.Context, conversationID string) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM conversation_participants WHERE conversation_id=$1 ORDER BY seq ASC`,
		conversationID)
	return ids, err
}
