package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/models"
)

// MessageRepository defines persistence for durable messages.
type MessageRepository interface {
	// Create persists the message, its attachments and delivery-status list,
	// and refreshes the conversation's last-message summary, all in one
	// transaction.
	Create(ctx context.Context, message models.Message) error
	ListForConversation(ctx context.Context, conversationID string, page, size int) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID string, userID int64, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, conversationID string, userID int64) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores the message and conversation summary as one unit of work.
func (r *MessageRepo) Create(ctx context.Context, message models.Message) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, kind, sent_at, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		message.ID, message.ConversationID, message.SenderID, message.Content,
		message.Kind, message.SentAt, message.Status,
	); err != nil {
		return err
	}

	for i, attachment := range message.Attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_attachments (message_id, seq, type, storage_id, url, metadata)
             VALUES ($1, $2, $3, $4, $5, $6)`,
			message.ID, i, attachment.Type, attachment.StorageID, attachment.URL, attachment.Metadata,
		); err != nil {
			return err
		}
	}

	for _, entry := range message.StatusList {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_status (message_id, user_id, status, updated_at)
             VALUES ($1, $2, $3, $4)`,
			message.ID, entry.UserID, entry.Status, entry.Timestamp,
		); err != nil {
			return err
		}
	}

	// Last-writer-wins by processing order, not send order.
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations
         SET last_message_id=$2, last_message_content=$3, last_message_sender_id=$4,
             last_message_kind=$5, last_message_sent_at=$6, updated_at=$7
         WHERE id=$1`,
		message.ConversationID, message.ID, message.Content, message.SenderID,
		message.Kind, message.SentAt, time.Now().UTC(),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ListForConversation returns one page of active messages, oldest first,
// fetched newest-first and reversed for chat display.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string, page, size int) ([]models.Message, error) {
	var rows []struct {
		ID             string              `db:"id"`
		ConversationID string              `db:"conversation_id"`
		SenderID       int64               `db:"sender_id"`
		Content        string              `db:"content"`
		Kind           models.MessageKind  `db:"kind"`
		SentAt         time.Time           `db:"sent_at"`
		Status         models.EntityStatus `db:"status"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, conversation_id, sender_id, content, kind, sent_at, status
         FROM messages
         WHERE conversation_id=$1 AND status='ACTIVE'
         ORDER BY sent_at DESC
         LIMIT $2 OFFSET $3`,
		conversationID, size, page*size)
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		messages = append(messages, models.Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			SenderID:       row.SenderID,
			Content:        row.Content,
			Kind:           row.Kind,
			SentAt:         row.SentAt,
			Status:         row.Status,
		})
	}

	if err := r.loadAttachments(ctx, messages); err != nil {
		return nil, err
	}
	if err := r.loadStatusLists(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepo) loadAttachments(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]string, 0, len(messages))
	index := make(map[string]*models.Message, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].ID)
		index[messages[i].ID] = &messages[i]
	}

	query, args, err := sqlx.In(
		`SELECT message_id, type, storage_id, url, metadata
         FROM message_attachments WHERE message_id IN (?) ORDER BY message_id, seq`, ids)
	if err != nil {
		return err
	}
	var rows []struct {
		MessageID string                    `db:"message_id"`
		Type      string                    `db:"type"`
		StorageID string                    `db:"storage_id"`
		URL       string                    `db:"url"`
		Metadata  models.AttachmentMetadata `db:"metadata"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, row := range rows {
		msg := index[row.MessageID]
		msg.Attachments = append(msg.Attachments, models.MediaAttachment{
			Type:      row.Type,
			StorageID: row.StorageID,
			URL:       row.URL,
			Metadata:  row.Metadata,
		})
	}
	return nil
}

func (r *MessageRepo) loadStatusLists(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]string, 0, len(messages))
	index := make(map[string]*models.Message, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].ID)
		index[messages[i].ID] = &messages[i]
	}

	query, args, err := sqlx.In(
		`SELECT message_id, user_id, status, updated_at
         FROM message_status WHERE message_id IN (?) ORDER BY message_id, user_id`, ids)
	if err != nil {
		return err
	}
	var rows []struct {
		MessageID string                `db:"message_id"`
		UserID    int64                 `db:"user_id"`
		Status    models.DeliveryStatus `db:"status"`
		UpdatedAt time.Time             `db:"updated_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, row := range rows {
		msg := index[row.MessageID]
		msg.StatusList = append(msg.StatusList, models.StatusEntry{
			UserID:    row.UserID,
			Status:    row.Status,
			Timestamp: row.UpdatedAt,
		})
	}
	return nil
}

// MarkRead advances the caller's delivery entries to READ across the
// conversation. The WHERE guard keeps transitions monotonic.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID string, userID int64, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_status ms
         SET status='READ', updated_at=$3
         FROM messages m
         WHERE ms.message_id = m.id
           AND m.conversation_id = $1
           AND m.status = 'ACTIVE'
           AND ms.user_id = $2
           AND ms.status <> 'READ'`,
		conversationID, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount counts active messages whose delivery entry for the user has
// not reached READ.
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID string, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
         FROM message_status ms
         JOIN messages m ON m.id = ms.message_id
         WHERE m.conversation_id = $1
           AND m.status = 'ACTIVE'
           AND ms.user_id = $2
           AND ms.status <> 'READ'`,
		conversationID, userID)
	return count, err
}
