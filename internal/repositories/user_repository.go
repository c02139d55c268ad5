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

// UserRepository reads the user directory for enrichment and writes the
// best-effort last-seen timestamp. User CRUD is owned elsewhere.
type UserRepository interface {
	Get(ctx context.Context, userID int64) (models.User, error)
	Bulk(ctx context.Context, userIDs []int64) ([]models.User, error)
	ListActive(ctx context.Context) ([]models.User, error)
	CountActive(ctx context.Context, userIDs []int64) (int, error)
	TouchLastSeen(ctx context.Context, userID int64, at time.Time) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Get fetches a single active user.
func (r *UserRepo) Get(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, display_name, status, last_seen FROM users WHERE id=$1 AND status='ACTIVE'`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.New(apperrors.CodeUserNotFound, "user not found")
	}
	return user, err
}

// Bulk fetches multiple users in one query.
func (r *UserRepo) Bulk(ctx context.Context, userIDs []int64) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, username, display_name, status, last_seen FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...)
	return users, err
}

// ListActive returns the whole active user population.
func (r *UserRepo) ListActive(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, username, display_name, status, last_seen FROM users WHERE status='ACTIVE' ORDER BY id`)
	return users, err
}

// CountActive counts how many of the given ids are active users.
func (r *UserRepo) CountActive(ctx context.Context, userIDs []int64) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM users WHERE status='ACTIVE' AND id IN (?)`, userIDs)
	if err != nil {
		return 0, err
	}
	var count int
	err = r.db.GetContext(ctx, &count, r.db.Rebind(query), args...)
	return count, err
}

// TouchLastSeen records when the user was last connected.
func (r *UserRepo) TouchLastSeen(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen=$2 WHERE id=$1`, userID, at)
	return err
}
