package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            display_name TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'ACTIVE',
            last_seen TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            created_by BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_message_id TEXT,
            last_message_content TEXT,
            last_message_sender_id BIGINT,
            last_message_kind TEXT,
            last_message_sent_at TIMESTAMPTZ,
            status TEXT NOT NULL DEFAULT 'ACTIVE',
            deleted_at TIMESTAMPTZ
        );`,
		`ALTER TABLE conversations ADD COLUMN IF NOT EXISTS last_message_kind TEXT;`,
		`CREATE INDEX IF NOT EXISTS conversations_status_updated_idx
            ON conversations (status, updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
            conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            seq INT NOT NULL,
            PRIMARY KEY (conversation_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS conversation_participants_user_idx
            ON conversation_participants (user_id);`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL,
            content TEXT NOT NULL DEFAULT '',
            kind TEXT NOT NULL,
            sent_at TIMESTAMPTZ NOT NULL,
            status TEXT NOT NULL DEFAULT 'ACTIVE',
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_sent_idx
            ON messages (conversation_id, sent_at DESC);`,
		`CREATE TABLE IF NOT EXISTS message_attachments (
            message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            seq INT NOT NULL,
            type TEXT NOT NULL,
            storage_id TEXT NOT NULL DEFAULT '',
            url TEXT NOT NULL DEFAULT '',
            metadata JSONB,
            PRIMARY KEY (message_id, seq)
        );`,
		`CREATE TABLE IF NOT EXISTS message_status (
            message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            status TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS message_status_user_idx
            ON message_status (user_id, status);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
