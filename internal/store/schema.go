package store

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ai_conversations (
		session_id      text PRIMARY KEY,
		user_id         text NOT NULL,
		messages        jsonb NOT NULL DEFAULT '[]',
		message_count   int NOT NULL DEFAULT 0,
		last_message_at timestamptz,
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now(),
		expires_at      timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_conversations_expires_at
		ON ai_conversations (expires_at)`,
	`CREATE TABLE IF NOT EXISTS ai_prompts (
		id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		key         text NOT NULL,
		version     int NOT NULL DEFAULT 1,
		content     text NOT NULL,
		description text,
		metadata    jsonb,
		is_active   boolean NOT NULL DEFAULT true,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now(),
		deleted_at  timestamptz,
		UNIQUE (key, version)
	)`,
}

// EnsureSchema creates the assistant's tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
