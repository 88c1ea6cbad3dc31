package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Prompts resolves system prompts from the ai_prompts table. Prompts are
// versioned per key; the active row with the highest version wins, and
// soft-deleted rows never resolve.
type Prompts struct {
	db Querier
}

// NewPrompts creates the PostgreSQL prompt store.
func NewPrompts(db Querier) *Prompts {
	return &Prompts{db: db}
}

func (s *Prompts) ActiveByKey(ctx context.Context, key string) (string, error) {
	var content string
	err := s.db.QueryRow(ctx,
		`SELECT content FROM ai_prompts
		 WHERE key = $1 AND is_active AND deleted_at IS NULL
		 ORDER BY version DESC
		 LIMIT 1`,
		key).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("prompt %s: %w", key, ErrPromptNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", key, err)
	}
	return content, nil
}
