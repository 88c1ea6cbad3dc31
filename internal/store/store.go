// Package store persists conversation transcripts and system prompts in
// PostgreSQL, with an optional Redis read-through cache in front of the
// conversation table.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrPromptNotFound is returned when no active prompt exists for a key.
	ErrPromptNotFound = errors.New("prompt not found")
)

// Turn is one message in a conversation transcript.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Roles used in stored transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationStore persists transcripts keyed by session id.
type ConversationStore interface {
	// Load returns the transcript for a session, empty when none exists.
	Load(ctx context.Context, sessionID string) ([]Turn, error)
	// Save upserts the transcript and refreshes the expiry window.
	Save(ctx context.Context, sessionID, callerID string, turns []Turn) error
	// Delete removes the transcript for a session.
	Delete(ctx context.Context, sessionID string) error
	// PurgeExpired deletes transcripts past their expiry and reports how many.
	PurgeExpired(ctx context.Context) (int64, error)
}

// PromptStore resolves system prompt text by key.
type PromptStore interface {
	// ActiveByKey returns the highest active version for a key, or
	// ErrPromptNotFound.
	ActiveByKey(ctx context.Context, key string) (string, error)
}

// Querier is the subset of pgxpool.Pool the stores need. Tests substitute a
// fake.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Trim keeps the most recent window of a transcript: maxHistory exchanges,
// each a user turn plus an assistant turn.
func Trim(turns []Turn, maxHistory int) []Turn {
	if maxHistory <= 0 {
		return turns
	}
	limit := maxHistory * 2
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}
