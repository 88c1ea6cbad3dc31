package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ConversationTTL is how long a transcript stays loadable after its last
// update.
const ConversationTTL = 7 * 24 * time.Hour

// Conversations stores transcripts in the ai_conversations table.
type Conversations struct {
	db  Querier
	ttl time.Duration
	now func() time.Time
}

// NewConversations creates the PostgreSQL conversation store.
func NewConversations(db Querier) *Conversations {
	return &Conversations{db: db, ttl: ConversationTTL, now: time.Now}
}

func (s *Conversations) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT messages FROM ai_conversations
		 WHERE session_id = $1 AND expires_at > now()`,
		sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", sessionID, err)
	}

	var turns []Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", sessionID, err)
	}
	return turns, nil
}

func (s *Conversations) Save(ctx context.Context, sessionID, callerID string, turns []Turn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", sessionID, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO ai_conversations (session_id, user_id, messages, message_count, last_message_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, now(), now(), $5)
		 ON CONFLICT (session_id) DO UPDATE SET
		   messages = EXCLUDED.messages,
		   message_count = EXCLUDED.message_count,
		   last_message_at = now(),
		   updated_at = now(),
		   expires_at = EXCLUDED.expires_at`,
		sessionID, callerID, payload, len(turns), s.now().Add(s.ttl))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", sessionID, err)
	}
	return nil
}

func (s *Conversations) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM ai_conversations WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", sessionID, err)
	}
	return nil
}

func (s *Conversations) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM ai_conversations WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}
