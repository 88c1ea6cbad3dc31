package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 10 * time.Minute

// CachedConversations is a read-through Redis cache over a conversation
// store. Cache failures degrade to the inner store and are only logged; the
// database remains the source of truth.
type CachedConversations struct {
	inner  ConversationStore
	rdb    *redis.Client
	logger *slog.Logger
}

// NewCachedConversations wraps a conversation store with a Redis cache.
func NewCachedConversations(inner ConversationStore, rdb *redis.Client, logger *slog.Logger) *CachedConversations {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedConversations{inner: inner, rdb: rdb, logger: logger}
}

func cacheKey(sessionID string) string {
	return "assistant:conv:" + sessionID
}

func (c *CachedConversations) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(sessionID)).Bytes()
	if err == nil {
		var turns []Turn
		if err := json.Unmarshal(raw, &turns); err == nil {
			return turns, nil
		}
		c.logger.Warn("dropping undecodable cached conversation", "session_id", sessionID)
	} else if err != redis.Nil {
		c.logger.Warn("conversation cache read failed", "session_id", sessionID, "error", err)
	}

	turns, err := c.inner.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, sessionID, turns)
	return turns, nil
}

func (c *CachedConversations) Save(ctx context.Context, sessionID, callerID string, turns []Turn) error {
	if err := c.inner.Save(ctx, sessionID, callerID, turns); err != nil {
		return err
	}
	c.fill(ctx, sessionID, turns)
	return nil
}

func (c *CachedConversations) Delete(ctx context.Context, sessionID string) error {
	if err := c.inner.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		c.logger.Warn("conversation cache delete failed", "session_id", sessionID, "error", err)
	}
	return nil
}

func (c *CachedConversations) PurgeExpired(ctx context.Context) (int64, error) {
	// Cached entries expire on their own TTL.
	return c.inner.PurgeExpired(ctx)
}

func (c *CachedConversations) fill(ctx context.Context, sessionID string, turns []Turn) {
	payload, err := json.Marshal(turns)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(sessionID), payload, cacheTTL).Err(); err != nil {
		c.logger.Warn("conversation cache write failed", "session_id", sessionID, "error", err)
	}
}
