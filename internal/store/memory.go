package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory conversation store. It backs storage-less
// deployments and tests.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	callerID  string
	turns     []Turn
	expiresAt time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]memoryEntry),
		ttl:      ConversationTTL,
		now:      time.Now,
	}
}

func (m *Memory) Load(_ context.Context, sessionID string) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok || m.now().After(entry.expiresAt) {
		return nil, nil
	}
	turns := make([]Turn, len(entry.turns))
	copy(turns, entry.turns)
	return turns, nil
}

func (m *Memory) Save(_ context.Context, sessionID, callerID string, turns []Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]Turn, len(turns))
	copy(copied, turns)
	m.sessions[sessionID] = memoryEntry{
		callerID:  callerID,
		turns:     copied,
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *Memory) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	now := m.now()
	for id, entry := range m.sessions {
		if now.After(entry.expiresAt) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}
