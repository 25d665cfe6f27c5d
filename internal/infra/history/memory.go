package history

import (
	"context"
	"sync"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"
)

type conversation struct {
	messages  []domain.ChatMessage
	expiresAt time.Time
}

// MemoryStore is a process-local ConversationStore, used when no Redis URL is configured.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	ttl           time.Duration
	maxMessages   int
	now           func() time.Time
	lastSweep     time.Time
}

var _ port.ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore with the same trimming and TTL rules as RedisStore.
func NewMemoryStore(ttl time.Duration, maxMessages int) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*conversation),
		ttl:           ttl,
		maxMessages:   maxMessages,
		now:           time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, conversationID string, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	c := s.live(conversationID)
	if c == nil {
		c = &conversation{}
		s.conversations[conversationID] = c
	}
	c.messages = append(c.messages, msgs...)
	if s.maxMessages > 0 && len(c.messages) > s.maxMessages {
		c.messages = append([]domain.ChatMessage(nil), c.messages[len(c.messages)-s.maxMessages:]...)
	}
	if s.ttl > 0 {
		c.expiresAt = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, conversationID string, n int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.live(conversationID)
	if c == nil {
		return []domain.ChatMessage{}, nil
	}
	msgs := c.messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

// sweep drops expired conversations, at most once per TTL. Callers hold the write lock.
func (s *MemoryStore) sweep() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for id, c := range s.conversations {
		if now.After(c.expiresAt) {
			delete(s.conversations, id)
		}
	}
}

// live returns the conversation unless it is missing or expired. Callers hold the lock.
func (s *MemoryStore) live(conversationID string) *conversation {
	c, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	if !c.expiresAt.IsZero() && s.now().After(c.expiresAt) {
		return nil
	}
	return c
}
