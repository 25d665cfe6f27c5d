// Package history stores per-conversation chat messages.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps each conversation in a Redis list of JSON messages.
type RedisStore struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	maxMessages int
	logger      *zap.Logger
}

var (
	_ port.ConversationStore = (*RedisStore)(nil)
	_ port.HealthChecker     = (*RedisStore)(nil)
)

// NewRedisStore creates a RedisStore. The list is trimmed to maxMessages
// (0 keeps everything) and its TTL is extended on every append.
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration, maxMessages int, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, maxMessages: maxMessages, logger: logger}
}

func conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

// Append pushes msgs to the end of the conversation.
func (s *RedisStore) Append(ctx context.Context, conversationID string, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	key := conversationKey(conversationID)

	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, b)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to append conversation messages",
			zap.String("key", key),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Recent returns up to n of the newest messages, oldest first. n <= 0 returns all.
func (s *RedisStore) Recent(ctx context.Context, conversationID string, n int) ([]domain.ChatMessage, error) {
	key := conversationKey(conversationID)
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}

	rows, err := s.rdb.LRange(ctx, key, start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.ChatMessage{}, nil
		}
		s.logger.Error("failed to load conversation history",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: "redis", Err: err}
	}

	msgs := make([]domain.ChatMessage, 0, len(rows))
	for i, row := range rows {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			s.logger.Warn("skipping unreadable history entry",
				zap.String("key", key),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Clear deletes the conversation.
func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	key := conversationKey(conversationID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Error("failed to delete conversation history",
			zap.String("key", key),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Name implements port.HealthChecker.
func (s *RedisStore) Name() string { return "redis" }

// Ping implements port.HealthChecker.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
