// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the agent and
// service layers from concrete implementations.
package port

import (
	"context"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
)

// LedgerAPI reads household ledger data from the backend.
type LedgerAPI interface {
	ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error)
	MonthlyStatistics(ctx context.Context, year, month *int) (*domain.MonthlyStatistics, error)
	CategoryStatistics(ctx context.Context, year, month *int, categoryType string) ([]domain.CategoryStat, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SearchTransactions(ctx context.Context, query string, filters domain.SearchFilters, size int) ([]domain.Transaction, error)
}

// ConversationStore persists chat history per conversation.
type ConversationStore interface {
	Append(ctx context.Context, conversationID string, msgs ...domain.ChatMessage) error
	Recent(ctx context.Context, conversationID string, n int) ([]domain.ChatMessage, error)
	Clear(ctx context.Context, conversationID string) error
}

// HealthChecker is a dependency that can report its own availability.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Agent answers one question given the prior conversation.
type Agent interface {
	Run(ctx context.Context, question string, history []domain.ChatMessage) (*domain.AgentState, error)
	RunStream(ctx context.Context, question string, history []domain.ChatMessage, onStage func(string), onToken func(string) error) (*domain.AgentState, error)
}
