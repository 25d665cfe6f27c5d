// Package agent implements the question-answering pipeline over the
// household ledger: analysis, tool selection, data collection, context
// building and response generation.
package agent

import (
	"context"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const categoriesCacheKey = "categories"

// Facade is the pipeline's read access to the ledger backend. Every failure
// is logged, counted and turned into an empty result; callers never see
// transport errors.
type Facade struct {
	api     port.LedgerAPI
	cache   port.Cache[[]domain.Category]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewFacade creates a Facade. cache may be nil to disable category caching.
func NewFacade(api port.LedgerAPI, cache port.Cache[[]domain.Category], metrics *observability.Metrics, logger *zap.Logger) *Facade {
	return &Facade{api: api, cache: cache, metrics: metrics, logger: logger}
}

// ListTransactions returns the matching transactions, or an empty slice on failure.
func (f *Facade) ListTransactions(ctx context.Context, q domain.TransactionQuery) []domain.Transaction {
	txs, err := f.api.ListTransactions(ctx, q)
	if err != nil {
		f.swallow("list transactions", err,
			zap.String("start_date", q.StartDate),
			zap.String("end_date", q.EndDate),
			zap.Int("limit", q.Limit),
		)
		return []domain.Transaction{}
	}
	if txs == nil {
		return []domain.Transaction{}
	}
	return txs
}

// MonthlyStatistics returns income/expense/balance totals. On failure the
// totals are zero and the requested period is echoed back.
func (f *Facade) MonthlyStatistics(ctx context.Context, year, month *int) domain.MonthlyStatistics {
	stats, err := f.api.MonthlyStatistics(ctx, year, month)
	if err != nil || stats == nil {
		if err != nil {
			f.swallow("monthly statistics", err)
		}
		return domain.MonthlyStatistics{
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Balance: decimal.Zero,
			Year:    year,
			Month:   month,
		}
	}
	return *stats
}

// CategoryStatistics returns per-category totals, or an empty slice on failure.
func (f *Facade) CategoryStatistics(ctx context.Context, year, month *int, categoryType string) []domain.CategoryStat {
	stats, err := f.api.CategoryStatistics(ctx, year, month, categoryType)
	if err != nil {
		f.swallow("category statistics", err, zap.String("type", categoryType))
		return []domain.CategoryStat{}
	}
	if stats == nil {
		return []domain.CategoryStat{}
	}
	return stats
}

// ListCategories returns the category catalog, served from cache when possible.
func (f *Facade) ListCategories(ctx context.Context) []domain.Category {
	if f.cache != nil {
		if cats, ok := f.cache.Get(categoriesCacheKey); ok {
			f.metrics.IncrCacheHit(categoriesCacheKey)
			return cats
		}
		f.metrics.IncrCacheMiss(categoriesCacheKey)
	}
	return f.loadCategories(ctx)
}

// RefreshCategories reloads the catalog into the cache and returns how many
// categories were loaded. A failed reload keeps the previous entry.
func (f *Facade) RefreshCategories(ctx context.Context) int {
	cats, err := f.api.ListCategories(ctx)
	if err != nil {
		f.swallow("refresh categories", err)
		return 0
	}
	if f.cache != nil && len(cats) > 0 {
		f.cache.Set(categoriesCacheKey, cats)
	}
	return len(cats)
}

// HybridSearch queries the search index, or returns an empty slice on failure.
func (f *Facade) HybridSearch(ctx context.Context, query string, filters domain.SearchFilters, size int) []domain.Transaction {
	txs, err := f.api.SearchTransactions(ctx, query, filters, size)
	if err != nil {
		f.swallow("hybrid search", err, zap.String("query", query))
		f.metrics.IncrFallback(observability.FallbackSearch)
		return []domain.Transaction{}
	}
	if txs == nil {
		return []domain.Transaction{}
	}
	return txs
}

func (f *Facade) loadCategories(ctx context.Context) []domain.Category {
	cats, err := f.api.ListCategories(ctx)
	if err != nil {
		f.swallow("list categories", err)
		return []domain.Category{}
	}
	if len(cats) == 0 {
		return []domain.Category{}
	}
	if f.cache != nil {
		f.cache.Set(categoriesCacheKey, cats)
	}
	return cats
}

func (f *Facade) swallow(op string, err error, fields ...zap.Field) {
	f.metrics.IncrExternalError("ledger")
	f.logger.Warn("ledger call failed, continuing with empty result",
		append([]zap.Field{zap.String("operation", op), zap.Error(err)}, fields...)...,
	)
}
