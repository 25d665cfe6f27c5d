package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"

	"go.uber.org/zap"
)

// ToolRunner executes one tool invocation.
type ToolRunner interface {
	Run(ctx context.Context, inv domain.ToolInvocation) (domain.ToolResult, error)
}

// LedgerTools runs tool invocations against the Facade.
type LedgerTools struct {
	facade *Facade
	logger *zap.Logger
}

var _ ToolRunner = (*LedgerTools)(nil)

// NewLedgerTools creates a LedgerTools runner.
func NewLedgerTools(facade *Facade, logger *zap.Logger) *LedgerTools {
	return &LedgerTools{facade: facade, logger: logger}
}

// Run dispatches inv by name. Errors are limited to cancelled contexts,
// unknown tools and malformed parameters; backend failures surface as empty data.
func (t *LedgerTools) Run(ctx context.Context, inv domain.ToolInvocation) (domain.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ToolResult{}, err
	}

	p := inv.Params
	switch inv.Name {
	case domain.ToolTransactions:
		return t.transactions(ctx, p)

	case domain.ToolMonthlyStatistics:
		stats := t.facade.MonthlyStatistics(ctx, p.Year, p.Month)
		return domain.ToolResult{Monthly: &stats}, nil

	case domain.ToolCategoryStatistics:
		categoryType := p.CategoryType
		if categoryType == "" {
			categoryType = domain.TransactionExpense
		}
		return domain.ToolResult{CategoryStats: t.facade.CategoryStatistics(ctx, p.Year, p.Month, categoryType)}, nil

	case domain.ToolCategories:
		return domain.ToolResult{Categories: t.facade.ListCategories(ctx)}, nil
	}
	return domain.ToolResult{}, &domain.ErrValidation{Field: "tool", Message: fmt.Sprintf("unknown tool %q", inv.Name)}
}

// transactions tries the search index first when keywords are present and
// falls back to a direct listing filtered on the description.
func (t *LedgerTools) transactions(ctx context.Context, p domain.ToolParams) (domain.ToolResult, error) {
	for _, f := range [...]struct{ name, value string }{{"start_date", p.StartDate}, {"end_date", p.EndDate}} {
		if f.value == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, f.value); err != nil {
			return domain.ToolResult{}, &domain.ErrValidation{Field: f.name, Message: "expected YYYY-MM-DD"}
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	keywords := nonEmpty(p.Keywords)

	if len(keywords) > 0 {
		hits := t.facade.HybridSearch(ctx, strings.Join(keywords, " "), domain.SearchFilters{
			StartDate:  p.StartDate,
			EndDate:    p.EndDate,
			Type:       p.TransactionType,
			CategoryID: p.CategoryID,
		}, limit)
		if len(hits) > 0 {
			t.logger.Debug("transactions served by hybrid search",
				zap.Strings("keywords", keywords),
				zap.Int("hits", len(hits)),
			)
			return domain.ToolResult{Transactions: capTransactions(hits, limit), Source: domain.SourceSearch}, nil
		}
	}

	listed := t.facade.ListTransactions(ctx, domain.TransactionQuery{
		Limit:      limit,
		StartDate:  p.StartDate,
		EndDate:    p.EndDate,
		CategoryID: p.CategoryID,
		Type:       p.TransactionType,
	})
	filtered := FilterTransactions(listed, p.TransactionType, p.CategoryID, keywords)
	return domain.ToolResult{Transactions: capTransactions(filtered, limit), Source: domain.SourceDirect}, nil
}

// FilterTransactions keeps rows matching the type and category (when set) and
// whose description contains at least one keyword, case-insensitively.
func FilterTransactions(txs []domain.Transaction, txType string, categoryID *int, keywords []string) []domain.Transaction {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			lowered = append(lowered, strings.ToLower(kw))
		}
	}

	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if txType != "" && tx.Type != txType {
			continue
		}
		if categoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *categoryID) {
			continue
		}
		if len(lowered) > 0 && !containsAny(strings.ToLower(tx.Description), lowered) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func capTransactions(txs []domain.Transaction, limit int) []domain.Transaction {
	if limit > 0 && len(txs) > limit {
		return txs[:limit]
	}
	return txs
}
