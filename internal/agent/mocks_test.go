package agent_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/agent"
	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

// mockChatModel answers by the role announced in the system prompt.
type mockChatModel struct {
	mu sync.Mutex

	analysis    string
	analysisErr error
	optimized   string
	optimizeErr error
	answer      string
	answerErr   error
	chunks      []string
	streamErr   error

	calls [][]*schema.Message
}

func (m *mockChatModel) reply(msgs []*schema.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msgs)
	m.mu.Unlock()

	system := ""
	if len(msgs) > 0 && msgs[0].Role == schema.System {
		system = msgs[0].Content
	}
	switch {
	case strings.Contains(system, "질문 분석 전문가"):
		return m.analysis, m.analysisErr
	case strings.Contains(system, "컨텍스트 최적화 전문가"):
		return m.optimized, m.optimizeErr
	default:
		return m.answer, m.answerErr
	}
}

func (m *mockChatModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	content, err := m.reply(msgs)
	if err != nil {
		return nil, err
	}
	out := schema.AssistantMessage(content, nil)
	out.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
	return out, nil
}

func (m *mockChatModel) Stream(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	content, err := m.reply(msgs)
	if err != nil {
		return nil, err
	}
	chunks := m.chunks
	if chunks == nil {
		chunks = []string{content}
	}
	if m.streamErr != nil {
		sr, sw := schema.Pipe[*schema.Message](len(chunks) + 1)
		for _, c := range chunks {
			sw.Send(schema.AssistantMessage(c, nil), nil)
		}
		sw.Send(nil, m.streamErr)
		sw.Close()
		return sr, nil
	}
	msgsOut := make([]*schema.Message, 0, len(chunks))
	for _, c := range chunks {
		msgsOut = append(msgsOut, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgsOut), nil
}

func (m *mockChatModel) lastCall() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// mockLedger implements port.LedgerAPI and records the requests it receives.
type mockLedger struct {
	mu sync.Mutex

	transactions  []domain.Transaction
	searchResults []domain.Transaction
	monthly       *domain.MonthlyStatistics
	categoryStats []domain.CategoryStat
	categories    []domain.Category
	err           error
	searchErr     error

	listQueries      []domain.TransactionQuery
	searchQueries    []string
	categoryRequests int
}

func (m *mockLedger) ListTransactions(_ context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listQueries = append(m.listQueries, q)
	if m.err != nil {
		return nil, m.err
	}
	return m.transactions, nil
}

func (m *mockLedger) MonthlyStatistics(_ context.Context, year, month *int) (*domain.MonthlyStatistics, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.monthly != nil {
		return m.monthly, nil
	}
	return &domain.MonthlyStatistics{Year: year, Month: month}, nil
}

func (m *mockLedger) CategoryStatistics(_ context.Context, _, _ *int, _ string) ([]domain.CategoryStat, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.categoryStats, nil
}

func (m *mockLedger) ListCategories(_ context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categoryRequests++
	if m.err != nil {
		return nil, m.err
	}
	return m.categories, nil
}

func (m *mockLedger) SearchTransactions(_ context.Context, query string, _ domain.SearchFilters, _ int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchQueries = append(m.searchQueries, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.searchResults, nil
}

// --- Fixtures ---

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func won(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sampleCategories() []domain.Category {
	return []domain.Category{
		{ID: 1, Name: "급여", Type: domain.TransactionIncome},
		{ID: 2, Name: "식비", Type: domain.TransactionExpense},
		{ID: 3, Name: "교육", Type: domain.TransactionExpense},
	}
}

func newFacade(ledger *mockLedger) *agent.Facade {
	return agent.NewFacade(ledger, nil, observability.NewMetrics(), zap.NewNop())
}
