package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxCategoryStatLines = 10
	maxTransactionLines  = 30

	fallbackNotice  = "※ 키워드와 일치하는 거래가 없어 전체 거래 내역을 표시합니다"
	truncatedNotice = "(컨텍스트 길이 제한으로 이하 생략)"
)

// ContextBuilder turns collected data into the text block the response
// model answers from.
type ContextBuilder struct {
	maxRunes  int
	optimizer *Optimizer
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewContextBuilder creates a ContextBuilder. maxRunes <= 0 disables the
// length bound; a nil optimizer disables model-based rewriting.
func NewContextBuilder(maxRunes int, optimizer *Optimizer, metrics *observability.Metrics, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{maxRunes: maxRunes, optimizer: optimizer, metrics: metrics, logger: logger}
}

// Build renders the deterministic context and, when an optimizer is set,
// lets the model tailor it to the question. Any optimizer failure returns
// the deterministic block unchanged.
func (b *ContextBuilder) Build(ctx context.Context, question string, now time.Time, a *domain.QuestionAnalysis, data domain.CollectedData) string {
	basic := Truncate(RenderContext(data, a, now), b.maxRunes)
	if b.optimizer == nil {
		return basic
	}

	optimized, err := b.optimizer.Optimize(ctx, question, now, a, data, basic)
	if err != nil {
		b.logger.Warn("context optimization failed, using deterministic context", zap.Error(err))
		b.metrics.IncrFallback(observability.FallbackContext)
		return basic
	}
	return Truncate(optimized, b.maxRunes)
}

// RenderContext is the deterministic rendering pass. Blocks appear in a fixed
// order: period header, monthly totals, category breakdown, transactions,
// category catalog. A failed or empty transaction lookup renders an explicit
// diagnostic block instead of being omitted.
func RenderContext(data domain.CollectedData, a *domain.QuestionAnalysis, now time.Time) string {
	if a == nil {
		a = &domain.QuestionAnalysis{}
	}
	info := a.DateInfo
	var lines []string

	if header := periodHeader(info); header != "" {
		lines = append(lines, fmt.Sprintf("=== 조회 기간: %s ===", header), "")
	}

	names := map[int]string{}
	if res, ok := data[domain.ToolCategories]; ok {
		for _, c := range res.Categories {
			names[c.ID] = c.Name
		}
	}

	if res, ok := data[domain.ToolMonthlyStatistics]; ok {
		switch {
		case res.Error != "":
			period := blockPeriod(nil, nil, info, now)
			lines = append(lines,
				fmt.Sprintf("=== %s 통계 조회 오류 ===", period),
				"경고: 통계를 불러오는 중 오류가 발생했습니다: "+res.Error,
				"",
			)
		case res.Monthly != nil:
			s := res.Monthly
			lines = append(lines,
				fmt.Sprintf("=== %s 통계 ===", blockPeriod(s.Year, s.Month, info, now)),
				"총 수입: "+FormatWon(s.Income),
				"총 지출: "+FormatWon(s.Expense),
				"잔액: "+FormatWon(s.Balance),
				"",
			)
		}
	}

	if res, ok := data[domain.ToolCategoryStatistics]; ok {
		period := blockPeriod(nil, nil, info, now)
		label := "지출"
		if a.Filters.CategoryType == domain.TransactionIncome {
			label = "수입"
		}
		switch {
		case res.Error != "":
			lines = append(lines,
				fmt.Sprintf("=== %s 카테고리별 통계 조회 오류 ===", period),
				"경고: 카테고리별 통계를 불러오는 중 오류가 발생했습니다: "+res.Error,
				"",
			)
		case len(res.CategoryStats) > 0:
			lines = append(lines, fmt.Sprintf("=== %s 카테고리별 %s ===", period, label))
			for i, cs := range res.CategoryStats {
				if i == maxCategoryStatLines {
					break
				}
				name := cs.CategoryName
				if name == "" {
					name = "알 수 없음"
				}
				lines = append(lines, fmt.Sprintf("- %s: %s (%d건)", name, FormatWon(cs.Total), cs.Count))
			}
			lines = append(lines, "")
		}
	}

	if res, ok := data[domain.ToolTransactions]; ok {
		period := blockPeriod(nil, nil, info, now)
		switch {
		case res.Error != "":
			lines = append(lines,
				fmt.Sprintf("=== %s 거래 내역 조회 오류 ===", period),
				"경고: 거래 내역을 불러오는 중 오류가 발생했습니다: "+res.Error,
				"",
			)
		case len(res.Transactions) == 0:
			lines = append(lines,
				fmt.Sprintf("=== %s 거래 내역 (0건) ===", period),
				"경고: 해당 기간에 거래 내역이 조회되지 않았습니다.",
				"키워드 필터링이 너무 엄격했거나, 해당 기간에 실제로 거래가 없을 수 있습니다.",
				"",
			)
		default:
			if res.FellBack {
				lines = append(lines, fallbackNotice)
			}
			lines = append(lines, fmt.Sprintf("=== 거래 내역 (%d건) ===", len(res.Transactions)))
			for i, tx := range res.Transactions {
				if i == maxTransactionLines {
					break
				}
				lines = append(lines, transactionLine(tx, names))
			}
			lines = append(lines, "")
		}
	}

	if res, ok := data[domain.ToolCategories]; ok {
		switch {
		case res.Error != "":
			lines = append(lines,
				"=== 카테고리 목록 조회 오류 ===",
				"경고: 카테고리 목록을 불러오는 중 오류가 발생했습니다: "+res.Error,
				"",
			)
		case len(res.Categories) > 0:
			var income, expense []string
			for _, c := range res.Categories {
				switch c.Type {
				case domain.TransactionIncome:
					income = append(income, c.Name)
				case domain.TransactionExpense:
					expense = append(expense, c.Name)
				}
			}
			lines = append(lines, "=== 카테고리 목록 ===")
			if len(income) > 0 {
				lines = append(lines, "수입 카테고리: "+strings.Join(income, ", "))
			}
			if len(expense) > 0 {
				lines = append(lines, "지출 카테고리: "+strings.Join(expense, ", "))
			}
			lines = append(lines, "")
		}
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func transactionLine(tx domain.Transaction, names map[int]string) string {
	kind := "지출"
	if tx.Type == domain.TransactionIncome {
		kind = "수입"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s: %s %s", tx.TransactionDate, kind, FormatWon(tx.Amount))
	if tx.CategoryID != nil {
		if name := names[*tx.CategoryID]; name != "" {
			fmt.Fprintf(&sb, " [%s]", name)
		}
	}
	if tx.Description != "" {
		sb.WriteString(" - " + tx.Description)
	}
	return sb.String()
}

// periodHeader renders the analysis period, or "" when none was resolved.
func periodHeader(info domain.DateInfo) string {
	var parts []string
	if info.Year != nil {
		parts = append(parts, fmt.Sprintf("%d년", *info.Year))
	}
	if info.Month != nil {
		parts = append(parts, fmt.Sprintf("%d월", *info.Month))
	}
	if len(parts) == 0 && info.StartDate != "" {
		return strings.TrimSpace(info.StartDate + " ~ " + info.EndDate)
	}
	return strings.Join(parts, " ")
}

// blockPeriod names the period of a data block. Source values win over the
// analysis; with no period at all the current month is assumed, which is what
// the backend defaults to. A year without a month stays year-only.
func blockPeriod(year, month *int, info domain.DateInfo, now time.Time) string {
	if year == nil {
		year = info.Year
	}
	if month == nil {
		month = info.Month
	}
	if year == nil && month == nil {
		return fmt.Sprintf("%d년 %d월", now.Year(), int(now.Month()))
	}
	y := now.Year()
	if year != nil {
		y = *year
	}
	return domain.DateReference{Year: y, Month: month}.String()
}

// FormatWon renders an amount rounded to whole won with thousands separators,
// e.g. "1,234,567원".
func FormatWon(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	sb.WriteString("원")
	return sb.String()
}

// Truncate bounds s to maxRunes, cutting at the last full line and appending
// a notice. maxRunes <= 0 leaves s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	cut := string([]rune(s)[:maxRunes])
	if i := strings.LastIndex(cut, "\n"); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n" + truncatedNotice
}

// Optimizer asks the model to tailor a context block to the question while
// keeping its "=== section ===" layout.
type Optimizer struct {
	model   model.BaseChatModel
	metrics *observability.Metrics
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(m model.BaseChatModel, metrics *observability.Metrics) *Optimizer {
	return &Optimizer{model: m, metrics: metrics}
}

var errEmptyOptimization = errors.New("optimizer returned empty context")

// Optimize returns the rewritten context with code fence lines removed.
func (o *Optimizer) Optimize(ctx context.Context, question string, now time.Time, a *domain.QuestionAnalysis, data domain.CollectedData, basic string) (string, error) {
	period := ""
	if a != nil {
		period = periodHeader(a.DateInfo)
	}
	msgs := []*schema.Message{
		schema.SystemMessage(optimizeSystemPrompt),
		schema.UserMessage(optimizePrompt(question, now, period, dataSummary(data), basic)),
	}

	out, err := o.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("optimize call: %w", err)
	}
	recordUsage(o.metrics, out)

	optimized := stripFenceLines(out.Content)
	if optimized == "" {
		return "", errEmptyOptimization
	}
	return optimized, nil
}

func dataSummary(data domain.CollectedData) []string {
	var summary []string
	if res, ok := data[domain.ToolTransactions]; ok && res.Error == "" {
		summary = append(summary, fmt.Sprintf("거래 내역: %d건", len(res.Transactions)))
	}
	if res, ok := data[domain.ToolMonthlyStatistics]; ok && res.Monthly != nil {
		summary = append(summary, fmt.Sprintf("통계: 수입 %s, 지출 %s",
			FormatWon(res.Monthly.Income), FormatWon(res.Monthly.Expense)))
	}
	return summary
}

func stripFenceLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
