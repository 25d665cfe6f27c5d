package agent

import (
	"fmt"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
)

const (
	// DefaultTransactionLimit is the listing size without keywords and for the
	// unfiltered retry.
	DefaultTransactionLimit = 100

	// KeywordTransactionLimit over-fetches so that post-filtering by keyword
	// still leaves enough rows. The factor of two is inherited, not tuned.
	// TODO: measure keyword hit rates per period and size this from data.
	KeywordTransactionLimit = 200
)

// Select maps an analysis to the tool invocations that satisfy it. It is
// pure: the output depends only on the analysis. Invocations are ordered
// transactions, monthly statistics, category statistics, categories, and the
// categories tool is always present.
func Select(a *domain.QuestionAnalysis) []domain.ToolInvocation {
	if a == nil {
		a = &domain.QuestionAnalysis{}
	}
	invocations := make([]domain.ToolInvocation, 0, 4)

	if a.Wants(domain.DataTransactions) {
		invocations = append(invocations, domain.ToolInvocation{
			Name:   domain.ToolTransactions,
			Params: transactionParams(a),
		})
	}

	if a.Wants(domain.DataMonthlyStatistics) {
		invocations = append(invocations, domain.ToolInvocation{
			Name: domain.ToolMonthlyStatistics,
			Params: domain.ToolParams{
				Year:  copyInt(a.DateInfo.Year),
				Month: copyInt(a.DateInfo.Month),
			},
		})
	}

	if a.Wants(domain.DataCategoryStatistics) {
		invocations = append(invocations, domain.ToolInvocation{
			Name: domain.ToolCategoryStatistics,
			Params: domain.ToolParams{
				Year:         copyInt(a.DateInfo.Year),
				Month:        copyInt(a.DateInfo.Month),
				CategoryType: a.Filters.CategoryType,
			},
		})
	}

	invocations = append(invocations, domain.ToolInvocation{Name: domain.ToolCategories})
	return invocations
}

func transactionParams(a *domain.QuestionAnalysis) domain.ToolParams {
	var p domain.ToolParams
	info := a.DateInfo

	switch {
	case info.StartDate != "" || info.EndDate != "":
		p.StartDate, p.EndDate = info.StartDate, info.EndDate
	case info.Year != nil && info.Month != nil:
		p.StartDate, p.EndDate = MonthRange(*info.Year, *info.Month)
	case info.Year != nil:
		p.StartDate = fmt.Sprintf("%04d-01-01", *info.Year)
		p.EndDate = fmt.Sprintf("%04d-12-31", *info.Year)
	}

	p.TransactionType = a.Filters.TransactionType
	p.CategoryID = copyInt(a.Filters.CategoryID)

	if len(a.Filters.Keywords) > 0 {
		p.Limit = KeywordTransactionLimit
		p.Keywords = append([]string(nil), a.Filters.Keywords...)
	} else {
		p.Limit = DefaultTransactionLimit
	}
	return p
}

// MonthRange returns the first and last day of the month as YYYY-MM-DD.
func MonthRange(year, month int) (string, string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(time.DateOnly), last.Format(time.DateOnly)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
