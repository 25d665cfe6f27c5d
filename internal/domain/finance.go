package domain

import "github.com/shopspring/decimal"

// ============================================================
// Household ledger records (served by the ledger backend)
// ============================================================

// Transaction types as stored by the ledger backend.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// Transaction is a single ledger entry.
// Score is the search index relevance (_score), only set by the hybrid search endpoint.
type Transaction struct {
	ID              int             `json:"id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	CategoryID      *int            `json:"category_id"`
	TransactionDate string          `json:"transaction_date"`
	Score           float64         `json:"_score,omitempty"`
}

// MonthlyStatistics is returned by GET /statistics/monthly.
type MonthlyStatistics struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Year    *int            `json:"year,omitempty"`
	Month   *int            `json:"month,omitempty"`
}

// CategoryStat is one row of GET /statistics/by-category.
type CategoryStat struct {
	CategoryID   *int            `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
}

// Category is an income or expense category.
type Category struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
}

// TransactionQuery holds the filters accepted by GET /transactions.
type TransactionQuery struct {
	Limit      int
	StartDate  string
	EndDate    string
	CategoryID *int
	Type       string
}

// SearchFilters holds the filters accepted by GET /search/transactions.
type SearchFilters struct {
	StartDate  string
	EndDate    string
	Type       string
	CategoryID *int
}

// SearchResponse is the envelope returned by the hybrid search endpoint.
type SearchResponse struct {
	Query   string        `json:"query"`
	Total   int           `json:"total"`
	Results []Transaction `json:"results"`
}
