package domain

import (
	"fmt"
	"time"
)

// ============================================================
// Agent pipeline types
// ============================================================

// DateReference is a resolved (year, month) pair.
// A nil Month means the whole year.
type DateReference struct {
	Year  int  `json:"year"`
	Month *int `json:"month,omitempty"`
}

// HasMonth reports whether the reference narrows to a single month.
func (d DateReference) HasMonth() bool {
	return d.Month != nil
}

// String renders the reference the way answers should name it, e.g. "2024년 1월".
func (d DateReference) String() string {
	if d.Month == nil {
		return fmt.Sprintf("%d년", d.Year)
	}
	return fmt.Sprintf("%d년 %d월", d.Year, *d.Month)
}

// ComparisonReference is an ordered pair of references found in one question.
type ComparisonReference struct {
	First  DateReference `json:"first"`
	Second DateReference `json:"second"`
}

// DataType is a kind of data the analyzer may request.
type DataType string

const (
	DataTransactions       DataType = "transactions"
	DataMonthlyStatistics  DataType = "monthly_statistics"
	DataCategoryStatistics DataType = "category_statistics"
	DataCategories         DataType = "categories"
)

// DateInfo is the period part of a QuestionAnalysis. Any field may be empty.
type DateInfo struct {
	Year      *int   `json:"year"`
	Month     *int   `json:"month"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// AnalysisFilters narrows the transactions and category statistics fetched.
type AnalysisFilters struct {
	CategoryType    string   `json:"category_type,omitempty"`
	TransactionType string   `json:"transaction_type,omitempty"`
	CategoryID      *int     `json:"category_id,omitempty"`
	Keywords        []string `json:"keywords"`
}

// QuestionAnalysis is what the analyzer decided a question needs.
type QuestionAnalysis struct {
	DataTypes  []DataType           `json:"data_types"`
	DateInfo   DateInfo             `json:"date_info"`
	Filters    AnalysisFilters      `json:"filters"`
	Reasoning  string               `json:"reasoning"`
	Comparison *ComparisonReference `json:"comparison,omitempty"`
}

// Wants reports whether dt was requested.
func (a *QuestionAnalysis) Wants(dt DataType) bool {
	for _, t := range a.DataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// Period returns the analysis period as a DateReference, or nil when no year is set.
func (a *QuestionAnalysis) Period() *DateReference {
	if a == nil || a.DateInfo.Year == nil {
		return nil
	}
	return &DateReference{Year: *a.DateInfo.Year, Month: a.DateInfo.Month}
}

// ToolName identifies a read operation against the ledger backend.
type ToolName string

const (
	ToolTransactions       ToolName = "get_transactions"
	ToolMonthlyStatistics  ToolName = "get_monthly_statistics"
	ToolCategoryStatistics ToolName = "get_category_statistics"
	ToolCategories         ToolName = "get_categories"
)

// ToolParams carries the bound parameters of a ToolInvocation.
// Only the fields relevant to the tool are set.
type ToolParams struct {
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	TransactionType string   `json:"transaction_type,omitempty"`
	CategoryID      *int     `json:"category_id,omitempty"`
	Year            *int     `json:"year,omitempty"`
	Month           *int     `json:"month,omitempty"`
	CategoryType    string   `json:"category_type,omitempty"`
}

// ToolInvocation is a tool name with its parameters.
type ToolInvocation struct {
	Name   ToolName   `json:"name"`
	Params ToolParams `json:"params"`
}

// Transaction sources recorded on a ToolResult.
const (
	SourceSearch = "search"
	SourceDirect = "direct"
)

// ToolResult is the outcome of one invocation. Exactly one payload is
// meaningful for a given tool; Error is set instead when the tool failed.
type ToolResult struct {
	Transactions  []Transaction      `json:"transactions,omitempty"`
	Monthly       *MonthlyStatistics `json:"monthly,omitempty"`
	CategoryStats []CategoryStat     `json:"category_stats,omitempty"`
	Categories    []Category         `json:"categories,omitempty"`
	Error         string             `json:"error,omitempty"`

	// FellBack is set when a keyword-filtered transactions result came back
	// empty and was replaced by the unfiltered listing.
	FellBack bool   `json:"fell_back,omitempty"`
	Source   string `json:"source,omitempty"`
}

// CollectedData maps each executed tool to its result.
type CollectedData map[ToolName]ToolResult

// ChatRole is the author of a ChatMessage.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// AgentState is threaded through every pipeline stage for one user turn.
type AgentState struct {
	Question string
	Now      time.Time
	Messages []ChatMessage

	Reference        *DateReference
	Comparison       *ComparisonReference
	Analysis         *QuestionAnalysis
	AnalysisFallback bool
	Invocations      []ToolInvocation
	CollectedData    CollectedData
	Context          string
	Response         string
	// ResponseFailed is set when Response is a diagnostic rather than an answer.
	ResponseFailed bool
	Error          string
}

// ToolsUsed lists the invocation names in execution order.
func (s *AgentState) ToolsUsed() []string {
	names := make([]string, 0, len(s.Invocations))
	for _, inv := range s.Invocations {
		names = append(names, string(inv.Name))
	}
	return names
}

// FellBack reports whether the transactions result is an unfiltered fallback.
func (s *AgentState) FellBack() bool {
	return s.CollectedData[ToolTransactions].FellBack
}
