package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// Analyzer asks the language model which data a question needs.
type Analyzer struct {
	model   model.BaseChatModel
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(m model.BaseChatModel, metrics *observability.Metrics, logger *zap.Logger) *Analyzer {
	return &Analyzer{model: m, metrics: metrics, logger: logger}
}

// Analyze returns the parsed analysis of question. The extractor output is
// passed to the model as ground truth but not applied here; see ApplyDateOverride.
// A reply that cannot be decoded yields a *domain.MalformedAnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, question string, now time.Time, ref *domain.DateReference, cmp *domain.ComparisonReference) (*domain.QuestionAnalysis, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(analysisSystemPrompt),
		schema.UserMessage(analysisPrompt(question, now, ref, cmp)),
	}

	out, err := a.model.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", err)
	}
	recordUsage(a.metrics, out)

	analysis, err := ParseAnalysis(out.Content)
	if err != nil {
		a.logger.Warn("analysis reply is not valid JSON",
			zap.Int("reply_length", len(out.Content)),
			zap.Error(err),
		)
		return nil, err
	}
	return analysis, nil
}

// DefaultAnalysis is substituted when analysis fails: transactions and
// monthly statistics with no date filter.
func DefaultAnalysis() *domain.QuestionAnalysis {
	return &domain.QuestionAnalysis{
		DataTypes: []domain.DataType{domain.DataTransactions, domain.DataMonthlyStatistics},
		Filters:   domain.AnalysisFilters{Keywords: []string{}},
		Reasoning: "기본 분석",
	}
}

// ApplyDateOverride writes the extractor's reference over whatever period the
// model chose. This is a strict precedence rule, not a merge: the deterministic
// extractor always wins, field by field, including clearing the month for a
// year-only reference. Explicit start/end dates are dropped because they would
// otherwise take priority over year/month in tool selection.
func ApplyDateOverride(a *domain.QuestionAnalysis, ref *domain.DateReference) {
	if a == nil || ref == nil {
		return
	}
	year := ref.Year
	a.DateInfo.Year = &year
	if ref.Month != nil {
		month := *ref.Month
		a.DateInfo.Month = &month
	} else {
		a.DateInfo.Month = nil
	}
	a.DateInfo.StartDate = ""
	a.DateInfo.EndDate = ""
}

// rawAnalysis mirrors QuestionAnalysis with lenient field types.
type rawAnalysis struct {
	DataTypes []string `json:"data_types"`
	DateInfo  *struct {
		Year      flexInt    `json:"year"`
		Month     flexInt    `json:"month"`
		StartDate nullString `json:"start_date"`
		EndDate   nullString `json:"end_date"`
	} `json:"date_info"`
	Filters *struct {
		CategoryType    nullString `json:"category_type"`
		TransactionType nullString `json:"transaction_type"`
		CategoryID      flexInt    `json:"category_id"`
		Keywords        []string   `json:"keywords"`
	} `json:"filters"`
	Reasoning nullString `json:"reasoning"`
}

// ParseAnalysis decodes a model reply. Markdown code fences are stripped first.
// Missing sections are normalised to empty values; unknown data types and
// out-of-range months are dropped.
func ParseAnalysis(raw string) (*domain.QuestionAnalysis, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, &domain.MalformedAnalysisError{Raw: raw, Err: fmt.Errorf("empty reply")}
	}

	var r rawAnalysis
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&r); err != nil {
		return nil, &domain.MalformedAnalysisError{Raw: raw, Err: err}
	}

	out := &domain.QuestionAnalysis{
		DataTypes: make([]domain.DataType, 0, len(r.DataTypes)),
		Filters:   domain.AnalysisFilters{Keywords: []string{}},
		Reasoning: string(r.Reasoning),
	}
	seen := make(map[domain.DataType]bool)
	for _, dt := range r.DataTypes {
		t := domain.DataType(strings.TrimSpace(dt))
		if !knownDataType(t) || seen[t] {
			continue
		}
		seen[t] = true
		out.DataTypes = append(out.DataTypes, t)
	}

	if r.DateInfo != nil {
		out.DateInfo.Year = r.DateInfo.Year.ptr()
		if m := r.DateInfo.Month.ptr(); m != nil && *m >= 1 && *m <= 12 {
			out.DateInfo.Month = m
		}
		out.DateInfo.StartDate = validDate(string(r.DateInfo.StartDate))
		out.DateInfo.EndDate = validDate(string(r.DateInfo.EndDate))
	}

	if r.Filters != nil {
		out.Filters.CategoryType = normaliseType(string(r.Filters.CategoryType))
		out.Filters.TransactionType = normaliseType(string(r.Filters.TransactionType))
		out.Filters.CategoryID = r.Filters.CategoryID.ptr()
		for _, kw := range r.Filters.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				out.Filters.Keywords = append(out.Filters.Keywords, kw)
			}
		}
	}
	return out, nil
}

// stripFences returns the body of the first ```json or ``` block, or the
// trimmed input when there is none.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return text
}

func knownDataType(t domain.DataType) bool {
	switch t {
	case domain.DataTransactions, domain.DataMonthlyStatistics, domain.DataCategoryStatistics, domain.DataCategories:
		return true
	}
	return false
}

func normaliseType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case domain.TransactionIncome:
		return domain.TransactionIncome
	case domain.TransactionExpense:
		return domain.TransactionExpense
	}
	return ""
}

func validDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return ""
	}
	return s
}

// flexInt accepts a JSON number, a numeric string, or null.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.value, f.set = int(n), true
	return nil
}

func (f flexInt) ptr() *int {
	if !f.set || f.value == 0 {
		return nil
	}
	v := f.value
	return &v
}

// nullString decodes null and non-string values as "".
type nullString string

func (s *nullString) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		*s = ""
		return nil
	}
	*s = nullString(v)
	return nil
}

func recordUsage(metrics *observability.Metrics, msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return
	}
	u := msg.ResponseMeta.Usage
	metrics.RecordTokens(u.PromptTokens, u.CompletionTokens)
}
