package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

const (
	ledgerService = "ledger"

	// The search endpoint rejects sizes above this.
	maxSearchSize = 100
)

// LedgerClient calls the household ledger backend API.
type LedgerClient struct {
	httpClient *http.Client
	baseURL    string
	healthURL  string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewLedgerClient creates a new LedgerClient. token, when set, is sent as a
// bearer token on every request. healthURL may be empty.
func NewLedgerClient(httpClient *http.Client, baseURL, healthURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *LedgerClient {
	return &LedgerClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthURL:  healthURL,
		token:      token,
		cb:         cb,
		cfg:        cfg,
	}
}

// ListTransactions calls GET /transactions.
func (c *LedgerClient) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.ListTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.Int("ledger.limit", q.Limit),
		attribute.String("ledger.start_date", q.StartDate),
		attribute.String("ledger.end_date", q.EndDate),
	)

	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	setIfNotEmpty(params, "start_date", q.StartDate)
	setIfNotEmpty(params, "end_date", q.EndDate)
	setIfNotEmpty(params, "type", q.Type)
	setIntPtr(params, "category_id", q.CategoryID)

	var txs []domain.Transaction
	if err := c.getJSON(ctx, "/transactions", params, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// MonthlyStatistics calls GET /statistics/monthly.
func (c *LedgerClient) MonthlyStatistics(ctx context.Context, year, month *int) (*domain.MonthlyStatistics, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.MonthlyStatistics")
	defer span.End()

	params := url.Values{}
	setIntPtr(params, "year", year)
	setIntPtr(params, "month", month)

	var stats domain.MonthlyStatistics
	if err := c.getJSON(ctx, "/statistics/monthly", params, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CategoryStatistics calls GET /statistics/by-category.
func (c *LedgerClient) CategoryStatistics(ctx context.Context, year, month *int, categoryType string) ([]domain.CategoryStat, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.CategoryStatistics")
	defer span.End()

	params := url.Values{}
	setIntPtr(params, "year", year)
	setIntPtr(params, "month", month)
	setIfNotEmpty(params, "type", categoryType)

	var stats []domain.CategoryStat
	if err := c.getJSON(ctx, "/statistics/by-category", params, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ListCategories calls GET /categories.
func (c *LedgerClient) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.ListCategories")
	defer span.End()

	var cats []domain.Category
	if err := c.getJSON(ctx, "/categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// SearchTransactions calls GET /search/transactions (hybrid keyword + vector search).
// Both a bare result array and the {query,total,results} envelope are accepted.
func (c *LedgerClient) SearchTransactions(ctx context.Context, query string, filters domain.SearchFilters, size int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.SearchTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.query", query), attribute.Int("ledger.size", size))

	if size <= 0 || size > maxSearchSize {
		size = maxSearchSize
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("size", strconv.Itoa(size))
	setIfNotEmpty(params, "start_date", filters.StartDate)
	setIfNotEmpty(params, "end_date", filters.EndDate)
	setIfNotEmpty(params, "type", filters.Type)
	setIntPtr(params, "category_id", filters.CategoryID)

	var raw json.RawMessage
	if err := c.getJSON(ctx, "/search/transactions", params, &raw); err != nil {
		return nil, err
	}
	return decodeSearchResults(raw)
}

// Name implements port.HealthChecker.
func (c *LedgerClient) Name() string { return ledgerService }

// Ping checks the backend health endpoint.
func (c *LedgerClient) Ping(ctx context.Context) error {
	if c.healthURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &domain.ErrHTTPStatus{Service: ledgerService, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *LedgerClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Accept", "application/json")
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return &domain.ErrHTTPStatus{
					Service:    ledgerService,
					StatusCode: resp.StatusCode,
					Body:       strings.TrimSpace(string(body)),
				}
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s: %w", path, err))
			}
			return nil
		})
		return nil, innerErr
	})
	return resilience.Wrap(ledgerService, err)
}

func decodeSearchResults(raw json.RawMessage) ([]domain.Transaction, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var txs []domain.Transaction
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, fmt.Errorf("decode search results: %w", err)
		}
		return txs, nil
	}
	var envelope domain.SearchResponse
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode search envelope: %w", err)
	}
	return envelope.Results, nil
}

func setIfNotEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func setIntPtr(params url.Values, key string, value *int) {
	if value != nil {
		params.Set(key, strconv.Itoa(*value))
	}
}
