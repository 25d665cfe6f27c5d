package agent

import (
	"context"
	"sync"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Collector executes the selected tools and gathers their results.
type Collector struct {
	tools      ToolRunner
	concurrent bool
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithConcurrentCollection runs invocations in parallel instead of in order.
func WithConcurrentCollection(enabled bool) CollectorOption {
	return func(c *Collector) { c.concurrent = enabled }
}

// NewCollector creates a Collector.
func NewCollector(tools ToolRunner, metrics *observability.Metrics, logger *zap.Logger, opts ...CollectorOption) *Collector {
	c := &Collector{tools: tools, metrics: metrics, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs every invocation. A failing tool is recorded as an error entry
// under its name and does not affect the others.
func (c *Collector) Collect(ctx context.Context, invocations []domain.ToolInvocation) domain.CollectedData {
	data := make(domain.CollectedData, len(invocations))
	if !c.concurrent {
		for _, inv := range invocations {
			data[inv.Name] = c.collectOne(ctx, inv)
		}
		return data
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, inv := range invocations {
		inv := inv
		g.Go(func() error {
			res := c.collectOne(ctx, inv)
			mu.Lock()
			data[inv.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return data
}

func (c *Collector) collectOne(ctx context.Context, inv domain.ToolInvocation) domain.ToolResult {
	res, err := c.run(ctx, inv)
	if err != nil {
		return res
	}

	// The only retry: keyword-filtered transactions that came back empty are
	// fetched again without keywords. No other tool retries.
	if inv.Name != domain.ToolTransactions || len(nonEmpty(inv.Params.Keywords)) == 0 || len(res.Transactions) > 0 {
		return res
	}

	retry := inv
	retry.Params.Keywords = nil
	retry.Params.Limit = DefaultTransactionLimit

	c.logger.Info("no transactions matched keywords, retrying without them",
		zap.Strings("keywords", inv.Params.Keywords),
		zap.String("start_date", inv.Params.StartDate),
		zap.String("end_date", inv.Params.EndDate),
	)
	fallback, err := c.run(ctx, retry)
	if err != nil {
		return fallback
	}
	c.metrics.IncrFallback(observability.FallbackKeywords)
	fallback.FellBack = true
	return fallback
}

func (c *Collector) run(ctx context.Context, inv domain.ToolInvocation) (domain.ToolResult, error) {
	res, err := c.tools.Run(ctx, inv)
	if err != nil {
		c.logger.Warn("tool failed",
			zap.String("tool", string(inv.Name)),
			zap.Error(err),
		)
		return domain.ToolResult{Error: err.Error()}, err
	}
	return res, nil
}
