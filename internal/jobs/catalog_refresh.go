// Package jobs holds background work scheduled alongside the HTTP server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CategoryRefresher reloads the category catalog and reports how many
// categories it now holds.
type CategoryRefresher interface {
	RefreshCategories(ctx context.Context) int
}

// CatalogRefresher keeps the cached category catalog warm on a cron schedule.
type CatalogRefresher struct {
	cron      *cron.Cron
	refresher CategoryRefresher
	schedule  string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewCatalogRefresher validates schedule and registers the refresh job.
// Standard five-field expressions and descriptors such as "@every 10m" are
// accepted. loc defaults to UTC.
func NewCatalogRefresher(schedule string, loc *time.Location, refresher CategoryRefresher, logger *zap.Logger) (*CatalogRefresher, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &CatalogRefresher{
		cron:      cron.New(cron.WithLocation(loc)),
		refresher: refresher,
		schedule:  schedule,
		timeout:   30 * time.Second,
		logger:    logger,
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule catalog refresh %q: %w", schedule, err)
	}
	return r, nil
}

// Run performs one refresh and returns the number of categories loaded.
func (r *CatalogRefresher) Run(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	n := r.refresher.RefreshCategories(ctx)
	if n == 0 {
		r.logger.Warn("category catalog refresh returned nothing, keeping cached catalog",
			zap.Duration("duration", time.Since(start)),
		)
		return 0
	}
	r.logger.Info("category catalog refreshed",
		zap.Int("categories", n),
		zap.Duration("duration", time.Since(start)),
	)
	return n
}

// Start begins running the schedule in the background.
func (r *CatalogRefresher) Start() {
	r.cron.Start()
	r.logger.Info("catalog refresh scheduled", zap.String("schedule", r.schedule))
}

// Stop halts the schedule and waits for a running refresh to finish or ctx
// to expire.
func (r *CatalogRefresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("catalog refresh still running at shutdown")
	}
}
