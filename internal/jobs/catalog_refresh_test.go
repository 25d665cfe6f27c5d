package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/jobs"

	"go.uber.org/zap"
)

type countingRefresher struct {
	calls atomic.Int32
	size  int
}

func (c *countingRefresher) RefreshCategories(ctx context.Context) int {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return -1
	}
	return c.size
}

func TestNewCatalogRefresher_InvalidSchedule(t *testing.T) {
	_, err := jobs.NewCatalogRefresher("every ten minutes", time.UTC, &countingRefresher{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for invalid schedule, got nil")
	}
}

func TestCatalogRefresher_Run(t *testing.T) {
	ref := &countingRefresher{size: 12}
	job, err := jobs.NewCatalogRefresher("@every 10m", nil, ref, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if n := job.Run(context.Background()); n != 12 {
		t.Errorf("expected 12 categories, got %d", n)
	}
	if ref.calls.Load() != 1 {
		t.Errorf("expected 1 refresh, got %d", ref.calls.Load())
	}
}

func TestCatalogRefresher_Schedule(t *testing.T) {
	ref := &countingRefresher{size: 3}
	job, err := jobs.NewCatalogRefresher("@every 1s", time.UTC, ref, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	job.Start()
	deadline := time.Now().Add(3 * time.Second)
	for ref.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job.Stop(ctx)

	if ref.calls.Load() == 0 {
		t.Error("expected the scheduled refresh to run at least once")
	}
}
