package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/resilience"

	"github.com/sony/gobreaker"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; test with timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

	sentinel := errors.New("bad payload")
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return resilience.Permanent(sentinel)
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_ClientStatusNotRetried(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

	tests := []struct {
		status    int
		wantCalls int
	}{
		{400, 1},
		{404, 1},
		{429, 4},
		{503, 4},
	}

	for _, tt := range tests {
		callCount := 0
		_ = resilience.RetryWithBackoff(context.Background(), cfg, func() error {
			callCount++
			return &domain.ErrHTTPStatus{Service: "ledger", StatusCode: tt.status}
		})
		if callCount != tt.wantCalls {
			t.Errorf("status %d: expected %d calls, got %d", tt.status, tt.wantCalls, callCount)
		}
	}
}

func TestWrap(t *testing.T) {
	var circuitOpen *domain.ErrCircuitOpen
	if err := resilience.Wrap("llm", gobreaker.ErrOpenState); !errors.As(err, &circuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}

	var timeout *domain.ErrTimeout
	if err := resilience.Wrap("llm", context.DeadlineExceeded); !errors.As(err, &timeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	var external *domain.ErrExternalService
	cause := errors.New("connection refused")
	err := resilience.Wrap("ledger", cause)
	if !errors.As(err, &external) || external.Service != "ledger" {
		t.Errorf("expected ErrExternalService for ledger, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be preserved")
	}

	if resilience.Wrap("ledger", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")

	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, &domain.ErrHTTPStatus{Service: "ledger", StatusCode: 404}
		})
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected breaker to stay closed, got %s", cb.State())
	}

	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, errors.New("connection refused")
		})
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected breaker to open, got %s", cb.State())
	}
}
