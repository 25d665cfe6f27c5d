package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(zap.New(core)))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/v1/chat/{conversationId}/history", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/v1/chat", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	tests := []struct {
		method    string
		path      string
		wantLevel zapcore.Level
		wantRoute string
	}{
		{http.MethodGet, "/healthz", zapcore.DebugLevel, "/healthz"},
		{http.MethodGet, "/v1/chat/abc-123/history", zapcore.WarnLevel, "/v1/chat/{conversationId}/history"},
		{http.MethodPost, "/v1/chat", zapcore.ErrorLevel, "/v1/chat"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			entries := logs.TakeAll()
			if len(entries) != 1 {
				t.Fatalf("expected 1 log entry, got %d", len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("expected level %s, got %s", tt.wantLevel, entries[0].Level)
			}
			if got := entries[0].ContextMap()["route"]; got != tt.wantRoute {
				t.Errorf("expected route %q, got %v", tt.wantRoute, got)
			}
		})
	}
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger := observability.NewLogger("verbose", "ledger-assistant")
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug to be disabled")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be enabled")
	}
}
