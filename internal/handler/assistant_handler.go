package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/dateref"
	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Chat: POST /v1/chat
// ============================================================

func chatHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		var req domain.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ConversationID != "" {
			span.SetAttributes(attribute.String("conversation.id", req.ConversationID))
		}

		result, err := svc.Ask(ctx, req.ConversationID, req.Question)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, toChatResponse(result))
	}
}

func toChatResponse(result *domain.TurnResult) domain.ChatResponse {
	return domain.ChatResponse{
		ConversationID: result.ConversationID,
		Answer:         result.Answer,
		Timestamp:      result.ProcessedAt.Format(time.RFC3339),
		Metadata:       toChatMetadata(result),
	}
}

func toChatMetadata(result *domain.TurnResult) *domain.ChatMetadata {
	md := &domain.ChatMetadata{
		ToolsUsed:        result.ToolsUsed,
		FellBack:         result.FellBack,
		AnalysisFallback: result.AnalysisFallback,
		LatencyMs:        result.Latency.Milliseconds(),
		Reasoning:        result.Reasoning,
	}
	if result.Period != nil {
		md.Period = result.Period.String()
	}
	return md
}

// ============================================================
// History: GET / DELETE /v1/chat/{conversationId}/history
// ============================================================

func getHistoryHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/chat/{conversationId}/history")
		defer span.End()

		conversationID := chi.URLParam(r, "conversationId")
		span.SetAttributes(attribute.String("conversation.id", conversationID))

		msgs, err := svc.History(ctx, conversationID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.HistoryResponse{ConversationID: conversationID, Messages: msgs})
	}
}

func clearHistoryHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/chat/{conversationId}/history")
		defer span.End()

		conversationID := chi.URLParam(r, "conversationId")
		span.SetAttributes(attribute.String("conversation.id", conversationID))

		if err := svc.ClearHistory(ctx, conversationID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Dates: GET /v1/dates?q=
// ============================================================

func datesHandler(now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "q", Message: "is required"}, logger)
			return
		}

		t := now()
		writeJSON(w, http.StatusOK, domain.DateExtractionResponse{
			Query:      q,
			Reference:  dateref.Extract(q, t),
			Comparison: dateref.ExtractComparison(q, t),
		})
	}
}
