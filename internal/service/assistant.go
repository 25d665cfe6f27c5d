package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/agent"
	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/assistant")

// Assistant runs chat turns against the agent pipeline and keeps the
// conversation history.
type Assistant struct {
	agent        port.Agent
	history      port.ConversationStore
	interactions *observability.InteractionLogger
	model        string
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewAssistant creates the assistant service with all dependencies injected.
// interactions may be nil.
func NewAssistant(
	a port.Agent,
	history port.ConversationStore,
	interactions *observability.InteractionLogger,
	model string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Assistant {
	if interactions == nil {
		interactions, _ = observability.NewInteractionLogger("")
	}
	return &Assistant{
		agent:        a,
		history:      history,
		interactions: interactions,
		model:        model,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Ask answers question within conversationID. An empty conversationID starts
// a new conversation.
func (a *Assistant) Ask(ctx context.Context, conversationID, question string) (*domain.TurnResult, error) {
	return a.turn(ctx, "Assistant.Ask", conversationID, question,
		func(ctx context.Context, q string, history []domain.ChatMessage) (*domain.AgentState, error) {
			return a.agent.Run(ctx, q, history)
		})
}

// AskStream is Ask with the answer forwarded to onToken as it is generated.
// onStage, when set, is told when each pipeline stage starts.
func (a *Assistant) AskStream(
	ctx context.Context,
	conversationID, question string,
	onStage func(string),
	onToken func(string) error,
) (*domain.TurnResult, error) {
	return a.turn(ctx, "Assistant.AskStream", conversationID, question,
		func(ctx context.Context, q string, history []domain.ChatMessage) (*domain.AgentState, error) {
			return a.agent.RunStream(ctx, q, history, onStage, onToken)
		})
}

type runFunc func(ctx context.Context, question string, history []domain.ChatMessage) (*domain.AgentState, error)

func (a *Assistant) turn(ctx context.Context, spanName, conversationID, question string, run runFunc) (*domain.TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &domain.ErrValidation{Field: "question", Message: "must not be empty"}
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("chat", time.Since(start))
	}()

	history, err := a.history.Recent(ctx, conversationID, agent.HistoryTurns)
	if err != nil {
		a.metrics.IncrRequest("error")
		return nil, fmt.Errorf("load history: %w", err)
	}

	st, err := run(ctx, question, history)
	if err != nil {
		a.logger.Error("agent pipeline failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		a.metrics.IncrRequest("error")
		return nil, err
	}

	now := a.now()
	if err := a.history.Append(ctx, conversationID,
		domain.ChatMessage{Role: domain.RoleUser, Content: question, CreatedAt: now},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: st.Response, CreatedAt: now},
	); err != nil {
		a.metrics.IncrRequest("error")
		return nil, fmt.Errorf("save history: %w", err)
	}

	if st.ResponseFailed {
		a.metrics.IncrRequest("error")
	} else {
		a.metrics.IncrRequest("success")
	}

	result := &domain.TurnResult{
		ConversationID:   conversationID,
		Answer:           st.Response,
		Period:           st.Analysis.Period(),
		ToolsUsed:        st.ToolsUsed(),
		FellBack:         st.FellBack(),
		AnalysisFallback: st.AnalysisFallback,
		Error:            st.Error,
		Latency:          time.Since(start),
		ProcessedAt:      now,
	}
	if st.Analysis != nil {
		result.Reasoning = st.Analysis.Reasoning
	}

	period := ""
	if result.Period != nil {
		period = result.Period.String()
	}
	a.interactions.Log(ctx, observability.Interaction{
		ConversationID:   conversationID,
		Question:         question,
		Answer:           st.Response,
		Model:            a.model,
		Period:           period,
		ToolsUsed:        result.ToolsUsed,
		ContextLength:    len([]rune(st.Context)),
		FellBack:         result.FellBack,
		AnalysisFallback: result.AnalysisFallback,
		Error:            st.Error,
		Latency:          result.Latency,
	})
	span.SetAttributes(attribute.StringSlice("agent.tools", result.ToolsUsed))

	return result, nil
}

// History returns the stored messages of a conversation, oldest first. An
// unknown or expired conversation is reported as not found.
func (a *Assistant) History(ctx context.Context, conversationID string) ([]domain.ChatMessage, error) {
	if conversationID == "" {
		return nil, &domain.ErrValidation{Field: "conversationId", Message: "is required"}
	}
	msgs, err := a.history.Recent(ctx, conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(msgs) == 0 {
		return nil, &domain.ErrNotFound{Resource: "conversation", ID: conversationID}
	}
	return msgs, nil
}

// ClearHistory forgets a conversation.
func (a *Assistant) ClearHistory(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return &domain.ErrValidation{Field: "conversationId", Message: "is required"}
	}
	if err := a.history.Clear(ctx, conversationID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	a.logger.Info("conversation cleared", zap.String("conversation_id", conversationID))
	return nil
}
