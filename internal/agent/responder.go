package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// HistoryTurns is how many prior messages are replayed to the model.
const HistoryTurns = 5

const errorResponsePrefix = "오류가 발생했습니다: "

// ErrorResponse is the answer shown when the model cannot be reached.
func ErrorResponse(err error) string {
	return errorResponsePrefix + err.Error()
}

// Responder produces the final answer from the question and its context.
type Responder struct {
	model   model.BaseChatModel
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewResponder creates a Responder.
func NewResponder(m model.BaseChatModel, metrics *observability.Metrics, logger *zap.Logger) *Responder {
	return &Responder{model: m, metrics: metrics, logger: logger}
}

// Generate returns the model's answer. It never fails: a model error is
// returned as a diagnostic answer and reported through the second value.
func (r *Responder) Generate(ctx context.Context, question, contextBlock string, history []domain.ChatMessage, now time.Time) (string, error) {
	out, err := r.model.Generate(ctx, BuildResponseMessages(question, contextBlock, history, now))
	if err != nil {
		r.logger.Error("response generation failed", zap.Error(err))
		return ErrorResponse(err), err
	}
	recordUsage(r.metrics, out)
	return out.Content, nil
}

// Stream forwards answer chunks to onToken as they arrive and returns the
// full answer. On model failure the diagnostic text is forwarded as well.
// If onToken returns an error the stream is abandoned and the text so far
// is returned.
func (r *Responder) Stream(ctx context.Context, question, contextBlock string, history []domain.ChatMessage, now time.Time, onToken func(string) error) (string, error) {
	sr, err := r.model.Stream(ctx, BuildResponseMessages(question, contextBlock, history, now))
	if err != nil {
		r.logger.Error("response stream failed to open", zap.Error(err))
		text := ErrorResponse(err)
		_ = onToken(text)
		return text, err
	}
	defer sr.Close()

	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			r.logger.Error("response stream interrupted",
				zap.Int("received_length", sb.Len()),
				zap.Error(err),
			)
			suffix := ErrorResponse(err)
			if sb.Len() > 0 {
				suffix = "\n\n" + suffix
			}
			sb.WriteString(suffix)
			_ = onToken(suffix)
			return sb.String(), err
		}
		recordUsage(r.metrics, chunk)
		if chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if err := onToken(chunk.Content); err != nil {
			return sb.String(), nil
		}
	}
}

// BuildResponseMessages assembles the system prompt, the last HistoryTurns
// history messages and the question with its context.
func BuildResponseMessages(question, contextBlock string, history []domain.ChatMessage, now time.Time) []*schema.Message {
	if len(history) > HistoryTurns {
		history = history[len(history)-HistoryTurns:]
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(responseSystemPrompt(now)))
	for _, h := range history {
		switch h.Role {
		case domain.RoleUser:
			msgs = append(msgs, schema.UserMessage(h.Content))
		case domain.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(h.Content, nil))
		}
	}
	msgs = append(msgs, schema.UserMessage(responseUserPrompt(now, question, contextBlock)))
	return msgs
}
