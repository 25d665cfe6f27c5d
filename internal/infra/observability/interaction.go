package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interaction is one answered chat turn.
type Interaction struct {
	ConversationID   string
	Question         string
	Answer           string
	Model            string
	Period           string
	ToolsUsed        []string
	ContextLength    int
	FellBack         bool
	AnalysisFallback bool
	Error            string
	Latency          time.Duration
}

// InteractionLogger appends one JSON line per chat turn.
type InteractionLogger struct {
	logger *zap.Logger
}

// NewInteractionLogger writes interactions as JSON lines to path.
// An empty path returns a logger that discards everything.
func NewInteractionLogger(path string) (*InteractionLogger, error) {
	if path == "" {
		return &InteractionLogger{logger: zap.NewNop()}, nil
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "event"

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &InteractionLogger{logger: logger}, nil
}

// Log records in. The trace ID is attached when ctx carries a sampled span.
func (l *InteractionLogger) Log(ctx context.Context, in Interaction) {
	fields := []zap.Field{
		zap.String("conversation_id", in.ConversationID),
		zap.String("question", in.Question),
		zap.Int("question_length", len([]rune(in.Question))),
		zap.Int("context_length", in.ContextLength),
		zap.Int("response_length", len([]rune(in.Answer))),
		zap.String("answer", in.Answer),
		zap.String("model", in.Model),
		zap.String("period", in.Period),
		zap.Strings("tools", in.ToolsUsed),
		zap.Bool("fell_back", in.FellBack),
		zap.Bool("analysis_fallback", in.AnalysisFallback),
		zap.Int64("latency_ms", in.Latency.Milliseconds()),
	}
	if in.Error != "" {
		fields = append(fields, zap.String("error", in.Error))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	l.logger.Info("chat_interaction", fields...)
}

// Sync flushes buffered entries.
func (l *InteractionLogger) Sync() error {
	return l.logger.Sync()
}
