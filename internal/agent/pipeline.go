package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/dateref"
	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("agent")

// Pipeline stage names, as reported to callbacks and metrics.
const (
	StageAnalyze      = "analyze_question"
	StageSelect       = "select_tools"
	StageCollect      = "collect_data"
	StageBuildContext = "build_context"
	StageGenerate     = "generate_response"
)

type stateChain = compose.Runnable[*domain.AgentState, *domain.AgentState]

// Pipeline answers one question per call. Stages run in order:
// analyze, select, collect, build context, generate.
type Pipeline struct {
	analyzer  *Analyzer
	collector *Collector
	builder   *ContextBuilder
	responder *Responder
	now       func() time.Time
	metrics   *observability.Metrics
	logger    *zap.Logger

	// prepare runs every stage except generation; full runs all of them.
	prepare stateChain
	full    stateChain
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock replaces time.Now as the source of "now" for relative dates.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline compiles the stage chains.
func NewPipeline(
	ctx context.Context,
	analyzer *Analyzer,
	collector *Collector,
	builder *ContextBuilder,
	responder *Responder,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...PipelineOption,
) (*Pipeline, error) {
	p := &Pipeline{
		analyzer:  analyzer,
		collector: collector,
		builder:   builder,
		responder: responder,
		now:       time.Now,
		metrics:   metrics,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.prepare, err = p.compile(ctx, false); err != nil {
		return nil, fmt.Errorf("compile prepare chain: %w", err)
	}
	if p.full, err = p.compile(ctx, true); err != nil {
		return nil, fmt.Errorf("compile full chain: %w", err)
	}
	return p, nil
}

func (p *Pipeline) compile(ctx context.Context, withGenerate bool) (stateChain, error) {
	chain := compose.NewChain[*domain.AgentState, *domain.AgentState]()
	chain.
		AppendLambda(compose.InvokableLambda(p.analyze), compose.WithNodeName(StageAnalyze)).
		AppendLambda(compose.InvokableLambda(p.selectTools), compose.WithNodeName(StageSelect)).
		AppendLambda(compose.InvokableLambda(p.collect), compose.WithNodeName(StageCollect)).
		AppendLambda(compose.InvokableLambda(p.buildContext), compose.WithNodeName(StageBuildContext))
	if withGenerate {
		chain.AppendLambda(compose.InvokableLambda(p.generate), compose.WithNodeName(StageGenerate))
	}
	return chain.Compile(ctx)
}

// Run answers question using history as prior conversation. Collaborator
// failures degrade the answer instead of failing the call; the returned
// error is reserved for a broken pipeline or cancelled context.
func (p *Pipeline) Run(ctx context.Context, question string, history []domain.ChatMessage) (*domain.AgentState, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Run")
	defer span.End()

	st := p.newState(question, history)
	out, err := p.full.Invoke(ctx, st, compose.WithCallbacks(NewStageCallbacks(p.metrics, p.logger, nil)))
	if err != nil {
		return st, fmt.Errorf("run pipeline: %w", err)
	}
	span.SetAttributes(
		attribute.StringSlice("agent.tools", out.ToolsUsed()),
		attribute.Bool("agent.fell_back", out.FellBack()),
	)
	return out, nil
}

// RunStream runs the preparation stages, then streams the answer through
// onToken. onStage, when set, is told when each stage starts.
func (p *Pipeline) RunStream(
	ctx context.Context,
	question string,
	history []domain.ChatMessage,
	onStage func(stage string),
	onToken func(token string) error,
) (*domain.AgentState, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.RunStream")
	defer span.End()

	st := p.newState(question, history)
	out, err := p.prepare.Invoke(ctx, st, compose.WithCallbacks(NewStageCallbacks(p.metrics, p.logger, onStage)))
	if err != nil {
		return st, fmt.Errorf("run pipeline: %w", err)
	}

	if onStage != nil {
		onStage(StageGenerate)
	}
	start := time.Now()
	response, genErr := p.responder.Stream(ctx, out.Question, out.Context, out.Messages, out.Now, onToken)
	p.metrics.RecordStageDuration(StageGenerate, time.Since(start))
	out.Response = response
	if genErr != nil {
		out.ResponseFailed = true
		out.Error = "응답 생성 실패: " + genErr.Error()
	}
	return out, nil
}

func (p *Pipeline) newState(question string, history []domain.ChatMessage) *domain.AgentState {
	return &domain.AgentState{
		Question: question,
		Now:      p.now(),
		Messages: history,
	}
}

func (p *Pipeline) analyze(ctx context.Context, st *domain.AgentState) (*domain.AgentState, error) {
	st.Reference = dateref.Extract(st.Question, st.Now)
	st.Comparison = dateref.ExtractComparison(st.Question, st.Now)

	analysis, err := p.analyzer.Analyze(ctx, st.Question, st.Now, st.Reference, st.Comparison)
	if err != nil {
		p.logger.Warn("question analysis failed, using default analysis", zap.Error(err))
		p.metrics.IncrFallback(observability.FallbackAnalysis)
		st.Error = "질문 분석 실패: " + err.Error()
		st.AnalysisFallback = true
		analysis = DefaultAnalysis()
	} else {
		ApplyDateOverride(analysis, st.Reference)
	}
	analysis.Comparison = st.Comparison
	st.Analysis = analysis
	return st, nil
}

func (p *Pipeline) selectTools(_ context.Context, st *domain.AgentState) (*domain.AgentState, error) {
	st.Invocations = Select(st.Analysis)
	return st, nil
}

func (p *Pipeline) collect(ctx context.Context, st *domain.AgentState) (*domain.AgentState, error) {
	st.CollectedData = p.collector.Collect(ctx, st.Invocations)
	return st, nil
}

func (p *Pipeline) buildContext(ctx context.Context, st *domain.AgentState) (*domain.AgentState, error) {
	st.Context = p.builder.Build(ctx, st.Question, st.Now, st.Analysis, st.CollectedData)
	return st, nil
}

func (p *Pipeline) generate(ctx context.Context, st *domain.AgentState) (*domain.AgentState, error) {
	response, err := p.responder.Generate(ctx, st.Question, st.Context, st.Messages, st.Now)
	st.Response = response
	if err != nil {
		st.ResponseFailed = true
		st.Error = "응답 생성 실패: " + err.Error()
	}
	return st, nil
}

type stageStartKey struct{}

// NewStageCallbacks records the duration of every lambda stage and logs its
// boundaries. onStage may be nil.
func NewStageCallbacks(metrics *observability.Metrics, logger *zap.Logger, onStage func(string)) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			if info == nil || info.Component != compose.ComponentOfLambda {
				return ctx
			}
			logger.Debug("stage started", zap.String("stage", info.Name))
			if onStage != nil {
				onStage(info.Name)
			}
			return context.WithValue(ctx, stageStartKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			if info == nil || info.Component != compose.ComponentOfLambda {
				return ctx
			}
			if start, ok := ctx.Value(stageStartKey{}).(time.Time); ok {
				d := time.Since(start)
				metrics.RecordStageDuration(info.Name, d)
				logger.Debug("stage finished",
					zap.String("stage", info.Name),
					zap.Duration("duration", d),
				)
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			if info == nil || info.Component != compose.ComponentOfLambda {
				return ctx
			}
			logger.Error("stage failed", zap.String("stage", info.Name), zap.Error(err))
			return ctx
		}).
		Build()
}
