// Package llm talks to a locally hosted, OpenAI-compatible chat completions
// endpoint (LM Studio, llama.cpp server, vLLM) and exposes it as an eino
// chat model.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/resilience"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("llm")

const (
	service      = "llm"
	ssePrefix    = "data:"
	sseDone      = "[DONE]"
	maxLineBytes = 1 << 20
)

var errStreamClosed = errors.New("stream reader closed")

// Config configures the chat model.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
}

// ChatModel implements model.BaseChatModel over POST /v1/chat/completions
// with stream=true. Generate drains the stream into a single message.
type ChatModel struct {
	httpClient *http.Client
	cfg        Config
	cb         *gobreaker.CircuitBreaker
	retry      resilience.Config
	bulkhead   *resilience.Bulkhead
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel creates a ChatModel. At most retry.MaxConcurrency requests are
// in flight at once.
func NewChatModel(httpClient *http.Client, cfg Config, cb *gobreaker.CircuitBreaker, retry resilience.Config) *ChatModel {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ChatModel{
		httpClient: httpClient,
		cfg:        cfg,
		cb:         cb,
		retry:      retry,
		bulkhead:   resilience.NewBulkhead(retry.MaxConcurrency),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *domain.TokenUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends msgs and returns the full assistant reply.
func (m *ChatModel) Generate(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	ctx, span := tracer.Start(ctx, "ChatModel.Generate")
	defer span.End()

	if err := m.bulkhead.Acquire(ctx); err != nil {
		return nil, resilience.Wrap(service, err)
	}
	defer m.bulkhead.Release()

	resp, err := m.open(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sb strings.Builder
	meta, err := readStream(resp.Body, func(content string) error {
		sb.WriteString(content)
		return nil
	})
	if err != nil {
		return nil, resilience.Wrap(service, err)
	}

	span.SetAttributes(attribute.Int("llm.response_length", sb.Len()))
	out := schema.AssistantMessage(sb.String(), nil)
	out.ResponseMeta = meta
	return out, nil
}

// Stream sends msgs and forwards each content delta as it arrives. The final
// chunk carries the response metadata when the server reports it.
func (m *ChatModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	ctx, span := tracer.Start(ctx, "ChatModel.Stream")

	if err := m.bulkhead.Acquire(ctx); err != nil {
		span.End()
		return nil, resilience.Wrap(service, err)
	}

	resp, err := m.open(ctx, msgs, opts...)
	if err != nil {
		m.bulkhead.Release()
		span.End()
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](16)
	go func() {
		defer span.End()
		defer m.bulkhead.Release()
		defer resp.Body.Close()
		defer sw.Close()

		meta, err := readStream(resp.Body, func(content string) error {
			if closed := sw.Send(&schema.Message{Role: schema.Assistant, Content: content}, nil); closed {
				return errStreamClosed
			}
			return nil
		})
		switch {
		case errors.Is(err, errStreamClosed):
		case err != nil:
			sw.Send(nil, resilience.Wrap(service, err))
		case meta != nil:
			sw.Send(&schema.Message{Role: schema.Assistant, ResponseMeta: meta}, nil)
		}
	}()
	return sr, nil
}

// Name implements port.HealthChecker.
func (m *ChatModel) Name() string { return service }

// Ping lists the server's models.
func (m *ChatModel) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	m.authorize(req)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &domain.ErrHTTPStatus{Service: service, StatusCode: resp.StatusCode}
	}
	return nil
}

// open performs the request behind the breaker and retry policy and returns
// the response with an unread body.
func (m *ChatModel) open(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*http.Response, error) {
	temperature := m.cfg.Temperature
	modelName := m.cfg.Model
	options := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		Model:       &modelName,
	}, opts...)

	payload := chatRequest{
		Model:       deref(options.Model),
		Messages:    toChatMessages(msgs),
		Stream:      true,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
		TopP:        options.TopP,
		Stop:        options.Stop,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	result, err := m.cb.Execute(func() (any, error) {
		var resp *http.Response
		innerErr := resilience.RetryWithBackoff(ctx, m.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")
			m.authorize(req)

			r, err := m.httpClient.Do(req)
			if err != nil {
				return err
			}
			if r.StatusCode != http.StatusOK {
				defer r.Body.Close()
				msg, _ := io.ReadAll(io.LimitReader(r.Body, 512))
				return &domain.ErrHTTPStatus{
					Service:    service,
					StatusCode: r.StatusCode,
					Body:       strings.TrimSpace(string(msg)),
				}
			}
			resp = r
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return resp, nil
	})
	if err != nil {
		return nil, resilience.Wrap(service, err)
	}
	return result.(*http.Response), nil
}

func (m *ChatModel) authorize(req *http.Request) {
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}
}

// readStream consumes server-sent events until [DONE] or EOF, passing every
// non-empty choices[0].delta.content to onContent. Lines that are not valid
// JSON are skipped.
func readStream(r io.Reader, onContent func(string) error) (*schema.ResponseMeta, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var meta *schema.ResponseMeta
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
		if data == sseDone {
			return meta, nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("stream error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			meta = ensureMeta(meta)
			meta.Usage = &schema.TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			meta = ensureMeta(meta)
			meta.FinishReason = *choice.FinishReason
		}
		if choice.Delta.Content != "" {
			if err := onContent(choice.Delta.Content); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return meta, nil
}

func ensureMeta(meta *schema.ResponseMeta) *schema.ResponseMeta {
	if meta == nil {
		return &schema.ResponseMeta{}
	}
	return meta
}

func toChatMessages(msgs []*schema.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		out = append(out, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
