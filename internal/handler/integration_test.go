package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/agent"
	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/handler"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/cache"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/client"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/history"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/llm"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/resilience"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"
	"github.com/ncaco/2026-idea-mvp-01/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const integrationAnalysis = `{"data_types":["transactions","category_statistics"],` +
	`"date_info":{"year":2024,"month":1},"filters":{"category_type":"expense","keywords":[]},"reasoning":"식비 확인"}`

// ledgerBackend serves the household ledger REST API and records the
// transaction queries it receives.
type ledgerBackend struct {
	mu      sync.Mutex
	queries []string
}

func (b *ledgerBackend) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/health":
		w.Write([]byte(`{"status":"ok"}`))
	case "/api/transactions":
		b.mu.Lock()
		b.queries = append(b.queries, r.URL.RawQuery)
		b.mu.Unlock()
		w.Write([]byte(`[
			{"id":2,"type":"expense","amount":"12000.00","description":"점심 식사","category_id":2,"transaction_date":"2024-01-05"},
			{"id":5,"type":"expense","amount":"38000.00","description":"장보기","category_id":2,"transaction_date":"2024-01-12"}
		]`))
	case "/api/statistics/by-category":
		w.Write([]byte(`[{"category_id":2,"category_name":"식비","total":"50000.00","count":2}]`))
	case "/api/statistics/monthly":
		w.Write([]byte(`{"income":"0","expense":"50000","balance":"-50000"}`))
	case "/api/categories":
		w.Write([]byte(`[{"id":1,"name":"급여","type":"income"},{"id":2,"name":"식비","type":"expense"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// llmBackend speaks the streaming chat-completions protocol and answers by
// the role announced in the system prompt.
func llmBackend(t *testing.T, answerChunks []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("invalid LLM request: %v", err)
		}

		chunks := answerChunks
		if len(body.Messages) > 0 && strings.Contains(body.Messages[0].Content, "질문 분석 전문가") {
			chunks = []string{integrationAnalysis}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"delta": map[string]any{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func newIntegrationServer(t *testing.T, ledger *ledgerBackend) *httptest.Server {
	t.Helper()
	ledgerServer := httptest.NewServer(http.HandlerFunc(ledger.handler))
	t.Cleanup(ledgerServer.Close)
	llmServer := httptest.NewServer(llmBackend(t, []string{"2024년 1월 ", "식비는 ", "50,000원입니다."}))
	t.Cleanup(llmServer.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}
	httpClient := &http.Client{Timeout: 5 * time.Second}
	now := func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }

	ledgerClient := client.NewLedgerClient(httpClient, ledgerServer.URL+"/api", ledgerServer.URL+"/health", "",
		resilience.NewCircuitBreaker(t.Name()+"-ledger"), cfg)
	chatModel := llm.NewChatModel(httpClient, llm.Config{BaseURL: llmServer.URL, Model: "local-model", Temperature: 0.7},
		resilience.NewCircuitBreaker(t.Name()+"-llm"), cfg)

	facade := agent.NewFacade(ledgerClient, cache.New[[]domain.Category](time.Minute), metrics, logger)
	pipeline, err := agent.NewPipeline(context.Background(),
		agent.NewAnalyzer(chatModel, metrics, logger),
		agent.NewCollector(agent.NewLedgerTools(facade, logger), metrics, logger),
		agent.NewContextBuilder(12000, nil, metrics, logger),
		agent.NewResponder(chatModel, metrics, logger),
		metrics, logger,
		agent.WithClock(now),
	)
	if err != nil {
		t.Fatalf("expected no error building pipeline, got %v", err)
	}

	svc := service.NewAssistant(pipeline, history.NewMemoryStore(time.Hour, 50), nil, "local-model", metrics, logger)
	router := handler.NewRouter(svc, []port.HealthChecker{ledgerClient}, now, metrics, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// TestIntegration_ChatFlow runs a question through real clients, the agent
// pipeline, the service and the router.
func TestIntegration_ChatFlow(t *testing.T) {
	ledger := &ledgerBackend{}
	srv := newIntegrationServer(t, ledger)

	body, _ := json.Marshal(domain.ChatRequest{Question: "작년 1월에 식비 얼마 썼어?"})
	resp, err := http.Post(srv.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var chat domain.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if chat.Answer != "2024년 1월 식비는 50,000원입니다." {
		t.Errorf("unexpected answer %q", chat.Answer)
	}
	if chat.ConversationID == "" {
		t.Error("expected a conversation ID")
	}
	if chat.Metadata == nil || chat.Metadata.Period != "2024년 1월" {
		t.Fatalf("expected period 2024년 1월, got %+v", chat.Metadata)
	}
	if strings.Join(chat.Metadata.ToolsUsed, ",") != "get_transactions,get_category_statistics,get_categories" {
		t.Errorf("unexpected tools %v", chat.Metadata.ToolsUsed)
	}

	ledger.mu.Lock()
	queries := ledger.queries
	ledger.mu.Unlock()
	if len(queries) != 1 || !strings.Contains(queries[0], "start_date=2024-01-01") || !strings.Contains(queries[0], "end_date=2024-01-31") {
		t.Errorf("expected one January 2024 transaction query, got %v", queries)
	}

	// --- History round trip ---
	histResp, err := http.Get(srv.URL + "/v1/chat/" + chat.ConversationID + "/history")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer histResp.Body.Close()
	var hist domain.HistoryResponse
	if err := json.NewDecoder(histResp.Body).Decode(&hist); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(hist.Messages) != 2 || hist.Messages[1].Content != chat.Answer {
		t.Errorf("expected question and answer in history, got %+v", hist.Messages)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/chat/"+chat.ConversationID+"/history", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", delResp.StatusCode)
	}

	goneResp, err := http.Get(srv.URL + "/v1/chat/" + chat.ConversationID + "/history")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	goneResp.Body.Close()
	if goneResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after clear, got %d", goneResp.StatusCode)
	}
}

func TestIntegration_ChatValidation(t *testing.T) {
	srv := newIntegrationServer(t, &ledgerBackend{})

	for _, body := range []string{`{"question":"   "}`, `not json`} {
		resp, err := http.Post(srv.URL+"/v1/chat", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestIntegration_Healthz(t *testing.T) {
	srv := newIntegrationServer(t, &ledgerBackend{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var health domain.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if health.Status != "healthy" || len(health.Services) != 2 || health.Services[1].Name != "ledger" {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestIntegration_ChatStream(t *testing.T) {
	srv := newIntegrationServer(t, &ledgerBackend{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(domain.StreamMessage{Type: "message", Question: "작년 1월에 식비 얼마 썼어?"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var (
		stages []string
		tokens strings.Builder
		done   *domain.StreamEvent
	)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for done == nil {
		var ev domain.StreamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		switch ev.Type {
		case domain.EventStage:
			stages = append(stages, ev.Stage)
		case domain.EventToken:
			tokens.WriteString(ev.Content)
		case domain.EventDone:
			done = &ev
		case domain.EventError:
			t.Fatalf("unexpected error event: %s", ev.Content)
		}
	}

	if len(stages) != 5 || stages[0] != agent.StageAnalyze || stages[4] != agent.StageGenerate {
		t.Errorf("unexpected stages %v", stages)
	}
	if tokens.String() != "2024년 1월 식비는 50,000원입니다." || done.Content != tokens.String() {
		t.Errorf("expected streamed answer to match done frame, got %q / %q", tokens.String(), done.Content)
	}
	if done.ConversationID == "" || done.Metadata == nil || done.Metadata.Period != "2024년 1월" {
		t.Errorf("unexpected done frame %+v", done)
	}

	if err := conn.WriteJSON(domain.StreamMessage{Type: "subscribe"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var ev domain.StreamEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ev.Type != domain.EventError {
		t.Errorf("expected error frame for unknown type, got %+v", ev)
	}
}
