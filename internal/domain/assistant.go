package domain

import "time"

// ============================================================
// Chat API: Request/Response
// ============================================================

// TokenUsage tracks LLM token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Question       string `json:"question"`
}

// ChatMetadata describes how an answer was produced.
type ChatMetadata struct {
	Period           string   `json:"period,omitempty"`
	ToolsUsed        []string `json:"toolsUsed"`
	FellBack         bool     `json:"fellBack"`
	AnalysisFallback bool     `json:"analysisFallback"`
	LatencyMs        int64    `json:"latencyMs"`
	Reasoning        string   `json:"reasoning,omitempty"`
}

// ChatResponse is returned by POST /v1/chat.
type ChatResponse struct {
	ConversationID string        `json:"conversationId"`
	Answer         string        `json:"answer"`
	Timestamp      string        `json:"timestamp"`
	Metadata       *ChatMetadata `json:"metadata"`
}

// HistoryResponse is returned by GET /v1/chat/{conversationId}/history.
type HistoryResponse struct {
	ConversationID string        `json:"conversationId"`
	Messages       []ChatMessage `json:"messages"`
}

// DateExtractionResponse is returned by GET /v1/dates.
type DateExtractionResponse struct {
	Query      string               `json:"query"`
	Reference  *DateReference       `json:"reference"`
	Comparison *ComparisonReference `json:"comparison"`
}

// Stream event types sent over the chat websocket.
const (
	EventStage = "stage"
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"
)

// StreamMessage is a client frame on the chat websocket.
type StreamMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Question       string `json:"question,omitempty"`
}

// StreamEvent is a server frame on the chat websocket.
type StreamEvent struct {
	Type           string        `json:"type"`
	ConversationID string        `json:"conversationId,omitempty"`
	Stage          string        `json:"stage,omitempty"`
	Content        string        `json:"content,omitempty"`
	Metadata       *ChatMetadata `json:"metadata,omitempty"`
}

// TurnResult is the service-level outcome of one chat turn before it is
// mapped to an API response.
type TurnResult struct {
	ConversationID   string
	Answer           string
	Period           *DateReference
	ToolsUsed        []string
	FellBack         bool
	AnalysisFallback bool
	Reasoning        string
	Error            string
	Latency          time.Duration
	ProcessedAt      time.Time
}
