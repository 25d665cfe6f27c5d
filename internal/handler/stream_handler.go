package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ============================================================
// Streaming chat: GET /v1/chat/ws
// ============================================================

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamConn serialises writes: stage events may arrive from pipeline
// goroutines while tokens are being written.
type streamConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *zap.Logger
}

func (c *streamConn) send(ev domain.StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.logger.Debug("failed to send stream event", zap.String("type", ev.Type), zap.Error(err))
		return err
	}
	return nil
}

func (c *streamConn) sendError(conversationID, content string) {
	_ = c.send(domain.StreamEvent{Type: domain.EventError, ConversationID: conversationID, Content: content})
}

func chatStreamHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		sc := &streamConn{conn: conn, logger: logger}
		ctx := r.Context()
		logger.Debug("chat stream connected", zap.String("remote_addr", r.RemoteAddr))

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("chat stream closed unexpectedly", zap.Error(err))
				}
				return
			}

			var msg domain.StreamMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				sc.sendError("", "invalid message format")
				continue
			}
			if msg.Type != "message" {
				sc.sendError(msg.ConversationID, fmt.Sprintf("unknown message type: %s", msg.Type))
				continue
			}

			ctxTurn, span := tracer.Start(ctx, "WS /v1/chat/ws message")
			result, err := svc.AskStream(ctxTurn, msg.ConversationID, msg.Question,
				func(stage string) {
					_ = sc.send(domain.StreamEvent{Type: domain.EventStage, ConversationID: msg.ConversationID, Stage: stage})
				},
				func(token string) error {
					return sc.send(domain.StreamEvent{Type: domain.EventToken, ConversationID: msg.ConversationID, Content: token})
				},
			)
			span.End()
			if err != nil {
				logger.Warn("streamed turn failed", zap.Error(err))
				sc.sendError(msg.ConversationID, err.Error())
				continue
			}

			if err := sc.send(domain.StreamEvent{
				Type:           domain.EventDone,
				ConversationID: result.ConversationID,
				Content:        result.Answer,
				Metadata:       toChatMetadata(result),
			}); err != nil {
				return
			}
		}
	}
}
