package handler

import (
	"net/http"

	"go.uber.org/zap"
)

// maxChatBodyBytes bounds the JSON body of POST /v1/chat.
const maxChatBodyBytes = 64 << 10

// BodyLimitMiddleware rejects request bodies larger than maxBytes.
func BodyLimitMiddleware(maxBytes int64, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				logger.Warn("request body too large",
					zap.String("path", r.URL.Path),
					zap.Int64("content_length", r.ContentLength),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
