package middleware

import (
	"net/http"
)

// Webhook deliveries batch multiple entries per POST, so they get more room
// than operator API calls.
const (
	DefaultMaxBodySize = 256 << 10
	WebhookMaxBodySize = 2 << 20
)

type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return m.limit(next, m.maxSize)
}

// WebhookHandler applies the larger webhook cap regardless of the configured
// API limit.
func (m *BodyLimitMiddleware) WebhookHandler(next http.Handler) http.Handler {
	return m.limit(next, WebhookMaxBodySize)
}

func (m *BodyLimitMiddleware) limit(next http.Handler, maxSize int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		next.ServeHTTP(w, r)
	})
}
