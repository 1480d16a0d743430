package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/util"
)

// WebhookSignatureMiddleware verifies Meta's X-Hub-Signature-256 header:
// "sha256=" followed by an HMAC-SHA256 of the raw body keyed with the app
// secret. With no secret configured, verification is bypassed with a warning
// so local setups still work.
type WebhookSignatureMiddleware struct {
	appSecret string
}

func NewWebhookSignatureMiddleware(appSecret string) *WebhookSignatureMiddleware {
	return &WebhookSignatureMiddleware{appSecret: appSecret}
}

func (m *WebhookSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.appSecret == "" {
			log.Warn().Msg("webhook signature verification bypassed: APP_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get("X-Hub-Signature-256")
		if !strings.HasPrefix(signature, "sha256=") {
			log.Warn().Msg("webhook signature middleware: missing or malformed signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("webhook signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.appSecret, body)
		provided := strings.TrimPrefix(signature, "sha256=")
		if !util.ConstantTimeEqual(computed, provided) {
			log.Warn().Msg("webhook signature middleware: invalid signature")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
