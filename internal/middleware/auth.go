package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/repository"
	"github.com/clinicdesk/whatsapp-server-go/internal/util"
)

type contextKey string

const OperatorContextKey contextKey = "operator"

func GetOperator(ctx context.Context) *model.Operator {
	if op, ok := ctx.Value(OperatorContextKey).(*model.Operator); ok {
		return op
	}
	return nil
}

type AuthMiddleware struct {
	directoryRepo repository.DirectoryRepository
}

func NewAuthMiddleware(directoryRepo repository.DirectoryRepository) *AuthMiddleware {
	return &AuthMiddleware{directoryRepo: directoryRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		operator, err := m.directoryRepo.FindOperatorByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if operator == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), OperatorContextKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin guards admin-only routes; must run after Handler.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator := GetOperator(r.Context())
		if operator == nil || operator.Role != model.RoleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "Admin access required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
