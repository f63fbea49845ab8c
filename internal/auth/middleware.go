package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopfront/internal/domain"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

type Middleware struct {
	tokens *Tokens
	logger *slog.Logger
}

func NewMiddleware(tokens *Tokens, logger *slog.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		logger: logger,
	}
}

// Authenticate answers 401 when no bearer token is sent and 403 when the
// token does not verify.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || token == "" {
			m.writeError(w, http.StatusUnauthorized, "access token required")
			return
		}

		id, err := m.tokens.Verify(token)
		if err != nil {
			m.writeError(w, http.StatusForbidden, err.Error())
			return
		}

		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

// RequireRole authenticates the request and then checks the caller's role.
func (m *Middleware) RequireRole(role domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		if id.Role != role {
			m.logger.Info("role check failed", "user_id", id.UserID, "required", role)
			m.writeError(w, http.StatusForbidden, "access denied: "+string(role)+" role required")
			return
		}
		next(w, r)
	})
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		m.logger.Error("failed to encode error response", "error", err)
	}
}
