package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"credbridge/pkg/requestcontext"
)

// TokenValidator validates bearer tokens presented by the host platform.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims are the claims the bridge expects from host-issued tokens.
type TokenClaims struct {
	Subject string // host system identity (event worker, admin UI)
	Scope   string // "events" or "admin"
}

type contextKeySubject struct{}
type contextKeyScope struct{}

// Subject retrieves the authenticated caller identity from the context.
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(contextKeySubject{}).(string); ok {
		return s
	}
	return ""
}

// Scope retrieves the authenticated token scope from the context.
func Scope(ctx context.Context) string {
	if s, ok := ctx.Value(contextKeyScope{}).(string); ok {
		return s
	}
	return ""
}

// RequireAuth rejects requests without a valid bearer token carrying the
// required scope. The host platform signs these tokens with the shared key.
func RequireAuth(validator TokenValidator, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			if scope != "" && claims.Scope != scope {
				logger.WarnContext(ctx, "unauthorized access - wrong scope",
					"scope", claims.Scope,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Token scope does not permit this operation")
				return
			}

			ctx = context.WithValue(ctx, contextKeySubject{}, claims.Subject)
			ctx = context.WithValue(ctx, contextKeyScope{}, claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
