package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/notely/notely/internal/auth"
)

// Token rejection messages.
const (
	MsgInvalidToken     = "Invalid token"
	MsgNotAuthenticated = "Not authenticated"
)

// TokenParser verifies an API token and returns its user ID.
type TokenParser interface {
	Parse(token string) (string, error)
}

// TokenConfig holds configuration for the token auth middleware.
type TokenConfig struct {
	Logger *slog.Logger
	Tokens TokenParser
	Users  UserFinder
}

// RequireToken authenticates API requests with the Authorization header,
// accepting both "<token>" and "Bearer <token>". A request without a token
// is unauthenticated; one with a bad token is rejected as invalid.
func RequireToken(cfg TokenConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeJSONError(w, http.StatusUnauthorized, MsgNotAuthenticated)
				return
			}

			userID, err := cfg.Tokens.Parse(token)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "invalid_token")
				writeJSONError(w, http.StatusUnauthorized, MsgInvalidToken)
				return
			}

			user, err := cfg.Users.FindByID(r.Context(), userID)
			if err != nil {
				cfg.Logger.Error("token user lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if user == nil {
				logAuthFailure(cfg.Logger, r, "user_not_found")
				writeJSONError(w, http.StatusUnauthorized, MsgNotAuthenticated)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			noteUser(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken returns the raw token from the Authorization header.
func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}
