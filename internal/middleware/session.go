package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/session"
)

// UserFinder resolves a user ID to an account. A nil user means absent.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SessionConfig holds configuration for the session middleware.
type SessionConfig struct {
	Logger   *slog.Logger
	Sessions *session.Manager
	Users    UserFinder
	// OnError renders lookup failures. Defaults to a plain 500.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// LoadSession resolves the session cookie into a user on the request context.
// Invalid or stale sessions are cleared and the request continues
// unauthenticated.
func LoadSession(cfg SessionConfig) func(http.Handler) http.Handler {
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := cfg.Sessions.Read(r)
			if err != nil {
				if err != session.ErrNoSession {
					cfg.Logger.Info("session discarded",
						slog.String("reason", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					cfg.Sessions.Clear(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := cfg.Users.FindByID(r.Context(), userID)
			if err != nil {
				cfg.Logger.Error("session user lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				cfg.OnError(w, r, err)
				return
			}
			if user == nil {
				cfg.Logger.Info("session discarded",
					slog.String("reason", "stale_user"),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				cfg.Sessions.Clear(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			noteUser(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser redirects to /login when no user is attached to the request.
// Must be applied after LoadSession.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectIfUser sends logged-in users to / instead of the login and
// registration pages.
func RedirectIfUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) != nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
