package handler

import (
	"log/slog"
	"net/http"

	"github.com/notely/notely/internal/middleware"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/oauth"
	"github.com/notely/notely/internal/service"
	"github.com/notely/notely/internal/session"
	"github.com/notely/notely/internal/view"
)

// MsgOAuthEmailRejected is shown when the provider's email fails account validation.
const MsgOAuthEmailRejected = "Your GitHub email cannot be used to sign in"

// OAuthHandler signs users in with an external OAuth provider.
type OAuthHandler struct {
	provider oauth.Provider
	users    *service.UserService
	sessions *session.Manager
	errors   *ErrorRenderer
	logger   *slog.Logger
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(provider oauth.Provider, users *service.UserService, sessions *session.Manager, errors *ErrorRenderer, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		provider: provider,
		users:    users,
		sessions: sessions,
		errors:   errors,
		logger:   logger,
	}
}

// Start handles GET /auth/github.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.IssueState(w)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /auth/github/callback.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if !h.sessions.ConsumeState(w, r, query.Get("state")) {
		h.logger.Warn("oauth state mismatch",
			slog.String("ip", r.RemoteAddr),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.errors.Page(w, r, http.StatusBadRequest, msgInvalidState)
		return
	}

	// The user declined on the provider's consent screen
	if reason := query.Get("error"); reason != "" {
		h.logger.Info("oauth declined",
			slog.String("reason", reason),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.errors.Page(w, r, http.StatusBadRequest, msgBadRequest)
		return
	}

	email, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}

	user, err := h.users.FindOrCreateOAuthUser(r.Context(), email)
	if err != nil {
		if ve, ok := model.AsValidationError(err); ok {
			h.logger.Info("oauth email rejected",
				slog.String("reason", ve.Error()),
				slog.String("request_id", middleware.GetRequestID(r.Context())),
			)
			h.errors.render(w, r, http.StatusUnprocessableEntity, view.PageLogin, view.Data{
				Title:         "Log in",
				FormError:     MsgOAuthEmailRejected,
				GitHubEnabled: true,
			})
			return
		}
		h.errors.Render(w, r, err)
		return
	}

	if err := h.sessions.Issue(w, user.ID); err != nil {
		h.errors.Render(w, r, err)
		return
	}

	h.logger.Info("oauth_login",
		slog.String("user_id", user.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	http.Redirect(w, r, "/", http.StatusFound)
}
