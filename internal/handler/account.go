package handler

import (
	"log/slog"
	"net/http"

	"github.com/notely/notely/internal/handler/dto"
	"github.com/notely/notely/internal/middleware"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/service"
	"github.com/notely/notely/internal/session"
	"github.com/notely/notely/internal/view"
)

// MsgInvalidCredentials is shown for any failed login. It never reveals
// whether the email exists.
const MsgInvalidCredentials = "Invalid email or password"

// AccountHandler serves registration, login and logout.
type AccountHandler struct {
	users         *service.UserService
	sessions      *session.Manager
	errors        *ErrorRenderer
	logger        *slog.Logger
	githubEnabled bool
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(users *service.UserService, sessions *session.Manager, errors *ErrorRenderer, logger *slog.Logger, githubEnabled bool) *AccountHandler {
	return &AccountHandler{
		users:         users,
		sessions:      sessions,
		errors:        errors,
		logger:        logger,
		githubEnabled: githubEnabled,
	}
}

// RegisterForm handles GET /register.
func (h *AccountHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderRegister(w, r, http.StatusOK, nil, nil)
}

// Register handles POST /register. The new user is logged in straight away.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, err := dto.BindCredentials(r)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if ve, ok := model.AsValidationError(err); ok {
			h.renderRegister(w, r, http.StatusUnprocessableEntity, creds.Values(), ve.Fields)
			return
		}
		h.errors.Render(w, r, err)
		return
	}

	h.logger.Info("user_registered",
		slog.String("user_id", user.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	h.startSession(w, r, user.ID)
}

// LoginForm handles GET /login.
func (h *AccountHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, nil, "")
}

// Login handles POST /login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := dto.BindCredentials(r)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}
	if user == nil {
		h.logger.Info("login_failed",
			slog.String("ip", r.RemoteAddr),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.renderLogin(w, r, http.StatusUnauthorized, creds.Values(), MsgInvalidCredentials)
		return
	}

	h.startSession(w, r, user.ID)
}

// Logout handles GET /logout.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AccountHandler) startSession(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.sessions.Issue(w, userID); err != nil {
		h.errors.Render(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AccountHandler) renderRegister(w http.ResponseWriter, r *http.Request, status int, form, fieldErrors map[string]string) {
	h.errors.render(w, r, status, view.PageRegister, view.Data{
		Title:         "Register",
		Form:          form,
		Errors:        fieldErrors,
		GitHubEnabled: h.githubEnabled,
	})
}

func (h *AccountHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, form map[string]string, formError string) {
	h.errors.render(w, r, status, view.PageLogin, view.Data{
		Title:         "Log in",
		Form:          form,
		FormError:     formError,
		GitHubEnabled: h.githubEnabled,
	})
}
