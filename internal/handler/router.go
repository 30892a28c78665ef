package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/metrics"
	"github.com/notely/notely/internal/middleware"
	"github.com/notely/notely/internal/oauth"
	"github.com/notely/notely/internal/service"
	"github.com/notely/notely/internal/session"
	"github.com/notely/notely/internal/view"
)

// Rate limit scopes for the credential endpoints.
const (
	scopeLogin    = "login"
	scopeRegister = "register"
	scopeAPIAuth  = "api_auth"
)

const msgTooManyRequests = "Too many attempts. Please wait a minute and try again."

// RateLimit configures per-IP limits on credential endpoints.
type RateLimit struct {
	Enabled   bool
	PerMinute int
	Burst     int
}

// RouterConfig holds everything the router wires together.
// Optional collaborators are left nil to disable their routes or checks.
type RouterConfig struct {
	Logger   *slog.Logger
	View     *view.Renderer
	Recorder metrics.Recorder
	Metrics  metrics.Snapshotter

	Users    *service.UserService
	Notes    *service.NoteService
	Sessions *session.Manager
	Tokens   *auth.TokenIssuer

	// GitHub enables /auth/github when set.
	GitHub oauth.Provider
	// Limiter enables rate limiting when set.
	Limiter   middleware.IPLimiter
	RateLimit RateLimit

	DB    HealthChecker
	Cache HealthChecker

	IsDevelopment  bool
	MaxBodySize    int64
	AllowedOrigins []string
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewNoop()
	}

	errs := NewErrorRenderer(cfg.View, cfg.Logger)
	h := New(errs)
	healthHandler := NewHealthHandler(cfg.DB, cfg.Cache)
	metricsHandler := NewMetricsHandler(cfg.Metrics)
	noteHandler := NewNoteHandler(cfg.Notes, errs, cfg.Logger)
	accountHandler := NewAccountHandler(cfg.Users, cfg.Sessions, errs, cfg.Logger, cfg.GitHub != nil)
	apiHandler := NewAPIHandler(cfg.Users, cfg.Notes, cfg.Tokens, cfg.Logger)

	limit := func(scope string, onLimited http.HandlerFunc) func(http.Handler) http.Handler {
		return middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:    cfg.Logger,
			Limiter:   cfg.Limiter,
			Recorder:  cfg.Recorder,
			Enabled:   cfg.RateLimit.Enabled,
			Scope:     scope,
			PerMinute: cfg.RateLimit.PerMinute,
			Burst:     cfg.RateLimit.Burst,
			OnLimited: onLimited,
		})
	}
	limitedPage := func(w http.ResponseWriter, r *http.Request) {
		errs.Page(w, r, http.StatusTooManyRequests, msgTooManyRequests)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger, cfg.Recorder))
	r.Use(middleware.Recoverer(cfg.Logger, errs.Internal))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}
	r.Use(middleware.MethodOverride(errs.FormParseFailed))

	// Probes and metrics (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// JSON API authenticated with tokens
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))

		r.With(limit(scopeAPIAuth, nil)).Post("/auth", apiHandler.Auth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(middleware.TokenConfig{
				Logger: cfg.Logger,
				Tokens: cfg.Tokens,
				Users:  cfg.Users,
			}))
			r.Get("/notes", apiHandler.ListNotes)
			r.Post("/notes", apiHandler.CreateNote)
		})
	})

	// Browser pages authenticated with the session cookie
	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(middleware.SessionConfig{
			Logger:   cfg.Logger,
			Sessions: cfg.Sessions,
			Users:    cfg.Users,
			OnError:  errs.SessionLookupFailed,
		}))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RedirectIfUser)
			r.Get("/register", accountHandler.RegisterForm)
			r.With(limit(scopeRegister, limitedPage)).Post("/register", accountHandler.Register)
			r.Get("/login", accountHandler.LoginForm)
			r.With(limit(scopeLogin, limitedPage)).Post("/login", accountHandler.Login)
		})

		if cfg.GitHub != nil {
			oauthHandler := NewOAuthHandler(cfg.GitHub, cfg.Users, cfg.Sessions, errs, cfg.Logger)
			r.Get("/auth/github", oauthHandler.Start)
			r.Get("/auth/github/callback", oauthHandler.Callback)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/", noteHandler.Index)
			r.Get("/logout", accountHandler.Logout)
			r.Get("/notes/new", noteHandler.New)
			r.Post("/notes", noteHandler.Create)
			r.Get("/notes/{id}", noteHandler.Show)
			r.Get("/notes/{id}/edit", noteHandler.Edit)
			r.Patch("/notes/{id}", noteHandler.Update)
			r.Delete("/notes/{id}", noteHandler.Delete)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
