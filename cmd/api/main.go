// Package main is the entrypoint for the notely web server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/cache"
	"github.com/notely/notely/internal/config"
	"github.com/notely/notely/internal/handler"
	"github.com/notely/notely/internal/metrics"
	"github.com/notely/notely/internal/middleware"
	"github.com/notely/notely/internal/oauth"
	"github.com/notely/notely/internal/repository"
	"github.com/notely/notely/internal/repository/memory"
	"github.com/notely/notely/internal/server"
	"github.com/notely/notely/internal/service"
	"github.com/notely/notely/internal/session"
	"github.com/notely/notely/internal/storage"
	"github.com/notely/notely/internal/view"
)

// store is what a storage backend provides to the services and probes.
type store interface {
	service.UserRepository
	service.NoteRepository
	Ping(ctx context.Context) error
}

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	srv, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"storage_backend", cfg.StorageBackend,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// closer releases a connection opened during build.
type closer struct {
	name string
	fn   func() error
}

// build connects every dependency and returns a server ready to run.
// Connections are closed by the server on shutdown, or right away when
// build fails.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (srv *server.Server, err error) {
	var closers []closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].fn()
			}
		}
	}()

	// Initialize storage backend
	var backend store
	switch cfg.StorageBackend {
	case config.BackendMemory:
		backend = memory.New()
		logger.Warn("using in-memory storage; data is lost on restart")
	default:
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, err
		}
		closers = append(closers, closer{"database", func() error { repo.Close(); return nil }})

		if err := repo.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			return nil, err
		}
		backend = repo
		logger.Info("connected to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))
	}

	// Initialize cache. Without Redis, limits are kept per process.
	var (
		limiter     middleware.IPLimiter
		cacheHealth handler.HealthChecker
	)
	if cfg.RedisURL != "" {
		cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithNamespace(cfg.RedisNamespace))
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return nil, err
		}
		closers = append(closers, closer{"redis", cacheClient.Close})
		limiter = cacheClient
		cacheHealth = cacheClient
		logger.Info("connected to Redis")
	} else {
		limiter = cache.NewLocalLimiter()
		logger.Warn("REDIS_URL not set; using in-process rate limiting")
	}

	// Initialize object storage
	var uploader storage.Uploader
	if cfg.UploadsEnabled() {
		s3, err := storage.NewS3Uploader(ctx, storage.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PublicURL:       cfg.S3PublicURL,
			MaxSize:         cfg.MaxImageSize,
		})
		if err != nil {
			return nil, err
		}
		uploader = s3
		logger.Info("image uploads enabled", slog.String("bucket", cfg.S3Bucket))
	}

	// Initialize OAuth
	var github oauth.Provider
	if cfg.GitHubEnabled() {
		github = oauth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL())
		logger.Info("GitHub login enabled")
	}

	views, err := view.New()
	if err != nil {
		return nil, err
	}

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	userService := service.NewUserService(backend, metricsRecorder)
	noteService := service.NewNoteService(backend, uploader, cfg.MaxImageSize, metricsRecorder)

	// Setup router
	r := handler.NewRouter(handler.RouterConfig{
		Logger:   logger,
		View:     views,
		Recorder: metricsRecorder,
		Metrics:  metricsRecorder,
		Users:    userService,
		Notes:    noteService,
		Sessions: session.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction()),
		Tokens:   auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL),
		GitHub:   github,
		Limiter:  limiter,
		RateLimit: handler.RateLimit{
			Enabled:   cfg.RateLimitAuthEnabled,
			PerMinute: cfg.RateLimitAuthPerMinute,
			Burst:     cfg.RateLimitAuthBurst,
		},
		DB:             backend,
		Cache:          cacheHealth,
		IsDevelopment:  cfg.IsDevelopment(),
		MaxBodySize:    cfg.MaxRequestBodySize,
		AllowedOrigins: cfg.GetCORSAllowedOrigins(),
	})

	// Create server
	srv = server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	for _, c := range closers {
		fn := c.fn
		srv.OnShutdown(c.name, func(context.Context) error { return fn() })
	}

	return srv, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
