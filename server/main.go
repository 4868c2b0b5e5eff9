package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/zhaobenny/timeslice/internal/auth"
	"github.com/zhaobenny/timeslice/internal/config"
	"github.com/zhaobenny/timeslice/internal/database"
	"github.com/zhaobenny/timeslice/internal/export"
	"github.com/zhaobenny/timeslice/internal/pipeline"
	"github.com/zhaobenny/timeslice/server/internal/handlers"
	"github.com/zhaobenny/timeslice/server/internal/middleware"
	"github.com/zhaobenny/timeslice/server/internal/templates"
	"golang.org/x/time/rate"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Load configuration from file and environment
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open session database
	sessionDB, err := database.Open(cfg.Server.SessionDB)
	if err != nil {
		logger.Error("failed to open session database", "error", err)
		os.Exit(1)
	}
	defer sessionDB.Close()

	if err := sessionDB.MigrateSessions(context.Background()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Setup session manager with SQLite store
	sessionMgr := scs.New()
	sessionMgr.Store = sqlite3store.New(sessionDB.DB)
	sessionMgr.Lifetime = 7 * 24 * time.Hour
	sessionMgr.Cookie.Secure = false // Set to true in production with HTTPS
	sessionMgr.Cookie.SameSite = http.SameSiteLaxMode

	// Parse templates
	tmpl, err := templates.Parse()
	if err != nil {
		logger.Error("failed to parse templates", "error", err)
		os.Exit(1)
	}

	store := handlers.NewStore(cfg.OutputPath)
	if err := store.Reload(); err != nil {
		logger.Warn("no document loaded", "path", cfg.OutputPath, "error", err)
	}

	rebuild := func(ctx context.Context) (*export.Document, error) {
		doc, _, err := pipeline.BuildConfig(ctx, cfg, logger)
		return doc, err
	}
	rebuilder := handlers.NewRebuildDebouncer(rebuild, store, cfg.Server.RebuildDelay, logger)

	authMiddleware := auth.NewMiddleware(cfg.Server.PasswordHash, cfg.Server.APIKeyHash, sessionMgr)
	h := handlers.New(store, rebuilder, sessionMgr, authMiddleware, tmpl, logger)

	// Rate limit login attempts more tightly than the rest
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst, cfg.Server.TrustProxy)
	loginLimiter := middleware.NewIPRateLimiter(rate.Every(time.Minute/10), 5, cfg.Server.TrustProxy)

	// Setup routes
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/health", h.Health)
	mux.Handle("/login", loginLimiter.LimitFunc(h.Login))
	mux.HandleFunc("/logout", h.Logout)

	// Protected routes (session-based)
	mux.Handle("/", authMiddleware.RequireAuth(http.HandlerFunc(h.Index)))
	mux.Handle("/data.json", authMiddleware.RequireAuth(http.HandlerFunc(h.DataJSON)))
	mux.Handle("/api/histogram", authMiddleware.RequireAuth(http.HandlerFunc(h.Histogram)))
	mux.Handle("/api/prefs", authMiddleware.RequireAuth(http.HandlerFunc(h.PrefsHandler)))

	// Session or API key
	mux.Handle("/api/rebuild", authMiddleware.RequireAPIKey(http.HandlerFunc(h.Rebuild)))

	// Wrap with session, rate limit and security middleware
	handler := middleware.SecurityHeaders(limiter.Limit(sessionMgr.LoadAndSave(mux)))

	logger.Info("starting timeslice-server", "addr", cfg.Server.Addr, "document", cfg.OutputPath)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
