// Package server is the composition root: it opens the database, picks the
// image store, builds services and handlers, and mounts them on a chi
// router.
//
// ROUTES:
//
//	POST   /api/user/create/                      register
//	POST   /api/user/token/                       obtain token
//	GET    /api/user/me/                          profile            (auth)
//	PATCH  /api/user/me/                          update profile     (auth)
//	*      /api/recipe/recipes/...                recipe CRUD        (auth)
//	*      /api/recipe/tags/...                   tag CRUD           (auth)
//	*      /api/recipe/ingredients/...            ingredient CRUD    (auth)
//	GET    /auth/github/login, /auth/github/callback  (when configured)
//	POST   /auth/logout
//	GET    /healthz, /metrics, /media/*
//
// Trailing slashes are optional on every route.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/handler"
	"github.com/sakif/recipe-api/internal/middleware"
	"github.com/sakif/recipe-api/internal/model"
	sqliteRepo "github.com/sakif/recipe-api/internal/repository/sqlite"
	"github.com/sakif/recipe-api/internal/service"
	"github.com/sakif/recipe-api/internal/storage"
	"github.com/sakif/recipe-api/internal/storage/local"
	s3store "github.com/sakif/recipe-api/internal/storage/s3"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = time.Minute
)

// Server owns the database connection and closes it on shutdown.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	images  storage.ImageStore
	metrics *middleware.Metrics
	limiter *middleware.RateLimiter // nil when rate limiting is off
}

// New opens the database and image store and builds the router. The JWT
// secret must be set; config.Validate is expected to have passed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	if cfg.DB.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening image store: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		images:  images,
		metrics: middleware.NewMetrics(),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, s.metrics, logger)
	}

	s.setupRoutes(tokens)
	return s, nil
}

func newImageStore(ctx context.Context, cfg config.Config) (storage.ImageStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
	case "local":
		return local.New(cfg.Storage.MediaDir, cfg.Storage.MediaURL)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func (s *Server) setupRoutes(tokens *auth.TokenService) {
	r := s.router

	// Metrics sit outside the rate limiter so throttled requests are counted.
	r.Use(chimiddleware.RequestID)
	// Forwarded headers are client-controlled unless a proxy rewrites them.
	if s.config.Server.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logger(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	// An empty origin list would make rs/cors allow everyone, so CORS is
	// only mounted when origins are configured.
	if len(s.config.Server.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   s.config.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	if s.config.Storage.Backend == "local" && strings.HasPrefix(s.config.Storage.MediaURL, "/") {
		prefix := strings.TrimSuffix(s.config.Storage.MediaURL, "/")
		files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(s.config.Storage.MediaDir)))
		r.Handle(prefix+"/*", noDirListing(files))
	}

	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	recipeService := service.NewRecipeService(s.db, s.images, s.config.Storage.MaxImageDimension, s.logger)
	tagService := service.NewLabelService(s.db, model.KindTag, s.logger)
	ingredientService := service.NewLabelService(s.db, model.KindIngredient, s.logger)

	var github handler.GitHubAuthenticator
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), s.config.Auth.SecureCookie, s.logger)
	recipeHandler := handler.NewRecipeHandler(recipeService, int64(s.config.Storage.MaxUploadMB)<<20, s.logger)
	tagHandler := handler.NewLabelHandler(tagService, s.logger)
	ingredientHandler := handler.NewLabelHandler(ingredientService, s.logger)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Route("/api/user", func(r chi.Router) {
			r.Post("/create", authHandler.HandleRegister)
			r.Post("/token", authHandler.HandleToken)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Get("/me", authHandler.HandleMe)
				r.Patch("/me", authHandler.HandleUpdateMe)
				r.Put("/me", authHandler.HandleUpdateMe)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			if github != nil {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Route("/api/recipe", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Route("/recipes", func(r chi.Router) {
				r.Get("/", recipeHandler.HandleList)
				r.Post("/", recipeHandler.HandleCreate)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", recipeHandler.HandleGet)
					r.Put("/", recipeHandler.HandleUpdate)
					r.Patch("/", recipeHandler.HandlePatch)
					r.Delete("/", recipeHandler.HandleDelete)
					r.Post("/upload-image", recipeHandler.HandleUploadImage)
					r.Post("/image", recipeHandler.HandleUploadImage)
				})
			})

			mountLabels(r, "/tags", tagHandler)
			mountLabels(r, "/ingredients", ingredientHandler)
		})
	})
}

func mountLabels(r chi.Router, pattern string, h *handler.LabelHandler) {
	r.Route(pattern, func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdate)
			r.Patch("/", h.HandlePatch)
			r.Delete("/", h.HandleDelete)
		})
	})
}

// noDirListing hides directory indexes under the media root.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until ctx is cancelled, then shuts down gracefully: stop
// accepting connections, give in-flight requests shutdownTimeout to
// finish, close the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	if s.limiter != nil {
		go s.limiter.Run(cleanupInterval, stopCleanup)
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.DB.Path),
			slog.String("storage", s.config.Storage.Backend),
			slog.Bool("github_login", s.config.GitHub.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
