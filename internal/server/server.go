package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tastebook/apiserver/config"
	"github.com/tastebook/apiserver/internal/db"
	"github.com/tastebook/apiserver/internal/events"
	"github.com/tastebook/apiserver/internal/handlers"
	"github.com/tastebook/apiserver/internal/services"
	"github.com/tastebook/apiserver/internal/storage"
	"github.com/tastebook/apiserver/internal/store"
	"github.com/tastebook/apiserver/types"
	"go.uber.org/zap"
)

const migrationsURL = "file://internal/db/migrations"

// Server wraps the HTTP server, router, and background consumers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *events.Bus
	photos     storage.PhotoStore
	logger     *zap.Logger
	cancel     context.CancelFunc
}

// New constructs a fully wired Server from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	if cfg.Database.AutoMigrate {
		if err := db.MigrateUp(cfg.Database, migrationsURL); err != nil {
			return nil, err
		}
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	photos, err := storage.FromConfig(ctx, cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if s3, ok := photos.(*storage.S3Store); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("ensure photo bucket failed: %w", err)
		}
	}
	logger.Info("photo storage ready", zap.String("backend", photos.Name()))

	bus, err := events.FromConfig(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	tagRepo := store.NewTagRepository(dbConn)
	recipeRepo := store.NewRecipeRepository(dbConn)

	userService := services.NewUserService(userRepo, logger)
	recipeService := services.NewRecipeService(recipeRepo, tagRepo, bus, logger)

	if err := userService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("admin bootstrap failed: %w", err)
	}

	sessions := handlers.NewSessions(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.SessionTTLHours)*time.Hour,
		cfg.IsProduction(),
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.CORSOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}),
		sessions.AuthOptional,
	)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Healthz)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, sessions, logger)
		})
		r.Route("/recipes", func(r chi.Router) {
			handlers.RecipeRouter(r, recipeService, logger)
		})
		r.Route("/uploads", func(r chi.Router) {
			handlers.UploadRouter(r, photos, logger)
		})
	})

	if local, ok := photos.(*storage.LocalStore); ok {
		router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(local.Dir()))))
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	consumerCtx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
		photos:     photos,
		logger:     logger,
		cancel:     cancel,
	}
	go srv.consumeActivity(consumerCtx)

	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown, stopping the activity consumer
// and draining in-flight requests.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	if s.bus != nil {
		_ = s.bus.Close()
	}
	if closer, ok := s.photos.(io.Closer); ok {
		_ = closer.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = s.logger.Sync()
	return err
}

// consumeActivity logs recipe activity events. It is the hook for
// future feed/notification features; with no broker configured the
// subscription blocks until shutdown.
func (s *Server) consumeActivity(ctx context.Context) {
	err := s.bus.Subscribe(ctx, events.ActivityChannel, func(ctx context.Context, msg events.Message) error {
		var event types.ActivityEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Warn("malformed activity event", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		s.logger.Info("recipe activity",
			zap.String("type", event.Type),
			zap.Int("recipe_id", event.RecipeID),
			zap.Int("actor_id", event.ActorID),
			zap.String("name", event.Name),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("activity consumer stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
