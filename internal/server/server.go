// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides which URL patterns map to
// which handler, what middleware runs on which routes, and how the server
// starts and stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go builds the long-lived dependencies (store, token verifier,
// mailer) and hands them over in Deps. New wires them:
//
//	Deps.Store    → ProfileService, PostService, ActivityService → handlers
//	Deps.Mailer   → JoinRequestService → JoinRequestHandler
//	Deps.Verifier → RequireAuth / OptionalAuth middleware
//
// The server never opens its own store; it only closes the one it was
// given, once, at shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/collabgrow/collabgrow/internal/auth"
	"github.com/collabgrow/collabgrow/internal/config"
	"github.com/collabgrow/collabgrow/internal/handler"
	"github.com/collabgrow/collabgrow/internal/mail"
	"github.com/collabgrow/collabgrow/internal/middleware"
	"github.com/collabgrow/collabgrow/internal/repository"
	"github.com/collabgrow/collabgrow/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Deps are the dependencies the server is built from. All are required.
type Deps struct {
	Store    repository.Store
	Verifier auth.TokenVerifier
	Mailer   mail.Mailer
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store from the moment New succeeds. Run closes it
// after the HTTP server has drained, so no in-flight request sees a
// closed connection.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	store   repository.Store
	limiter *middleware.RateLimiter
}

// New wires services, handlers and routes. The store must already be
// connected and pinged.
func New(cfg config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("server: store is required")
	case deps.Verifier == nil:
		return nil, errors.New("server: token verifier is required")
	case deps.Mailer == nil:
		return nil, errors.New("server: mailer is required")
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   deps.Store,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	s.setupRoutes(deps)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /                              → liveness text
// GET  /healthz                       → store ping
// POST /submit                        → upsert profile          (optional auth)
// GET  /profile/{email}               → profile by email
// GET  /me                            → caller's profile        (auth)
// GET  /api/posts                     → list posts
// POST /api/posts                     → create post             (auth)
// GET  /api/posts/{id}                → get post
// PUT  /api/posts/{id}                → update post             (auth, author)
// POST /api/posts/{id}/like           → like                    (auth, limited)
// GET  /api/posts/{id}/comments       → list comments
// POST /api/posts/{id}/comments       → comment                 (auth, limited)
// POST /api/posts/{id}/collaborators  → join as collaborator    (auth, limited)
// POST /api/join-request              → email the author        (optional auth, limited)
// GET  /api/activity                  → recent activity
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print it. RealIP runs before the
// rate limiter, which keys anonymous callers by IP. Timeout bounds every
// store and mail call through the request context.
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORSOrigins))
	if s.config.RequestTimeout > 0 {
		s.router.Use(chimiddleware.Timeout(s.config.RequestTimeout))
	}

	profileService := service.NewProfileService(deps.Store, s.logger)
	postService := service.NewPostService(deps.Store, deps.Store, deps.Store, s.logger)
	joinService := service.NewJoinRequestService(deps.Mailer, deps.Store, s.logger)
	activityService := service.NewActivityService(deps.Store, s.logger)

	health := handler.NewHealthHandler(deps.Store, s.logger)
	profiles := handler.NewProfileHandler(profileService, s.logger)
	posts := handler.NewPostHandler(postService, s.logger)
	joins := handler.NewJoinRequestHandler(joinService, s.logger)
	activity := handler.NewActivityHandler(activityService, s.logger)

	requireAuth := auth.RequireAuth(deps.Verifier, s.logger)
	optionalAuth := auth.OptionalAuth(deps.Verifier, s.logger)

	s.router.Get("/", health.HandleRoot)
	s.router.Get("/healthz", health.HandleHealthz)

	s.router.With(optionalAuth).Post("/submit", profiles.HandleSubmit)
	s.router.Get("/profile/{email}", profiles.HandleGetByEmail)
	s.router.With(requireAuth).Get("/me", profiles.HandleMe)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/posts", posts.HandleList)
		r.Get("/posts/{id}", posts.HandleGet)
		r.Get("/posts/{id}/comments", posts.HandleListComments)
		r.Get("/activity", activity.HandleRecent)

		r.With(optionalAuth, s.limiter.Middleware).Post("/join-request", joins.HandleRelay)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/posts", posts.HandleCreate)
			r.Put("/posts/{id}", posts.HandleUpdate)

			// Counter mutations are throttled per identity.
			r.Group(func(r chi.Router) {
				r.Use(s.limiter.Middleware)
				r.Post("/posts/{id}/like", posts.HandleLike)
				r.Post("/posts/{id}/comments", posts.HandleComment)
				r.Post("/posts/{id}/collaborators", posts.HandleCollaborate)
			})
		})
	})
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Stop()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.Close(closeCtx); err != nil {
			s.logger.Error("failed to close store", slog.String("error", err.Error()))
		}
	}()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.config.Port, err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("store", s.config.StoreDriver),
		)
		serverErrors <- srv.Serve(ln)
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
