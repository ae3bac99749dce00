package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leocder07/tavily-stock-research-sub002/internal/config"
	"github.com/leocder07/tavily-stock-research-sub002/internal/dashboard"
)

// Server is the UI-facing HTTP server.
type Server struct {
	cfg    config.ServerConfig
	core   *dashboard.Core
	logger *slog.Logger

	router     chi.Router
	httpServer *http.Server
	onboarding *onboardingStore
}

// New creates a Server over the given core.
func New(cfg config.ServerConfig, core *dashboard.Core, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		core:       core,
		logger:     logger,
		router:     chi.NewRouter(),
		onboarding: newOnboardingStore(cfg.OnboardingFile),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(s.renderCounter)
}

// renderCounter records one render per request under the route pattern.
func (s *Server) renderCounter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
			s.core.RecordRender(r.Method + " " + pattern)
		}
	})
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/market", func(r chi.Router) {
			r.Get("/overview", s.handleMarketOverview)
			r.Get("/quotes", s.handleMarketQuotes)
			r.Get("/news", s.handleMarketNews)
			r.Post("/select", s.handleMarketSelect)
		})

		r.Get("/search", s.handleSearch)
		r.Get("/search/recent", s.handleRecentSearches)

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", s.handleListPortfolios)
			r.Post("/", s.handleCreatePortfolio)
			r.Get("/{id}", s.handleGetPortfolio)
			r.Put("/{id}", s.handleUpdatePortfolio)
			r.Delete("/{id}", s.handleDeletePortfolio)
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.handleWatchlist)
			r.Post("/", s.handleWatchlistAdd)
			r.Delete("/{symbol}", s.handleWatchlistRemove)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/", s.handleStartAnalysis)
			r.Get("/jobs", s.handleAnalysisJobs)
			r.Get("/jobs/{id}", s.handleAnalysisJob)
		})

		r.Get("/signals", s.handleSignals)
		r.Get("/alerts", s.handleAlerts)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleNotifications)
			r.Post("/read", s.handleNotificationsRead)
		})

		r.Get("/onboarding", s.handleGetOnboarding)
		r.Put("/onboarding", s.handlePutOnboarding)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
