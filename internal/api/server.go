// Package api provides the read-only reporting HTTP server over the fact
// store. It never writes: the pipeline is the only writer, and the fact
// schema exposed here is a public read contract.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/invoicepipe/invoicepipe/internal/config"
	"github.com/invoicepipe/invoicepipe/internal/store"
)

// Reports is the query surface the server needs from the store.
type Reports interface {
	TopCustomers(ctx context.Context, limit int) ([]store.CustomerSales, error)
	SalesByPeriod(ctx context.Context, period string, start, end time.Time) ([]store.PeriodSales, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the reporting API.
type Server struct {
	reports Reports
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(reports Reports, cfg *config.ServerConfig) *Server {
	s := &Server{
		reports: reports,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware(cfg.RequestTimeout)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware(requestTimeout time.Duration) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(requestTimeout))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/sales/customers", s.handleTopCustomers)
		r.Get("/sales/time", s.handleSalesByPeriod)
	})
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
