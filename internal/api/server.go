package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensupply/tradewind/internal/alerts"
	"github.com/opensupply/tradewind/internal/benchmark"
	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/proximity"
	"github.com/opensupply/tradewind/internal/risk"
	"github.com/opensupply/tradewind/internal/variance"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// ServerDeps bundles the engines the API surface exposes.
type ServerDeps struct {
	Repo        domain.Repository
	Cache       domain.Cache
	Bus         domain.EventBus
	Scorer      *proximity.Scorer
	Detector    *variance.Detector
	Benchmarker *benchmark.Benchmarker
	Assessor    *risk.Assessor
	Alerts      *alerts.Engine

	BenchmarkTTL time.Duration
	Version      string
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps ServerDeps) *Server {
	handler := NewHandler(deps.Repo, deps.Cache, deps.Bus, deps.Scorer,
		deps.Detector, deps.Benchmarker, deps.Assessor, deps.Alerts,
		deps.BenchmarkTTL, deps.Version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Ingestion
	router.Post("/vendors", handler.CreateVendor)
	router.Get("/vendors/{id}", handler.GetVendor)
	router.Post("/markets", handler.CreateMarket)
	router.Post("/centers", handler.CreateCenter)
	router.Post("/pricing", handler.RecordPricing)

	// Proximity scoring
	router.Get("/proximity/vendors", handler.ProximityVendors)
	router.Get("/proximity/markets/{id}", handler.ProximityMarket)
	router.Get("/proximity/centers", handler.ProximityCenters)

	// Variance analytics
	router.Get("/anomalies", handler.RegionalAnomalies)
	router.Get("/vendors/{id}/outliers", handler.VendorOutliers)
	router.Get("/volatility/{sku}", handler.Volatility)

	// Regional benchmarks
	router.Get("/benchmarks", handler.GetBenchmark)
	router.Post("/benchmarks/compare", handler.CompareRegions)
	router.Get("/benchmarks/categories", handler.CategoryBenchmarks)

	// Risk assessment
	router.Get("/vendors/{id}/risk", handler.VendorRisk)
	router.Get("/regions/{region}/risk", handler.RegionRisk)
	router.Post("/vendors/optimal", handler.OptimalVendors)

	// Alert rule management
	router.Get("/alerts/rules", handler.ListAlertRules)
	router.Post("/alerts/rules", handler.CreateAlertRule)
	router.Post("/alerts/rules/reload", handler.ReloadAlertRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
