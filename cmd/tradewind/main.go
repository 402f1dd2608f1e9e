// Tradewind - geospatial risk and pricing analytics for supply networks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensupply/tradewind/internal/alerts"
	"github.com/opensupply/tradewind/internal/api"
	"github.com/opensupply/tradewind/internal/benchmark"
	"github.com/opensupply/tradewind/internal/bus"
	"github.com/opensupply/tradewind/internal/cache"
	"github.com/opensupply/tradewind/internal/config"
	"github.com/opensupply/tradewind/internal/proximity"
	"github.com/opensupply/tradewind/internal/repository"
	"github.com/opensupply/tradewind/internal/risk"
	"github.com/opensupply/tradewind/internal/variance"
	"github.com/opensupply/tradewind/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "tradewind.toml", "path to TOML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting tradewind",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize analytics engines
	scorer := proximity.NewScorer(repo, cfg.Scoring)
	detector := variance.NewDetector(repo, cfg.Anomaly)
	benchmarker := benchmark.NewBenchmarker(repo)
	assessor := risk.NewAssessor(repo, scorer, detector, benchmarker, cfg.Risk)
	slog.Info("analytics engines initialized",
		"max_distance_miles", cfg.Scoring.MaxDistanceMiles,
		"z_score_threshold", cfg.Anomaly.ZScoreThreshold,
	)

	// Initialize alert rule engine with the builtin rule set; rules can be
	// replaced at runtime via the API.
	engine, err := alerts.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize alert engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	if err := engine.LoadRules(alerts.BuiltinRules()); err != nil {
		slog.Error("failed to load builtin alert rules", "error", err)
		os.Exit(1)
	}
	slog.Info("alert engine initialized", "rules_count", engine.RulesCount())

	// Initialize async anomaly worker
	var anomalyWorker *worker.Worker
	if cfg.Worker.Enabled {
		anomalyWorker = worker.NewWorker(busImpl, cacheImpl, detector, engine, cfg.Worker)
		if err := anomalyWorker.Start(); err != nil {
			slog.Error("failed to start anomaly worker", "error", err)
		} else {
			slog.Info("anomaly worker started",
				"max_alerts_per_window", cfg.Worker.MaxAlertsPerWindow,
				"alert_window", cfg.Worker.AlertWindow,
			)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.ServerDeps{
		Repo:         repo,
		Cache:        cacheImpl,
		Bus:          busImpl,
		Scorer:       scorer,
		Detector:     detector,
		Benchmarker:  benchmarker,
		Assessor:     assessor,
		Alerts:       engine,
		BenchmarkTTL: cfg.Cache.BenchmarkTTL,
		Version:      Version,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("tradewind is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg.Server.Host, cfg.Server.Port, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the worker first so in-flight anomalies drain before the bus closes
	if anomalyWorker != nil {
		if err := anomalyWorker.Stop(); err != nil {
			slog.Error("failed to stop anomaly worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("tradewind shutdown complete")
}

func setupLogger(level, format string) {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func printBanner(host string, port int, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              🧭 TRADEWIND                 ║")
	fmt.Println("  ║   Geospatial Pricing & Risk Analytics     ║")
	fmt.Println("  ║      Know your markets. Price smart.      ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", host, port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /vendors                  - Register a vendor")
	fmt.Println("    POST /markets                  - Register a geographic market")
	fmt.Println("    POST /centers                  - Register a distribution center")
	fmt.Println("    POST /pricing                  - Record a pricing observation")
	fmt.Println("    GET  /proximity/vendors        - Vendors near a point")
	fmt.Println("    GET  /proximity/markets/{id}   - Vendors near a market")
	fmt.Println("    GET  /proximity/centers        - Distribution centers near a point")
	fmt.Println("    GET  /anomalies                - Regional pricing anomalies")
	fmt.Println("    GET  /vendors/{id}/outliers    - Vendor pricing outliers")
	fmt.Println("    GET  /volatility/{sku}         - SKU price volatility")
	fmt.Println("    GET  /benchmarks               - Regional pricing benchmark")
	fmt.Println("    POST /benchmarks/compare       - Compare regions")
	fmt.Println("    GET  /benchmarks/categories    - Per-category benchmarks")
	fmt.Println("    GET  /vendors/{id}/risk        - Vendor risk assessment")
	fmt.Println("    GET  /regions/{region}/risk    - Region risk assessment")
	fmt.Println("    POST /vendors/optimal          - Optimal vendor search")
	fmt.Println("    GET  /alerts/rules             - List alert rules")
	fmt.Println("    POST /alerts/rules             - Create an alert rule")
	fmt.Println("    POST /alerts/rules/reload      - Restore builtin alert rules")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
