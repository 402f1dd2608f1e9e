// Package config loads Tradewind configuration from TOML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/opensupply/tradewind/internal/domain"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADEWIND_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the defaults
// plus environment overrides apply.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the components cannot start with.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown repository driver: %q", cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache type: %q", cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("unknown event bus type: %q", cfg.EventBus.Type)
	}

	if cfg.Scoring.DecayRate < 0 {
		return fmt.Errorf("scoring decay_rate must not be negative: %f", cfg.Scoring.DecayRate)
	}
	if cfg.Anomaly.ZScoreThreshold < 0 {
		return fmt.Errorf("anomaly z_score_threshold must not be negative: %f", cfg.Anomaly.ZScoreThreshold)
	}

	return nil
}

// applyEnvOverrides reads well-known TRADEWIND_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *domain.Config) {
	// ── Server ──
	setStr(&cfg.Server.Host, "TRADEWIND_SERVER_HOST")
	setInt(&cfg.Server.Port, "TRADEWIND_SERVER_PORT")
	setInt(&cfg.Server.ReadTimeout, "TRADEWIND_SERVER_READ_TIMEOUT")
	setInt(&cfg.Server.WriteTimeout, "TRADEWIND_SERVER_WRITE_TIMEOUT")

	// ── Repository ──
	setStr(&cfg.Repository.Driver, "TRADEWIND_REPOSITORY_DRIVER")
	setStr(&cfg.Repository.SQLitePath, "TRADEWIND_REPOSITORY_SQLITE_PATH")
	setStr(&cfg.Repository.PostgresHost, "TRADEWIND_POSTGRES_HOST")
	setInt(&cfg.Repository.PostgresPort, "TRADEWIND_POSTGRES_PORT")
	setStr(&cfg.Repository.PostgresUser, "TRADEWIND_POSTGRES_USER")
	setStr(&cfg.Repository.PostgresPassword, "TRADEWIND_POSTGRES_PASSWORD")
	setStr(&cfg.Repository.PostgresDB, "TRADEWIND_POSTGRES_DB")
	setStr(&cfg.Repository.PostgresSSLMode, "TRADEWIND_POSTGRES_SSL_MODE")
	setInt(&cfg.Repository.MaxOpenConns, "TRADEWIND_POSTGRES_MAX_OPEN_CONNS")
	setInt(&cfg.Repository.MaxIdleConns, "TRADEWIND_POSTGRES_MAX_IDLE_CONNS")

	// ── Cache ──
	setStr(&cfg.Cache.Type, "TRADEWIND_CACHE_TYPE")
	setInt(&cfg.Cache.LocalMaxSize, "TRADEWIND_CACHE_LOCAL_MAX_SIZE")
	setDuration(&cfg.Cache.LocalTTL, "TRADEWIND_CACHE_LOCAL_TTL")
	setStr(&cfg.Cache.RedisAddr, "TRADEWIND_REDIS_ADDR")
	setStr(&cfg.Cache.RedisPassword, "TRADEWIND_REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "TRADEWIND_REDIS_DB")
	setBool(&cfg.Cache.EnableTwoPhase, "TRADEWIND_CACHE_TWO_PHASE")
	setDuration(&cfg.Cache.BenchmarkTTL, "TRADEWIND_CACHE_BENCHMARK_TTL")

	// ── Event bus ──
	setStr(&cfg.EventBus.Type, "TRADEWIND_EVENT_BUS_TYPE")
	setInt(&cfg.EventBus.ChannelBufferSize, "TRADEWIND_EVENT_BUS_BUFFER_SIZE")
	setStr(&cfg.EventBus.NATSUrl, "TRADEWIND_NATS_URL")
	setStr(&cfg.EventBus.NATSToken, "TRADEWIND_NATS_TOKEN")
	setInt(&cfg.EventBus.NATSMaxReconnects, "TRADEWIND_NATS_MAX_RECONNECTS")
	setInt(&cfg.EventBus.NATSReconnectWait, "TRADEWIND_NATS_RECONNECT_WAIT")

	// ── Analytics policy ──
	setFloat64(&cfg.Scoring.MaxDistanceMiles, "TRADEWIND_SCORING_MAX_DISTANCE_MILES")
	setFloat64(&cfg.Scoring.DecayRate, "TRADEWIND_SCORING_DECAY_RATE")
	setFloat64(&cfg.Scoring.ProximityWeight, "TRADEWIND_SCORING_PROXIMITY_WEIGHT")
	setFloat64(&cfg.Scoring.ReliabilityWeight, "TRADEWIND_SCORING_RELIABILITY_WEIGHT")
	setFloat64(&cfg.Scoring.DefaultReliability, "TRADEWIND_SCORING_DEFAULT_RELIABILITY")
	setFloat64(&cfg.Anomaly.ZScoreThreshold, "TRADEWIND_ANOMALY_Z_SCORE_THRESHOLD")
	setInt(&cfg.Anomaly.MinSamples, "TRADEWIND_ANOMALY_MIN_SAMPLES")
	setInt(&cfg.Anomaly.VolatilityWindowDays, "TRADEWIND_ANOMALY_VOLATILITY_WINDOW_DAYS")

	// ── Worker ──
	setBool(&cfg.Worker.Enabled, "TRADEWIND_WORKER_ENABLED")
	setInt(&cfg.Worker.MaxAlertsPerWindow, "TRADEWIND_WORKER_MAX_ALERTS_PER_WINDOW")
	setDuration(&cfg.Worker.AlertWindow, "TRADEWIND_WORKER_ALERT_WINDOW")

	// ── Observability ──
	setStr(&cfg.Logging.Level, "TRADEWIND_LOG_LEVEL")
	setStr(&cfg.Logging.Format, "TRADEWIND_LOG_FORMAT")
	setBool(&cfg.Tracing.Enabled, "TRADEWIND_TRACING_ENABLED")
	setStr(&cfg.Tracing.ServiceName, "TRADEWIND_TRACING_SERVICE_NAME")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
