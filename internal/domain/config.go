package domain

import (
	"time"
)

// Config holds the complete Tradewind configuration. Every scoring
// constant lives here as a named, overridable value: the weighting policy
// is configuration, not law.
type Config struct {
	// Server settings
	Server ServerConfig `toml:"server"`

	// Component configurations
	Repository RepositoryConfig `toml:"repository"`
	Cache      CacheConfig      `toml:"cache"`
	EventBus   EventBusConfig   `toml:"event_bus"`

	// Analytics policy
	Scoring ScoringConfig `toml:"scoring"`
	Anomaly AnomalyConfig `toml:"anomaly"`
	Risk    RiskWeights   `toml:"risk"`

	// Observability
	Logging LoggingConfig `toml:"logging"`
	Tracing TracingConfig `toml:"tracing"`

	// Worker settings
	Worker WorkerConfig `toml:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  int    `toml:"read_timeout"`  // seconds
	WriteTimeout int    `toml:"write_timeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// WorkerConfig holds async anomaly worker settings.
type WorkerConfig struct {
	Enabled bool `toml:"enabled"`

	// MaxAlertsPerWindow caps published alerts per (SKU, region).
	MaxAlertsPerWindow int           `toml:"max_alerts_per_window"`
	AlertWindow        time.Duration `toml:"alert_window"`
}

// ScoringConfig holds proximity scoring policy.
type ScoringConfig struct {
	// MaxDistanceMiles is the cutoff beyond which vendors score 0 and are
	// excluded from proximity results.
	MaxDistanceMiles float64 `toml:"max_distance_miles"`

	// DecayRate controls exponential distance decay:
	// score = exp(-DecayRate * distance).
	DecayRate float64 `toml:"decay_rate"`

	// Composite blend weights. ProximityWeight + ReliabilityWeight should
	// sum to 1 for a [0,1] composite.
	ProximityWeight   float64 `toml:"proximity_weight"`
	ReliabilityWeight float64 `toml:"reliability_weight"`

	// DefaultReliability substitutes for vendors with no reliability data.
	DefaultReliability float64 `toml:"default_reliability"`
}

// AnomalyConfig holds variance detection policy.
type AnomalyConfig struct {
	// ZScoreThreshold flags observations with |z| above it.
	ZScoreThreshold float64 `toml:"z_score_threshold"`

	// MinSamples is the smallest group eligible for z-scoring.
	MinSamples int `toml:"min_samples"`

	// VolatilityWindowDays bounds the history window for volatility.
	VolatilityWindowDays int `toml:"volatility_window_days"`
}

// RiskWeights holds every per-factor risk contribution constant. The
// defaults reproduce observed behavior; none of them is derived, so
// deployments tune them freely.
type RiskWeights struct {
	// Vendor factors
	ReliabilityMax         float64 `toml:"reliability_max"`          // (1-r) * this
	UnknownReliability     float64 `toml:"unknown_reliability"`      // flat, when no data
	ReliabilityFloor       float64 `toml:"reliability_floor"`        // recommendation trigger
	LeadTimeThresholdDays  int     `toml:"lead_time_threshold_days"` // risk starts above this
	LeadTimeMax            float64 `toml:"lead_time_max"`
	OutlierUnit            float64 `toml:"outlier_unit"` // per price outlier
	OutlierMax             float64 `toml:"outlier_max"`
	DistanceThresholdMiles float64 `toml:"distance_threshold_miles"`
	DistanceDivisor        float64 `toml:"distance_divisor"`
	DistanceMax            float64 `toml:"distance_max"`

	// Region factors
	MinVendors            int     `toml:"min_vendors"`
	ConcentrationUnit     float64 `toml:"concentration_unit"` // per missing vendor
	VolatilityCVThreshold float64 `toml:"volatility_cv_threshold"`
	VolatilityScale       float64 `toml:"volatility_scale"`
	VolatilityMax         float64 `toml:"volatility_max"`
	CostIndexThreshold    float64 `toml:"cost_index_threshold"`
	CostIndexScale        float64 `toml:"cost_index_scale"`
	DataQualityMinSamples int     `toml:"data_quality_min_samples"`
	DataQualityUnit       float64 `toml:"data_quality_unit"`

	// NoDataRegionScore is returned when a region has no pricing at all.
	NoDataRegionScore float64 `toml:"no_data_region_score"`

	// Level thresholds: score < LevelLowBelow is low, etc.
	LevelLowBelow      float64 `toml:"level_low_below"`
	LevelModerateBelow float64 `toml:"level_moderate_below"`
	LevelHighBelow     float64 `toml:"level_high_below"`
}

// DefaultScoringConfig returns the documented proximity defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MaxDistanceMiles:   500.0,
		DecayRate:          0.01,
		ProximityWeight:    0.6,
		ReliabilityWeight:  0.4,
		DefaultReliability: 0.5,
	}
}

// DefaultAnomalyConfig returns the documented anomaly defaults.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		ZScoreThreshold:      2.0,
		MinSamples:           3,
		VolatilityWindowDays: 30,
	}
}

// DefaultRiskWeights returns the documented risk policy defaults.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		ReliabilityMax:         30,
		UnknownReliability:     15,
		ReliabilityFloor:       0.7,
		LeadTimeThresholdDays:  14,
		LeadTimeMax:            20,
		OutlierUnit:            5,
		OutlierMax:             25,
		DistanceThresholdMiles: 200,
		DistanceDivisor:        20,
		DistanceMax:            20,

		MinVendors:            3,
		ConcentrationUnit:     15,
		VolatilityCVThreshold: 20,
		VolatilityScale:       1.25,
		VolatilityMax:         25,
		CostIndexThreshold:    1.2,
		CostIndexScale:        20,
		DataQualityMinSamples: 10,
		DataQualityUnit:       3,

		NoDataRegionScore: 75,

		LevelLowBelow:      25,
		LevelModerateBelow: 50,
		LevelHighBelow:     75,
	}
}

// LevelForScore maps a clamped risk score to its ordinal level.
func (w RiskWeights) LevelForScore(score float64) RiskLevel {
	switch {
	case score < w.LevelLowBelow:
		return RiskLow
	case score < w.LevelModerateBelow:
		return RiskModerate
	case score < w.LevelHighBelow:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// DefaultConfig returns a single-node default configuration:
// SQLite repository, in-memory cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./tradewind.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			BenchmarkTTL: 5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		Anomaly: DefaultAnomalyConfig(),
		Risk:    DefaultRiskWeights(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "tradewind",
		},
		Worker: WorkerConfig{
			Enabled:            true,
			MaxAlertsPerWindow: 10,
			AlertWindow:        time.Hour,
		},
	}
}

// DistributedConfig returns a multi-node configuration:
// PostgreSQL repository, two-phase Redis cache, NATS event bus.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:          "postgres",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresUser:    "tradewind",
		PostgresDB:      "tradewind",
		PostgresSSLMode: "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   10000,
		LocalTTL:       time.Minute,
		BenchmarkTTL:   5 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	return cfg
}
