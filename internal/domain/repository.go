// Package domain defines the core interfaces and types for Tradewind.
package domain

import (
	"context"
	"time"
)

// Repository defines the persistence capability the analytics core reads
// from. The core issues read queries only; the Save* methods exist for the
// ingestion surface and seed tooling. Implementations own pooling, retries
// and transaction boundaries.
type Repository interface {
	// Vendor operations. ListActiveVendors returns only vendors that are
	// active and have known coordinates, optionally filtered by a
	// reliability floor.
	ListActiveVendors(ctx context.Context, minReliability *float64) ([]*Vendor, error)
	GetVendor(ctx context.Context, vendorID string) (*Vendor, error)
	SaveVendor(ctx context.Context, v *Vendor) error

	// Market operations
	GetMarket(ctx context.Context, marketID string) (*GeographicMarket, error)
	GetMarketByRegion(ctx context.Context, regionName string) (*GeographicMarket, error)
	SaveMarket(ctx context.Context, m *GeographicMarket) error

	// Distribution center operations
	ListActiveCenters(ctx context.Context) ([]*DistributionCenter, error)
	SaveCenter(ctx context.Context, c *DistributionCenter) error

	// Pricing operations; ListPricing returns rows ordered by recency,
	// newest first.
	ListPricing(ctx context.Context, f PricingFilter) ([]*PricingObservation, error)
	SavePricing(ctx context.Context, p *PricingObservation) error

	// Price history; newest first, capped at limit (0 = no cap).
	ListPriceHistory(ctx context.Context, skuID, vendorID string, limit int) ([]*PricePoint, error)
	SavePricePoint(ctx context.Context, p *PricePoint) error

	// CountDistinctSKUs counts distinct SKUs matching the filter.
	CountDistinctSKUs(ctx context.Context, f PricingFilter) (int, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `toml:"driver"`

	// SQLite specific
	SQLitePath string `toml:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     int    `toml:"postgres_port"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresPassword string `toml:"postgres_password"`
	PostgresDB       string `toml:"postgres_db"`
	PostgresSSLMode  string `toml:"postgres_ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}
