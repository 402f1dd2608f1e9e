package repository

// Schema definitions for the Tradewind store.
// Compatible with both SQLite and PostgreSQL. Prices are stored as TEXT
// to preserve fixed-precision decimal values exactly.

const schemaVendors = `
CREATE TABLE IF NOT EXISTS vendors (
    vendor_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT,
    city TEXT,
    state TEXT,
    country TEXT,
    latitude REAL,
    longitude REAL,
    reliability_score REAL,
    avg_lead_time_days INTEGER,
    min_order_value REAL,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vendors_active ON vendors(is_active);
CREATE INDEX IF NOT EXISTS idx_vendors_reliability ON vendors(reliability_score);
`

const schemaMarkets = `
CREATE TABLE IF NOT EXISTS markets (
    market_id TEXT PRIMARY KEY,
    region_name TEXT NOT NULL,
    region_code TEXT,
    country_code TEXT,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    bbox_north REAL,
    bbox_south REAL,
    bbox_east REAL,
    bbox_west REAL,
    cost_of_living_index REAL NOT NULL DEFAULT 1.0,
    regional_price_multiplier REAL NOT NULL DEFAULT 1.0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_markets_region ON markets(region_name);
`

const schemaCenters = `
CREATE TABLE IF NOT EXISTS distribution_centers (
    center_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT,
    market_id TEXT,
    vendor_id TEXT,
    city TEXT,
    state TEXT,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    service_radius_miles REAL NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_centers_active ON distribution_centers(is_active);
`

const schemaPricing = `
CREATE TABLE IF NOT EXISTS pricing_observations (
    id TEXT PRIMARY KEY,
    sku_id TEXT NOT NULL,
    vendor_id TEXT NOT NULL,
    market_id TEXT,
    price TEXT NOT NULL,
    currency TEXT NOT NULL,
    region TEXT,
    category TEXT,
    effective_date TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pricing_sku ON pricing_observations(sku_id);
CREATE INDEX IF NOT EXISTS idx_pricing_vendor ON pricing_observations(vendor_id);
CREATE INDEX IF NOT EXISTS idx_pricing_region_sku ON pricing_observations(region, sku_id);
CREATE INDEX IF NOT EXISTS idx_pricing_category ON pricing_observations(category);
CREATE INDEX IF NOT EXISTS idx_pricing_effective ON pricing_observations(effective_date);
`

const schemaPriceHistory = `
CREATE TABLE IF NOT EXISTS price_history (
    id TEXT PRIMARY KEY,
    sku_id TEXT NOT NULL,
    vendor_id TEXT NOT NULL,
    price TEXT NOT NULL,
    currency TEXT NOT NULL,
    region TEXT,
    recorded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_sku ON price_history(sku_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_history_vendor ON price_history(sku_id, vendor_id, recorded_at);
`

// AllSchemas returns all table schemas in creation order.
func AllSchemas() []string {
	return []string{
		schemaVendors,
		schemaMarkets,
		schemaCenters,
		schemaPricing,
		schemaPriceHistory,
	}
}
