// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opensupply/tradewind/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ListActiveVendors returns active vendors with known coordinates,
// optionally filtered by a reliability floor.
func (r *SQLRepository) ListActiveVendors(ctx context.Context, minReliability *float64) ([]*domain.Vendor, error) {
	query := `
		SELECT vendor_id, name, type, city, state, country,
			   latitude, longitude, reliability_score, avg_lead_time_days,
			   min_order_value, is_active, created_at, updated_at
		FROM vendors
		WHERE is_active = 1
		  AND latitude IS NOT NULL
		  AND longitude IS NOT NULL
	`
	args := []any{}
	if minReliability != nil {
		query += " AND reliability_score >= ?"
		args = append(args, *minReliability)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []*domain.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}

	return vendors, rows.Err()
}

// GetVendor retrieves a vendor by ID.
func (r *SQLRepository) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	if vendorID == "" {
		return nil, fmt.Errorf("%w: vendorID is required", ErrInvalidInput)
	}

	query := `
		SELECT vendor_id, name, type, city, state, country,
			   latitude, longitude, reliability_score, avg_lead_time_days,
			   min_order_value, is_active, created_at, updated_at
		FROM vendors
		WHERE vendor_id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), vendorID)
	v, err := scanVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// SaveVendor inserts or replaces a vendor record.
func (r *SQLRepository) SaveVendor(ctx context.Context, v *domain.Vendor) error {
	if v.VendorID == "" {
		return fmt.Errorf("%w: vendorID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	query := `
		INSERT INTO vendors (
			vendor_id, name, type, city, state, country,
			latitude, longitude, reliability_score, avg_lead_time_days,
			min_order_value, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vendor_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			city = excluded.city,
			state = excluded.state,
			country = excluded.country,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			reliability_score = excluded.reliability_score,
			avg_lead_time_days = excluded.avg_lead_time_days,
			min_order_value = excluded.min_order_value,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.VendorID, v.Name, v.Type, v.City, v.State, v.Country,
		v.Latitude, v.Longitude, v.ReliabilityScore, v.AvgLeadTimeDays,
		v.MinOrderValue, boolToInt(v.IsActive), v.CreatedAt, v.UpdatedAt,
	)
	return err
}

// GetMarket retrieves a market by ID.
func (r *SQLRepository) GetMarket(ctx context.Context, marketID string) (*domain.GeographicMarket, error) {
	if marketID == "" {
		return nil, fmt.Errorf("%w: marketID is required", ErrInvalidInput)
	}
	return r.getMarketWhere(ctx, "market_id = ?", marketID)
}

// GetMarketByRegion retrieves a market by its region name.
func (r *SQLRepository) GetMarketByRegion(ctx context.Context, regionName string) (*domain.GeographicMarket, error) {
	if regionName == "" {
		return nil, fmt.Errorf("%w: regionName is required", ErrInvalidInput)
	}
	return r.getMarketWhere(ctx, "region_name = ?", regionName)
}

func (r *SQLRepository) getMarketWhere(ctx context.Context, where string, arg any) (*domain.GeographicMarket, error) {
	query := `
		SELECT market_id, region_name, region_code, country_code,
			   latitude, longitude, bbox_north, bbox_south, bbox_east, bbox_west,
			   cost_of_living_index, regional_price_multiplier,
			   is_active, created_at, updated_at
		FROM markets
		WHERE ` + where

	var m domain.GeographicMarket
	var regionCode, countryCode sql.NullString
	var bboxN, bboxS, bboxE, bboxW sql.NullFloat64
	var isActive int

	err := r.db.QueryRowContext(ctx, r.rebind(query), arg).Scan(
		&m.MarketID, &m.RegionName, &regionCode, &countryCode,
		&m.Latitude, &m.Longitude, &bboxN, &bboxS, &bboxE, &bboxW,
		&m.CostOfLivingIndex, &m.RegionalPriceMultiplier,
		&isActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.RegionCode = regionCode.String
	m.CountryCode = countryCode.String
	m.IsActive = isActive != 0
	if bboxN.Valid && bboxS.Valid && bboxE.Valid && bboxW.Valid {
		m.BBox = &domain.BoundingBox{
			North: bboxN.Float64,
			South: bboxS.Float64,
			East:  bboxE.Float64,
			West:  bboxW.Float64,
		}
	}

	return &m, nil
}

// SaveMarket inserts or replaces a market record.
func (r *SQLRepository) SaveMarket(ctx context.Context, m *domain.GeographicMarket) error {
	if m.MarketID == "" {
		return fmt.Errorf("%w: marketID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if m.CostOfLivingIndex == 0 {
		m.CostOfLivingIndex = 1.0
	}
	if m.RegionalPriceMultiplier == 0 {
		m.RegionalPriceMultiplier = 1.0
	}

	var bboxN, bboxS, bboxE, bboxW *float64
	if m.BBox != nil {
		bboxN, bboxS, bboxE, bboxW = &m.BBox.North, &m.BBox.South, &m.BBox.East, &m.BBox.West
	}

	query := `
		INSERT INTO markets (
			market_id, region_name, region_code, country_code,
			latitude, longitude, bbox_north, bbox_south, bbox_east, bbox_west,
			cost_of_living_index, regional_price_multiplier,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			region_name = excluded.region_name,
			region_code = excluded.region_code,
			country_code = excluded.country_code,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			bbox_north = excluded.bbox_north,
			bbox_south = excluded.bbox_south,
			bbox_east = excluded.bbox_east,
			bbox_west = excluded.bbox_west,
			cost_of_living_index = excluded.cost_of_living_index,
			regional_price_multiplier = excluded.regional_price_multiplier,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		m.MarketID, m.RegionName, m.RegionCode, m.CountryCode,
		m.Latitude, m.Longitude, bboxN, bboxS, bboxE, bboxW,
		m.CostOfLivingIndex, m.RegionalPriceMultiplier,
		boolToInt(m.IsActive), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

// ListActiveCenters returns all active distribution centers.
func (r *SQLRepository) ListActiveCenters(ctx context.Context) ([]*domain.DistributionCenter, error) {
	query := `
		SELECT center_id, name, type, market_id, vendor_id, city, state,
			   latitude, longitude, service_radius_miles,
			   is_active, created_at, updated_at
		FROM distribution_centers
		WHERE is_active = 1
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var centers []*domain.DistributionCenter
	for rows.Next() {
		var c domain.DistributionCenter
		var typ, marketID, vendorID, city, state sql.NullString
		var isActive int

		if err := rows.Scan(
			&c.CenterID, &c.Name, &typ, &marketID, &vendorID, &city, &state,
			&c.Latitude, &c.Longitude, &c.ServiceRadiusMiles,
			&isActive, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}

		c.Type = typ.String
		c.MarketID = marketID.String
		c.VendorID = vendorID.String
		c.City = city.String
		c.State = state.String
		c.IsActive = isActive != 0

		centers = append(centers, &c)
	}

	return centers, rows.Err()
}

// SaveCenter inserts or replaces a distribution center record.
func (r *SQLRepository) SaveCenter(ctx context.Context, c *domain.DistributionCenter) error {
	if c.CenterID == "" {
		return fmt.Errorf("%w: centerID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO distribution_centers (
			center_id, name, type, market_id, vendor_id, city, state,
			latitude, longitude, service_radius_miles,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(center_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			market_id = excluded.market_id,
			vendor_id = excluded.vendor_id,
			city = excluded.city,
			state = excluded.state,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			service_radius_miles = excluded.service_radius_miles,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.CenterID, c.Name, c.Type, c.MarketID, c.VendorID, c.City, c.State,
		c.Latitude, c.Longitude, c.ServiceRadiusMiles,
		boolToInt(c.IsActive), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// ListPricing returns pricing observations matching the filter, newest
// first by effective date.
func (r *SQLRepository) ListPricing(ctx context.Context, f domain.PricingFilter) ([]*domain.PricingObservation, error) {
	query := `
		SELECT sku_id, vendor_id, market_id, price, currency, region,
			   category, effective_date, created_at
		FROM pricing_observations
	`

	where, args := pricingWhere(f)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY effective_date DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []*domain.PricingObservation
	for rows.Next() {
		var p domain.PricingObservation
		var marketID, region, category sql.NullString
		var price string

		if err := rows.Scan(
			&p.SKUID, &p.VendorID, &marketID, &price, &p.Currency,
			&region, &category, &p.EffectiveDate, &p.CreatedAt,
		); err != nil {
			return nil, err
		}

		dec, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("corrupt price for sku %s: %w", p.SKUID, err)
		}
		p.Price = dec
		p.MarketID = marketID.String
		p.Region = region.String
		p.Category = category.String

		observations = append(observations, &p)
	}

	return observations, rows.Err()
}

// SavePricing stores a pricing observation.
func (r *SQLRepository) SavePricing(ctx context.Context, p *domain.PricingObservation) error {
	if p.SKUID == "" || p.VendorID == "" {
		return fmt.Errorf("%w: skuID and vendorID are required", ErrInvalidInput)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must be non-negative", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.EffectiveDate.IsZero() {
		p.EffectiveDate = now
	}

	query := `
		INSERT INTO pricing_observations (
			id, sku_id, vendor_id, market_id, price, currency,
			region, category, effective_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(), p.SKUID, p.VendorID, p.MarketID,
		p.Price.String(), p.Currency, p.Region, p.Category,
		p.EffectiveDate, p.CreatedAt,
	)
	return err
}

// ListPriceHistory returns historical price points for a SKU, newest
// first, optionally scoped to one vendor.
func (r *SQLRepository) ListPriceHistory(ctx context.Context, skuID, vendorID string, limit int) ([]*domain.PricePoint, error) {
	if skuID == "" {
		return nil, fmt.Errorf("%w: skuID is required", ErrInvalidInput)
	}

	query := `
		SELECT sku_id, vendor_id, price, currency, region, recorded_at
		FROM price_history
		WHERE sku_id = ?
	`
	args := []any{skuID}

	if vendorID != "" {
		query += " AND vendor_id = ?"
		args = append(args, vendorID)
	}
	query += " ORDER BY recorded_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var pt domain.PricePoint
		var region sql.NullString
		var price string

		if err := rows.Scan(&pt.SKUID, &pt.VendorID, &price, &pt.Currency, &region, &pt.RecordedAt); err != nil {
			return nil, err
		}

		dec, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("corrupt price for sku %s: %w", pt.SKUID, err)
		}
		pt.Price = dec
		pt.Region = region.String

		points = append(points, &pt)
	}

	return points, rows.Err()
}

// SavePricePoint stores a historical price sample.
func (r *SQLRepository) SavePricePoint(ctx context.Context, p *domain.PricePoint) error {
	if p.SKUID == "" || p.VendorID == "" {
		return fmt.Errorf("%w: skuID and vendorID are required", ErrInvalidInput)
	}

	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO price_history (id, sku_id, vendor_id, price, currency, region, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(), p.SKUID, p.VendorID,
		p.Price.String(), p.Currency, p.Region, p.RecordedAt,
	)
	return err
}

// CountDistinctSKUs counts distinct SKUs matching the filter.
func (r *SQLRepository) CountDistinctSKUs(ctx context.Context, f domain.PricingFilter) (int, error) {
	query := "SELECT COUNT(DISTINCT sku_id) FROM pricing_observations"

	where, args := pricingWhere(f)
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := r.db.QueryRowContext(ctx, r.rebind(query), args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// pricingWhere builds the WHERE clause for a pricing filter.
func pricingWhere(f domain.PricingFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.SKUID != "" {
		clauses = append(clauses, "sku_id = ?")
		args = append(args, f.SKUID)
	}
	if f.VendorID != "" {
		clauses = append(clauses, "vendor_id = ?")
		args = append(args, f.VendorID)
	}
	if f.Region != "" {
		clauses = append(clauses, "region = ?")
		args = append(args, f.Region)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "effective_date >= ?")
		args = append(args, f.Since)
	}

	return strings.Join(clauses, " AND "), args
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVendor(s rowScanner) (*domain.Vendor, error) {
	var v domain.Vendor
	var typ, city, state, country sql.NullString
	var lat, lon, reliability, minOrder sql.NullFloat64
	var leadTime sql.NullInt64
	var isActive int

	if err := s.Scan(
		&v.VendorID, &v.Name, &typ, &city, &state, &country,
		&lat, &lon, &reliability, &leadTime,
		&minOrder, &isActive, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}

	v.Type = typ.String
	v.City = city.String
	v.State = state.String
	v.Country = country.String
	v.IsActive = isActive != 0

	if lat.Valid {
		v.Latitude = &lat.Float64
	}
	if lon.Valid {
		v.Longitude = &lon.Float64
	}
	if reliability.Valid {
		v.ReliabilityScore = &reliability.Float64
	}
	if leadTime.Valid {
		days := int(leadTime.Int64)
		v.AvgLeadTimeDays = &days
	}
	if minOrder.Valid {
		v.MinOrderValue = &minOrder.Float64
	}

	return &v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
