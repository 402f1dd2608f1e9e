package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/opensupply/tradewind/internal/alerts"
	"github.com/opensupply/tradewind/internal/benchmark"
	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/proximity"
	"github.com/opensupply/tradewind/internal/repository"
	"github.com/opensupply/tradewind/internal/risk"
	"github.com/opensupply/tradewind/internal/variance"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	scorer      *proximity.Scorer
	detector    *variance.Detector
	benchmarker *benchmark.Benchmarker
	assessor    *risk.Assessor
	engine      *alerts.Engine

	benchmarkTTL time.Duration
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(
	repo domain.Repository,
	cache domain.Cache,
	bus domain.EventBus,
	scorer *proximity.Scorer,
	detector *variance.Detector,
	benchmarker *benchmark.Benchmarker,
	assessor *risk.Assessor,
	engine *alerts.Engine,
	benchmarkTTL time.Duration,
	version string,
) *Handler {
	if benchmarkTTL <= 0 {
		benchmarkTTL = 5 * time.Minute
	}
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		scorer:       scorer,
		detector:     detector,
		benchmarker:  benchmarker,
		assessor:     assessor,
		engine:       engine,
		benchmarkTTL: benchmarkTTL,
		version:      version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ============================================================================
// INGESTION HANDLERS
// ============================================================================

// CreateVendorRequest is the request body for POST /vendors.
type CreateVendorRequest struct {
	VendorID         string   `json:"vendorId"`
	Name             string   `json:"name"`
	Type             string   `json:"type,omitempty"`
	City             string   `json:"city,omitempty"`
	State            string   `json:"state,omitempty"`
	Country          string   `json:"country,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	ReliabilityScore *float64 `json:"reliabilityScore,omitempty"`
	AvgLeadTimeDays  *int     `json:"avgLeadTimeDays,omitempty"`
	MinOrderValue    *float64 `json:"minOrderValue,omitempty"`
	IsActive         *bool    `json:"isActive,omitempty"`
}

// CreateVendor handles POST /vendors.
func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.VendorID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "vendorId and name are required")
		return
	}
	if req.ReliabilityScore != nil && (*req.ReliabilityScore < 0 || *req.ReliabilityScore > 1) {
		writeError(w, http.StatusBadRequest, "reliabilityScore must be between 0 and 1")
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeError(w, http.StatusBadRequest, "latitude and longitude must be provided together")
		return
	}
	if req.Latitude != nil && !validCoordinates(*req.Latitude, *req.Longitude) {
		writeError(w, http.StatusBadRequest, "latitude/longitude out of range")
		return
	}

	now := time.Now().UTC()
	vendor := &domain.Vendor{
		VendorID:         req.VendorID,
		Name:             req.Name,
		Type:             req.Type,
		City:             req.City,
		State:            req.State,
		Country:          req.Country,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		ReliabilityScore: req.ReliabilityScore,
		AvgLeadTimeDays:  req.AvgLeadTimeDays,
		MinOrderValue:    req.MinOrderValue,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.IsActive != nil {
		vendor.IsActive = *req.IsActive
	}

	if err := h.repo.SaveVendor(r.Context(), vendor); err != nil {
		slog.Error("failed to save vendor", "vendor_id", vendor.VendorID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save vendor")
		return
	}

	slog.Info("vendor created", "vendor_id", vendor.VendorID, "name", vendor.Name)
	writeJSON(w, http.StatusCreated, vendor)
}

// GetVendor handles GET /vendors/{id}.
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")
	if vendorID == "" {
		writeError(w, http.StatusBadRequest, "vendor id is required")
		return
	}

	vendor, err := h.repo.GetVendor(r.Context(), vendorID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "vendor not found")
		return
	}
	if err != nil {
		slog.Error("failed to get vendor", "vendor_id", vendorID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get vendor")
		return
	}

	writeJSON(w, http.StatusOK, vendor)
}

// CreateMarketRequest is the request body for POST /markets.
type CreateMarketRequest struct {
	MarketID                string              `json:"marketId"`
	RegionName              string              `json:"regionName"`
	RegionCode              string              `json:"regionCode,omitempty"`
	CountryCode             string              `json:"countryCode,omitempty"`
	Latitude                float64             `json:"latitude"`
	Longitude               float64             `json:"longitude"`
	BBox                    *domain.BoundingBox `json:"bbox,omitempty"`
	CostOfLivingIndex       float64             `json:"costOfLivingIndex,omitempty"`
	RegionalPriceMultiplier float64             `json:"regionalPriceMultiplier,omitempty"`
}

// CreateMarket handles POST /markets.
func (h *Handler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.MarketID == "" || req.RegionName == "" {
		writeError(w, http.StatusBadRequest, "marketId and regionName are required")
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		writeError(w, http.StatusBadRequest, "latitude/longitude out of range")
		return
	}
	if req.CostOfLivingIndex == 0 {
		req.CostOfLivingIndex = 1.0
	}
	if req.CostOfLivingIndex < 0.1 || req.CostOfLivingIndex > 5.0 {
		writeError(w, http.StatusBadRequest, "costOfLivingIndex must be between 0.1 and 5.0")
		return
	}
	if req.CountryCode == "" {
		req.CountryCode = "USA"
	}

	now := time.Now().UTC()
	market := &domain.GeographicMarket{
		MarketID:                req.MarketID,
		RegionName:              req.RegionName,
		RegionCode:              req.RegionCode,
		CountryCode:             req.CountryCode,
		Latitude:                req.Latitude,
		Longitude:               req.Longitude,
		BBox:                    req.BBox,
		CostOfLivingIndex:       req.CostOfLivingIndex,
		RegionalPriceMultiplier: req.RegionalPriceMultiplier,
		IsActive:                true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := h.repo.SaveMarket(r.Context(), market); err != nil {
		slog.Error("failed to save market", "market_id", market.MarketID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save market")
		return
	}

	slog.Info("market created", "market_id", market.MarketID, "region", market.RegionName)
	writeJSON(w, http.StatusCreated, market)
}

// CreateCenterRequest is the request body for POST /centers.
type CreateCenterRequest struct {
	CenterID           string  `json:"centerId"`
	Name               string  `json:"name"`
	Type               string  `json:"type,omitempty"`
	MarketID           string  `json:"marketId,omitempty"`
	VendorID           string  `json:"vendorId,omitempty"`
	City               string  `json:"city,omitempty"`
	State              string  `json:"state,omitempty"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	ServiceRadiusMiles float64 `json:"serviceRadiusMiles,omitempty"`
}

// CreateCenter handles POST /centers.
func (h *Handler) CreateCenter(w http.ResponseWriter, r *http.Request) {
	var req CreateCenterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.CenterID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "centerId and name are required")
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		writeError(w, http.StatusBadRequest, "latitude/longitude out of range")
		return
	}
	if req.ServiceRadiusMiles < 0 {
		writeError(w, http.StatusBadRequest, "serviceRadiusMiles must not be negative")
		return
	}

	now := time.Now().UTC()
	center := &domain.DistributionCenter{
		CenterID:           req.CenterID,
		Name:               req.Name,
		Type:               req.Type,
		MarketID:           req.MarketID,
		VendorID:           req.VendorID,
		City:               req.City,
		State:              req.State,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		ServiceRadiusMiles: req.ServiceRadiusMiles,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.repo.SaveCenter(r.Context(), center); err != nil {
		slog.Error("failed to save center", "center_id", center.CenterID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save center")
		return
	}

	slog.Info("distribution center created", "center_id", center.CenterID)
	writeJSON(w, http.StatusCreated, center)
}

// RecordPricingRequest is the request body for POST /pricing.
type RecordPricingRequest struct {
	SKUID         string          `json:"skuId"`
	VendorID      string          `json:"vendorId"`
	MarketID      string          `json:"marketId,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency,omitempty"`
	Region        string          `json:"region,omitempty"`
	Category      string          `json:"category,omitempty"`
	EffectiveDate *time.Time      `json:"effectiveDate,omitempty"`
}

// RecordPricing handles POST /pricing. It persists the observation and a
// history point, invalidates the benchmark cache entries the new price can
// stale, and publishes a pricing.observed event for the anomaly worker.
func (h *Handler) RecordPricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RecordPricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.SKUID == "" || req.VendorID == "" {
		writeError(w, http.StatusBadRequest, "skuId and vendorId are required")
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	if req.Currency == "" {
		req.Currency = domain.CurrencyUSD
	}

	now := time.Now().UTC()
	effective := now
	if req.EffectiveDate != nil {
		effective = req.EffectiveDate.UTC()
	}

	obs := &domain.PricingObservation{
		SKUID:         req.SKUID,
		VendorID:      req.VendorID,
		MarketID:      req.MarketID,
		Price:         req.Price,
		Currency:      req.Currency,
		Region:        req.Region,
		Category:      req.Category,
		EffectiveDate: effective,
		CreatedAt:     now,
	}

	if err := h.repo.SavePricing(ctx, obs); err != nil {
		slog.Error("failed to save pricing observation",
			"sku_id", obs.SKUID, "vendor_id", obs.VendorID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save pricing observation")
		return
	}

	point := &domain.PricePoint{
		SKUID:      obs.SKUID,
		VendorID:   obs.VendorID,
		Price:      obs.Price,
		Currency:   obs.Currency,
		Region:     obs.Region,
		RecordedAt: effective,
	}
	if err := h.repo.SavePricePoint(ctx, point); err != nil {
		slog.Error("failed to save price point",
			"sku_id", obs.SKUID, "vendor_id", obs.VendorID, "error", err)
	}

	h.invalidateBenchmarks(ctx, obs.Region, obs.Category)

	if h.bus != nil {
		event := domain.PricingObservedEvent{
			SKUID:    obs.SKUID,
			VendorID: obs.VendorID,
			Region:   obs.Region,
			Category: obs.Category,
		}
		payload, err := json.Marshal(event)
		if err == nil {
			err = h.bus.Publish(ctx, domain.TopicPricingObserved, payload)
		}
		if err != nil {
			slog.Error("failed to publish pricing event",
				"sku_id", obs.SKUID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, obs)
}

// invalidateBenchmarks drops every cached benchmark aggregate a new
// observation contributes to: the exact (region, category) pair plus the
// region-only, category-only, and all-markets rollups.
func (h *Handler) invalidateBenchmarks(ctx context.Context, region, category string) {
	if h.cache == nil {
		return
	}
	keys := []string{
		domain.BenchmarkCacheKey(region, category),
		domain.BenchmarkCacheKey(region, ""),
		domain.BenchmarkCacheKey("", category),
		domain.BenchmarkCacheKey("", ""),
	}
	for _, key := range keys {
		if err := h.cache.Delete(ctx, key); err != nil {
			slog.Warn("failed to invalidate benchmark cache", "key", key, "error", err)
		}
	}
}

// ============================================================================
// PROXIMITY HANDLERS
// ============================================================================

// ProximityVendors handles GET /proximity/vendors.
func (h *Handler) ProximityVendors(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseLatLon(w, r)
	if !ok {
		return
	}
	limit := parseIntQuery(r, "limit", 10)

	var minReliability *float64
	if raw := r.URL.Query().Get("minReliability"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "minReliability must be between 0 and 1")
			return
		}
		minReliability = &v
	}

	results, err := h.scorer.ScoreFromPoint(r.Context(), lat, lon, limit, minReliability)
	if err != nil {
		slog.Error("proximity scoring failed", "error", err)
		writeError(w, http.StatusInternalServerError, "proximity scoring failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vendors": results,
		"count":   len(results),
	})
}

// ProximityMarket handles GET /proximity/markets/{id}.
func (h *Handler) ProximityMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "market id is required")
		return
	}
	limit := parseIntQuery(r, "limit", 10)

	// The scorer treats an unknown market as an empty result; resolve the
	// market here so the API can answer with a 404 instead.
	market, err := h.repo.GetMarket(r.Context(), marketID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		slog.Error("market lookup failed", "market_id", marketID, "error", err)
		writeError(w, http.StatusInternalServerError, "market lookup failed")
		return
	}

	results, err := h.scorer.ScoreFromPoint(r.Context(), market.Latitude, market.Longitude, limit, nil)
	if err != nil {
		slog.Error("market proximity scoring failed", "market_id", marketID, "error", err)
		writeError(w, http.StatusInternalServerError, "proximity scoring failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"marketId": marketID,
		"vendors":  results,
		"count":    len(results),
	})
}

// ProximityCenters handles GET /proximity/centers.
func (h *Handler) ProximityCenters(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseLatLon(w, r)
	if !ok {
		return
	}
	limit := parseIntQuery(r, "limit", 10)

	results, err := h.scorer.NearestCenters(r.Context(), lat, lon, limit)
	if err != nil {
		slog.Error("center proximity scoring failed", "error", err)
		writeError(w, http.StatusInternalServerError, "proximity scoring failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"centers": results,
		"count":   len(results),
	})
}

// ============================================================================
// VARIANCE HANDLERS
// ============================================================================

// RegionalAnomalies handles GET /anomalies.
func (h *Handler) RegionalAnomalies(w http.ResponseWriter, r *http.Request) {
	skuID := r.URL.Query().Get("sku")
	category := r.URL.Query().Get("category")

	anomalies, err := h.detector.DetectRegionalAnomalies(r.Context(), skuID, category)
	if err != nil {
		slog.Error("anomaly detection failed", "sku_id", skuID, "error", err)
		writeError(w, http.StatusInternalServerError, "anomaly detection failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// VendorOutliers handles GET /vendors/{id}/outliers.
func (h *Handler) VendorOutliers(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")
	if vendorID == "" {
		writeError(w, http.StatusBadRequest, "vendor id is required")
		return
	}

	outliers, err := h.detector.DetectVendorOutliers(r.Context(), vendorID)
	if err != nil {
		slog.Error("outlier detection failed", "vendor_id", vendorID, "error", err)
		writeError(w, http.StatusInternalServerError, "outlier detection failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vendorId": vendorID,
		"outliers": outliers,
		"count":    len(outliers),
	})
}

// Volatility handles GET /volatility/{sku}.
func (h *Handler) Volatility(w http.ResponseWriter, r *http.Request) {
	skuID := chi.URLParam(r, "sku")
	if skuID == "" {
		writeError(w, http.StatusBadRequest, "sku is required")
		return
	}
	vendorID := r.URL.Query().Get("vendor")
	days := parseIntQuery(r, "days", 0)

	report, err := h.detector.PriceVolatility(r.Context(), skuID, vendorID, days)
	if err != nil {
		slog.Error("volatility analysis failed", "sku_id", skuID, "error", err)
		writeError(w, http.StatusInternalServerError, "volatility analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ============================================================================
// BENCHMARK HANDLERS
// ============================================================================

// GetBenchmark handles GET /benchmarks. Results are cached per
// (region, category) pair; RecordPricing invalidates the affected keys.
func (h *Handler) GetBenchmark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	region := r.URL.Query().Get("region")
	category := r.URL.Query().Get("category")

	key := domain.BenchmarkCacheKey(region, category)
	if h.cache != nil {
		cached, err := h.cache.GetBenchmark(ctx, key)
		if err != nil {
			slog.Warn("benchmark cache read failed", "key", key, "error", err)
		} else if cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	bench, err := h.benchmarker.CalculateBenchmark(ctx, region, category)
	if err != nil {
		slog.Error("benchmark calculation failed", "region", region, "error", err)
		writeError(w, http.StatusInternalServerError, "benchmark calculation failed")
		return
	}

	if h.cache != nil {
		if err := h.cache.SetBenchmark(ctx, key, bench, h.benchmarkTTL); err != nil {
			slog.Warn("benchmark cache write failed", "key", key, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, bench)
}

// CompareRegionsRequest is the request body for POST /benchmarks/compare.
type CompareRegionsRequest struct {
	Regions  []string `json:"regions"`
	Category string   `json:"category,omitempty"`
}

// CompareRegions handles POST /benchmarks/compare.
func (h *Handler) CompareRegions(w http.ResponseWriter, r *http.Request) {
	var req CompareRegionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if len(req.Regions) == 0 {
		writeError(w, http.StatusBadRequest, "at least one region is required")
		return
	}

	benchmarks, err := h.benchmarker.CompareRegions(r.Context(), req.Regions, req.Category)
	if err != nil {
		slog.Error("region comparison failed", "error", err)
		writeError(w, http.StatusInternalServerError, "region comparison failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"benchmarks": benchmarks,
		"count":      len(benchmarks),
	})
}

// CategoryBenchmarks handles GET /benchmarks/categories.
func (h *Handler) CategoryBenchmarks(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")

	benchmarks, err := h.benchmarker.CategoryBenchmarks(r.Context(), region)
	if err != nil {
		slog.Error("category benchmarks failed", "region", region, "error", err)
		writeError(w, http.StatusInternalServerError, "category benchmarks failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"region":     region,
		"categories": benchmarks,
	})
}

// ============================================================================
// RISK HANDLERS
// ============================================================================

// VendorRisk handles GET /vendors/{id}/risk. Optional lat/lon query
// parameters add a distance factor relative to that reference point.
func (h *Handler) VendorRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vendorID := chi.URLParam(r, "id")
	if vendorID == "" {
		writeError(w, http.StatusBadRequest, "vendor id is required")
		return
	}

	var refLat, refLon *float64
	latRaw := r.URL.Query().Get("lat")
	lonRaw := r.URL.Query().Get("lon")
	if (latRaw == "") != (lonRaw == "") {
		writeError(w, http.StatusBadRequest, "lat and lon must be provided together")
		return
	}
	if latRaw != "" {
		lat, err1 := strconv.ParseFloat(latRaw, 64)
		lon, err2 := strconv.ParseFloat(lonRaw, 64)
		if err1 != nil || err2 != nil || !validCoordinates(lat, lon) {
			writeError(w, http.StatusBadRequest, "invalid lat/lon")
			return
		}
		refLat, refLon = &lat, &lon
	}

	assessment, err := h.assessor.AssessVendorRisk(ctx, vendorID, refLat, refLon)
	if err != nil {
		slog.Error("vendor risk assessment failed", "vendor_id", vendorID, "error", err)
		writeError(w, http.StatusInternalServerError, "risk assessment failed")
		return
	}

	h.publishRiskAssessed(ctx, assessment)
	writeJSON(w, http.StatusOK, assessment)
}

// RegionRisk handles GET /regions/{region}/risk.
func (h *Handler) RegionRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	region := chi.URLParam(r, "region")
	if region == "" {
		writeError(w, http.StatusBadRequest, "region is required")
		return
	}

	assessment, err := h.assessor.AssessRegionRisk(ctx, region)
	if err != nil {
		slog.Error("region risk assessment failed", "region", region, "error", err)
		writeError(w, http.StatusInternalServerError, "risk assessment failed")
		return
	}

	h.publishRiskAssessed(ctx, assessment)
	writeJSON(w, http.StatusOK, assessment)
}

func (h *Handler) publishRiskAssessed(ctx context.Context, a *domain.RiskAssessment) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(a)
	if err == nil {
		err = h.bus.Publish(ctx, domain.TopicRiskAssessed, payload)
	}
	if err != nil {
		slog.Warn("failed to publish risk assessment",
			"entity_id", a.EntityID, "error", err)
	}
}

// OptimalVendorsRequest is the request body for POST /vendors/optimal.
type OptimalVendorsRequest struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	SKUIDs           []string `json:"skuIds,omitempty"`
	MaxDistanceMiles float64  `json:"maxDistanceMiles,omitempty"`
	Limit            int      `json:"limit,omitempty"`
}

// OptimalVendors handles POST /vendors/optimal.
func (h *Handler) OptimalVendors(w http.ResponseWriter, r *http.Request) {
	var req OptimalVendorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		writeError(w, http.StatusBadRequest, "latitude/longitude out of range")
		return
	}

	recs, err := h.assessor.FindOptimalVendors(r.Context(),
		req.Latitude, req.Longitude, req.SKUIDs, req.MaxDistanceMiles, req.Limit)
	if err != nil {
		slog.Error("optimal vendor search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "optimal vendor search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vendors": recs,
		"count":   len(recs),
	})
}

// ============================================================================
// ALERT RULE HANDLERS
// ============================================================================

// ListAlertRules handles GET /alerts/rules.
func (h *Handler) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	rules := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateAlertRuleRequest is the request body for POST /alerts/rules.
type CreateAlertRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// CreateAlertRule handles POST /alerts/rules. Rules are engine-resident;
// a restart reverts to the builtin set. A rule posted with enabled=false
// is validated and listed but not evaluated.
func (h *Handler) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	var req CreateAlertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeError(w, http.StatusBadRequest, "id, name, and expression are required")
		return
	}
	if req.Severity == "" {
		req.Severity = domain.SeverityWarning
	}

	now := time.Now().UTC()
	rule := &domain.AlertRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Severity:    req.Severity,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.engine.LoadRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid CEL expression: "+err.Error())
		return
	}

	slog.Info("alert rule created", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// ReloadAlertRules handles POST /alerts/rules/reload, resetting the engine
// to the builtin rule set.
func (h *Handler) ReloadAlertRules(w http.ResponseWriter, r *http.Request) {
	builtin := alerts.BuiltinRules()
	if err := h.engine.ReloadRules(builtin); err != nil {
		slog.Error("failed to reload alert rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload alert rules: "+err.Error())
		return
	}

	slog.Info("alert rules reloaded", "count", len(builtin))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "alert rules reloaded",
		"count":   len(builtin),
	})
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func parseLatLon(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	latRaw := r.URL.Query().Get("lat")
	lonRaw := r.URL.Query().Get("lon")
	if latRaw == "" || lonRaw == "" {
		writeError(w, http.StatusBadRequest, "lat and lon query parameters are required")
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(latRaw, 64)
	lon, err2 := strconv.ParseFloat(lonRaw, 64)
	if err1 != nil || err2 != nil || !validCoordinates(lat, lon) {
		writeError(w, http.StatusBadRequest, "invalid lat/lon")
		return 0, 0, false
	}
	return lat, lon, true
}

func parseIntQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
