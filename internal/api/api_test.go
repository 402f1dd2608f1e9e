package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensupply/tradewind/internal/alerts"
	"github.com/opensupply/tradewind/internal/benchmark"
	"github.com/opensupply/tradewind/internal/bus"
	"github.com/opensupply/tradewind/internal/cache"
	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/proximity"
	"github.com/opensupply/tradewind/internal/repository"
	"github.com/opensupply/tradewind/internal/risk"
	"github.com/opensupply/tradewind/internal/variance"
)

// newTestServer wires a server against the in-memory repository, LRU cache,
// and channel bus.
func newTestServer(t *testing.T) (*Server, *repository.MemoryRepository, *bus.ChannelBus) {
	t.Helper()

	repo := repository.NewMemoryRepository()
	lru := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(16)

	scorer := proximity.NewScorer(repo, domain.DefaultScoringConfig())
	// Threshold 1.0 lets a single outlier in a group of four flag.
	detector := variance.NewDetector(repo, domain.AnomalyConfig{
		ZScoreThreshold: 1.0,
		MinSamples:      3,
	})
	benchmarker := benchmark.NewBenchmarker(repo)
	assessor := risk.NewAssessor(repo, scorer, detector, benchmarker, domain.DefaultRiskWeights())

	engine, err := alerts.NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create alert engine: %v", err)
	}
	if err := engine.LoadRules(alerts.BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	server := NewServer(cfg, ServerDeps{
		Repo:        repo,
		Cache:       lru,
		Bus:         eventBus,
		Scorer:      scorer,
		Detector:    detector,
		Benchmarker: benchmarker,
		Assessor:    assessor,
		Alerts:      engine,
		Version:     "test-v1",
	})

	t.Cleanup(func() {
		eventBus.Close()
		engine.Close()
	})

	return server, repo, eventBus
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func seedPricing(t *testing.T, repo *repository.MemoryRepository, skuID, vendorID, region, category string, price float64) {
	t.Helper()
	obs := &domain.PricingObservation{
		SKUID:    skuID,
		VendorID: vendorID,
		Region:   region,
		Category: category,
		Price:    decimal.NewFromFloat(price),
		Currency: domain.CurrencyUSD,
	}
	if err := repo.SavePricing(t.Context(), obs); err != nil {
		t.Fatalf("failed to seed pricing: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/health", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/ready", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestVendorEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t)

	t.Run("CreateAndGet", func(t *testing.T) {
		lat, lon, rel := 39.7392, -104.9903, 0.9
		rr := doJSON(t, server, http.MethodPost, "/vendors", CreateVendorRequest{
			VendorID:         "v-denver",
			Name:             "Denver Supply Co",
			Type:             "distributor",
			Latitude:         &lat,
			Longitude:        &lon,
			ReliabilityScore: &rel,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/vendors/v-denver", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var vendor domain.Vendor
		if err := json.Unmarshal(rr.Body.Bytes(), &vendor); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if vendor.Name != "Denver Supply Co" {
			t.Errorf("expected name 'Denver Supply Co', got '%s'", vendor.Name)
		}
		if !vendor.IsActive {
			t.Error("expected vendor to default to active")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/vendors/no-such-vendor", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/vendors", CreateVendorRequest{
			VendorID: "v-anon",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReliabilityOutOfRange", func(t *testing.T) {
		rel := 1.5
		rr := doJSON(t, server, http.MethodPost, "/vendors", CreateVendorRequest{
			VendorID:         "v-bad",
			Name:             "Bad Vendor",
			ReliabilityScore: &rel,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("LatitudeWithoutLongitude", func(t *testing.T) {
		lat := 40.0
		rr := doJSON(t, server, http.MethodPost, "/vendors", CreateVendorRequest{
			VendorID: "v-half",
			Name:     "Half Coordinates",
			Latitude: &lat,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestPricingEndpoint(t *testing.T) {
	server, _, eventBus := newTestServer(t)

	t.Run("RecordPublishesEvent", func(t *testing.T) {
		var mu sync.Mutex
		var received *domain.PricingObservedEvent

		_, err := eventBus.Subscribe(t.Context(), domain.TopicPricingObserved,
			func(ctx context.Context, msg *domain.Message) error {
				var event domain.PricingObservedEvent
				if err := json.Unmarshal(msg.Payload, &event); err != nil {
					return err
				}
				mu.Lock()
				received = &event
				mu.Unlock()
				return nil
			})
		if err != nil {
			t.Fatalf("failed to subscribe: %v", err)
		}

		rr := doJSON(t, server, http.MethodPost, "/pricing", map[string]any{
			"skuId":    "sku-plywood",
			"vendorId": "v-denver",
			"price":    42.50,
			"region":   "west",
			"category": "lumber",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if received == nil {
			t.Fatal("expected pricing.observed event")
		}
		if received.SKUID != "sku-plywood" || received.Region != "west" {
			t.Errorf("unexpected event payload: %+v", received)
		}
	})

	t.Run("NonPositivePrice", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/pricing", map[string]any{
			"skuId":    "sku-plywood",
			"vendorId": "v-denver",
			"price":    0,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingSKU", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/pricing", map[string]any{
			"vendorId": "v-denver",
			"price":    10,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestProximityEndpoints(t *testing.T) {
	server, repo, _ := newTestServer(t)

	lat, lon := 39.7392, -104.9903
	repo.SaveVendor(t.Context(), &domain.Vendor{
		VendorID:  "v-denver",
		Name:      "Denver Supply Co",
		Latitude:  &lat,
		Longitude: &lon,
		IsActive:  true,
	})

	t.Run("VendorsNearPoint", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/proximity/vendors?lat=39.7392&lon=-104.9903", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Vendors []domain.ProximityResult `json:"vendors"`
			Count   int                      `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Fatalf("expected 1 vendor, got %d", resp.Count)
		}
		if resp.Vendors[0].ProximityScore != 1.0 {
			t.Errorf("expected proximity score 1.0 at zero distance, got %f", resp.Vendors[0].ProximityScore)
		}
	})

	t.Run("MissingCoordinates", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/proximity/vendors?lat=39.7", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MarketNotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/proximity/markets/no-such-market", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Centers", func(t *testing.T) {
		repo.SaveCenter(t.Context(), &domain.DistributionCenter{
			CenterID:           "dc-1",
			Name:               "Denver DC",
			Latitude:           39.74,
			Longitude:          -104.99,
			ServiceRadiusMiles: 100,
			IsActive:           true,
		})

		rr := doJSON(t, server, http.MethodGet, "/proximity/centers?lat=39.7392&lon=-104.9903", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Centers []domain.CenterProximity `json:"centers"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Centers) != 1 {
			t.Fatalf("expected 1 center, got %d", len(resp.Centers))
		}
		if !resp.Centers[0].WithinServiceArea {
			t.Error("expected center to be within service area")
		}
	})
}

func TestVarianceEndpoints(t *testing.T) {
	server, repo, _ := newTestServer(t)

	for _, price := range []float64{100, 100, 100, 200} {
		seedPricing(t, repo, "sku-plywood", "v-denver", "west", "lumber", price)
	}

	t.Run("RegionalAnomalies", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/anomalies?sku=sku-plywood", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Anomalies []domain.VarianceResult `json:"anomalies"`
			Count     int                     `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Fatalf("expected 1 anomaly, got %d", resp.Count)
		}
		if resp.Anomalies[0].AnomalyType != domain.AnomalyPriceSpike {
			t.Errorf("expected price_spike, got %s", resp.Anomalies[0].AnomalyType)
		}
	})

	t.Run("VolatilityInsufficientData", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/volatility/sku-unseen", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var report domain.VolatilityReport
		json.Unmarshal(rr.Body.Bytes(), &report)
		if report.VolatilityLevel != domain.VolatilityInsufficient {
			t.Errorf("expected insufficient_data, got %s", report.VolatilityLevel)
		}
	})

	t.Run("VendorOutliers", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/vendors/v-denver/outliers", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestBenchmarkEndpoints(t *testing.T) {
	server, repo, _ := newTestServer(t)

	for _, price := range []float64{10, 20, 30, 40} {
		seedPricing(t, repo, "sku-plywood", "v-denver", "west", "lumber", price)
	}

	t.Run("Calculate", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/benchmarks?region=west&category=lumber", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var bench domain.RegionalBenchmark
		if err := json.Unmarshal(rr.Body.Bytes(), &bench); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if bench.Mean != 25 {
			t.Errorf("expected mean 25, got %f", bench.Mean)
		}
		if bench.SampleSize != 4 {
			t.Errorf("expected sample size 4, got %d", bench.SampleSize)
		}
	})

	t.Run("InvalidatedOnNewPricing", func(t *testing.T) {
		// Warm the cache, then record a fifth price through the API and
		// confirm the next read reflects it.
		doJSON(t, server, http.MethodGet, "/benchmarks?region=west&category=lumber", nil)

		rr := doJSON(t, server, http.MethodPost, "/pricing", map[string]any{
			"skuId":    "sku-plywood",
			"vendorId": "v-denver",
			"price":    50,
			"region":   "west",
			"category": "lumber",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rr.Code)
		}

		rr = doJSON(t, server, http.MethodGet, "/benchmarks?region=west&category=lumber", nil)
		var bench domain.RegionalBenchmark
		json.Unmarshal(rr.Body.Bytes(), &bench)
		if bench.SampleSize != 5 {
			t.Errorf("expected sample size 5 after invalidation, got %d", bench.SampleSize)
		}
	})

	t.Run("CompareRegions", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/benchmarks/compare", CompareRegionsRequest{
			Regions: []string{"west", "east"},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Benchmarks []domain.RegionalBenchmark `json:"benchmarks"`
			Count      int                        `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 2 {
			t.Fatalf("expected 2 benchmarks, got %d", resp.Count)
		}
		if resp.Benchmarks[0].Region != "west" {
			t.Errorf("expected region order preserved, got %s first", resp.Benchmarks[0].Region)
		}
	})

	t.Run("CompareRequiresRegions", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/benchmarks/compare", CompareRegionsRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Categories", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/benchmarks/categories?region=west", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Categories map[string]domain.RegionalBenchmark `json:"categories"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Categories["lumber"].SampleSize == 0 {
			t.Error("expected lumber category to have samples")
		}
	})
}

func TestRiskEndpoints(t *testing.T) {
	server, repo, _ := newTestServer(t)

	t.Run("UnknownVendorIsCritical", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/vendors/no-such-vendor/risk", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var assessment domain.RiskAssessment
		if err := json.Unmarshal(rr.Body.Bytes(), &assessment); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if assessment.Level != domain.RiskCritical {
			t.Errorf("expected critical, got %s", assessment.Level)
		}
		if assessment.Score != 100 {
			t.Errorf("expected score 100, got %f", assessment.Score)
		}
	})

	t.Run("VendorRiskWithReference", func(t *testing.T) {
		rel := 0.95
		lat, lon := 39.7392, -104.9903
		repo.SaveVendor(t.Context(), &domain.Vendor{
			VendorID:         "v-denver",
			Name:             "Denver Supply Co",
			Latitude:         &lat,
			Longitude:        &lon,
			ReliabilityScore: &rel,
			IsActive:         true,
		})

		rr := doJSON(t, server, http.MethodGet, "/vendors/v-denver/risk?lat=39.7392&lon=-104.9903", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var assessment domain.RiskAssessment
		json.Unmarshal(rr.Body.Bytes(), &assessment)
		if assessment.Level != domain.RiskLow {
			t.Errorf("expected low, got %s", assessment.Level)
		}
	})

	t.Run("LatWithoutLon", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/vendors/v-denver/risk?lat=39.7", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RegionWithoutDataIsHigh", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/regions/nowhere/risk", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var assessment domain.RiskAssessment
		json.Unmarshal(rr.Body.Bytes(), &assessment)
		if assessment.Level != domain.RiskHigh {
			t.Errorf("expected high, got %s", assessment.Level)
		}
		if assessment.Score != 75 {
			t.Errorf("expected score 75, got %f", assessment.Score)
		}
	})

	t.Run("OptimalVendorsRejectsBadCoordinates", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/vendors/optimal", OptimalVendorsRequest{
			Latitude:  120,
			Longitude: 0,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("OptimalVendors", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/vendors/optimal", OptimalVendorsRequest{
			Latitude:  39.7392,
			Longitude: -104.9903,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Vendors []domain.VendorRecommendation `json:"vendors"`
			Count   int                           `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Fatalf("expected 1 recommendation, got %d", resp.Count)
		}
		if resp.Vendors[0].VendorID != "v-denver" {
			t.Errorf("expected v-denver, got %s", resp.Vendors[0].VendorID)
		}
	})
}

func TestAlertRuleEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t)

	t.Run("ListBuiltins", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/alerts/rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != len(alerts.BuiltinRules()) {
			t.Errorf("expected %d rules, got %d", len(alerts.BuiltinRules()), resp.Count)
		}
	})

	t.Run("CreateValidRule", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/alerts/rules", CreateAlertRuleRequest{
			ID:         "big-drop",
			Name:       "Big Price Drop",
			Expression: `anomaly_type == "price_drop" && variance_pct < -40.0`,
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/alerts/rules", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != len(alerts.BuiltinRules())+1 {
			t.Errorf("expected %d rules after create, got %d", len(alerts.BuiltinRules())+1, resp.Count)
		}
	})

	t.Run("CreateDisabledRuleIsListedButOff", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/alerts/rules", CreateAlertRuleRequest{
			ID:         "dormant-drop",
			Name:       "Dormant Price Drop",
			Expression: `anomaly_type == "price_drop"`,
			Enabled:    false,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/alerts/rules", nil)
		var resp struct {
			Rules []domain.AlertRule `json:"rules"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		found := false
		for _, rule := range resp.Rules {
			if rule.ID == "dormant-drop" {
				found = true
				if rule.Enabled {
					t.Error("rule created with enabled=false must stay disabled")
				}
			}
		}
		if !found {
			t.Error("disabled rule should still appear in the listing")
		}
	})

	t.Run("RejectsNonBooleanExpression", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/alerts/rules", CreateAlertRuleRequest{
			ID:         "bad-rule",
			Name:       "Bad Rule",
			Expression: "z_score + 1.0",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadRestoresBuiltins", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/alerts/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		rr = doJSON(t, server, http.MethodGet, "/alerts/rules", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != len(alerts.BuiltinRules()) {
			t.Errorf("expected %d rules after reload, got %d", len(alerts.BuiltinRules()), resp.Count)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedRequestID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("preflight should not reach handler")
		}))

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "http://example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "http://example.com" {
			t.Errorf("unexpected allow-origin: %s", rr.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}
