package variance

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/repository"
)

func seedObservation(t *testing.T, repo *repository.MemoryRepository, skuID, vendorID, region, category string, price float64) {
	t.Helper()
	err := repo.SavePricing(context.Background(), &domain.PricingObservation{
		SKUID:    skuID,
		VendorID: vendorID,
		Region:   region,
		Category: category,
		Price:    decimal.NewFromFloat(price),
		Currency: domain.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("SavePricing: %v", err)
	}
}

func seedHistory(t *testing.T, repo *repository.MemoryRepository, skuID, vendorID string, at time.Time, price float64) {
	t.Helper()
	err := repo.SavePricePoint(context.Background(), &domain.PricePoint{
		SKUID:      skuID,
		VendorID:   vendorID,
		Price:      decimal.NewFromFloat(price),
		Currency:   domain.CurrencyUSD,
		RecordedAt: at,
	})
	if err != nil {
		t.Fatalf("SavePricePoint: %v", err)
	}
}

func TestDetectRegionalAnomalies(t *testing.T) {
	ctx := context.Background()

	t.Run("FlagsSpikeAboveThreshold", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i, p := range []float64{100, 100, 100, 200} {
			seedObservation(t, repo, "sku-1", "vendor-"+string(rune('a'+i)), "west", "lumber", p)
		}

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectRegionalAnomalies(ctx, "", "")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 anomaly, got %d", len(results))
		}

		r := results[0]
		if r.AnomalyType != domain.AnomalyPriceSpike {
			t.Errorf("expected price_spike, got %s", r.AnomalyType)
		}
		if r.RegionalMean != 125 {
			t.Errorf("expected regional mean 125, got %v", r.RegionalMean)
		}
		// Sample std of {100,100,100,200} is 50, so z = 75/50 = 1.5.
		if math.Abs(r.ZScore-1.5) > 1e-9 {
			t.Errorf("expected z-score 1.5, got %v", r.ZScore)
		}
		if math.Abs(r.VariancePct-60) > 1e-9 {
			t.Errorf("expected variance pct 60, got %v", r.VariancePct)
		}
		if !r.IsAnomaly {
			t.Error("expected IsAnomaly=true")
		}
	})

	t.Run("DefaultThresholdNotTripped", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i, p := range []float64{100, 100, 100, 200} {
			seedObservation(t, repo, "sku-1", "vendor-"+string(rune('a'+i)), "west", "lumber", p)
		}

		d := NewDetector(repo, domain.DefaultAnomalyConfig())
		results, err := d.DetectRegionalAnomalies(ctx, "", "")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("z=1.5 should not trip the 2.0 threshold, got %d results", len(results))
		}
	})

	t.Run("FlagsDropAsNegative", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i, p := range []float64{100, 100, 100, 20} {
			seedObservation(t, repo, "sku-1", "vendor-"+string(rune('a'+i)), "west", "lumber", p)
		}

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectRegionalAnomalies(ctx, "", "")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 anomaly, got %d", len(results))
		}
		if results[0].AnomalyType != domain.AnomalyPriceDrop {
			t.Errorf("expected price_drop, got %s", results[0].AnomalyType)
		}
		if results[0].ZScore >= 0 {
			t.Errorf("expected negative z-score, got %v", results[0].ZScore)
		}
	})

	t.Run("SkipsGroupsBelowSampleFloor", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		seedObservation(t, repo, "sku-1", "vendor-a", "west", "lumber", 100)
		seedObservation(t, repo, "sku-1", "vendor-b", "west", "lumber", 900)

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectRegionalAnomalies(ctx, "", "")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("group of 2 should be skipped, got %d results", len(results))
		}
	})

	t.Run("SkipsZeroVarianceGroups", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i := 0; i < 4; i++ {
			seedObservation(t, repo, "sku-1", "vendor-"+string(rune('a'+i)), "west", "lumber", 100)
		}

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectRegionalAnomalies(ctx, "", "")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("zero-variance group should be skipped, got %d results", len(results))
		}
	})

	t.Run("SortedByDescendingAbsZScore", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		// Group A: sample std 50, outlier z = 1.5.
		for i, p := range []float64{100, 100, 100, 200} {
			seedObservation(t, repo, "sku-a", "vendor-"+string(rune('a'+i)), "west", "lumber", p)
		}
		// Group B: five points, outlier z ~ 1.79.
		for i, p := range []float64{100, 100, 100, 100, 300} {
			seedObservation(t, repo, "sku-b", "vendor-"+string(rune('a'+i)), "east", "lumber", p)
		}

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectRegionalAnomalies(ctx, "", "")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 anomalies, got %d", len(results))
		}
		if results[0].SKUID != "sku-b" {
			t.Errorf("expected the stronger anomaly (sku-b) first, got %s", results[0].SKUID)
		}
		if math.Abs(results[0].ZScore) <= math.Abs(results[1].ZScore) {
			t.Errorf("results not sorted by |z|: %v then %v", results[0].ZScore, results[1].ZScore)
		}
	})

	t.Run("CategoryFilterScopesDetection", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i, p := range []float64{100, 100, 100, 200} {
			seedObservation(t, repo, "sku-1", "vendor-"+string(rune('a'+i)), "west", "lumber", p)
		}
		for i, p := range []float64{50, 50, 50, 500} {
			seedObservation(t, repo, "sku-2", "vendor-"+string(rune('a'+i)), "west", "paint", p)
		}

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectRegionalAnomalies(ctx, "", "paint")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		for _, r := range results {
			if r.SKUID != "sku-2" {
				t.Errorf("category filter leaked sku %s into results", r.SKUID)
			}
		}
		if len(results) != 1 {
			t.Errorf("expected 1 anomaly in paint, got %d", len(results))
		}
	})

	t.Run("EmptyDataIsEmptyNotError", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		d := NewDetector(repo, domain.DefaultAnomalyConfig())
		results, err := d.DetectRegionalAnomalies(ctx, "", "")
		if err != nil {
			t.Fatalf("DetectRegionalAnomalies: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})
}

func TestDetectVendorOutliers(t *testing.T) {
	ctx := context.Background()

	t.Run("FlagsVendorAboveMarket", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		seedObservation(t, repo, "sku-1", "vendor-pricey", "west", "lumber", 200)
		seedObservation(t, repo, "sku-1", "vendor-a", "west", "lumber", 100)
		seedObservation(t, repo, "sku-1", "vendor-b", "west", "lumber", 100)
		seedObservation(t, repo, "sku-1", "vendor-c", "west", "lumber", 100)

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectVendorOutliers(ctx, "vendor-pricey")
		if err != nil {
			t.Fatalf("DetectVendorOutliers: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 outlier, got %d", len(results))
		}
		r := results[0]
		if r.AnomalyType != domain.AnomalyVendorOutlier {
			t.Errorf("expected vendor_outlier, got %s", r.AnomalyType)
		}
		if r.VendorID != "vendor-pricey" {
			t.Errorf("unexpected vendor %s", r.VendorID)
		}
		if math.Abs(r.ZScore-1.5) > 1e-9 {
			t.Errorf("expected z-score 1.5, got %v", r.ZScore)
		}
	})

	t.Run("InLineVendorNotFlagged", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		seedObservation(t, repo, "sku-1", "vendor-fair", "west", "lumber", 102)
		seedObservation(t, repo, "sku-1", "vendor-a", "west", "lumber", 98)
		seedObservation(t, repo, "sku-1", "vendor-b", "west", "lumber", 100)
		seedObservation(t, repo, "sku-1", "vendor-c", "west", "lumber", 101)

		d := NewDetector(repo, domain.DefaultAnomalyConfig())
		results, err := d.DetectVendorOutliers(ctx, "vendor-fair")
		if err != nil {
			t.Fatalf("DetectVendorOutliers: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no outliers, got %d", len(results))
		}
	})

	t.Run("SmallPopulationSkipped", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		seedObservation(t, repo, "sku-1", "vendor-lonely", "west", "lumber", 1000)
		seedObservation(t, repo, "sku-1", "vendor-a", "west", "lumber", 100)

		d := NewDetector(repo, domain.AnomalyConfig{ZScoreThreshold: 1.0, MinSamples: 3})
		results, err := d.DetectVendorOutliers(ctx, "vendor-lonely")
		if err != nil {
			t.Fatalf("DetectVendorOutliers: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("population of 2 should be skipped, got %d results", len(results))
		}
	})

	t.Run("RequiresVendorID", func(t *testing.T) {
		d := NewDetector(repository.NewMemoryRepository(), domain.DefaultAnomalyConfig())
		if _, err := d.DetectVendorOutliers(ctx, ""); err == nil {
			t.Error("expected an error for empty vendorID")
		}
	})
}

func TestPriceVolatility(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("InsufficientData", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		seedHistory(t, repo, "sku-1", "vendor-a", base, 100)

		d := NewDetector(repo, domain.DefaultAnomalyConfig())
		report, err := d.PriceVolatility(ctx, "sku-1", "", 30)
		if err != nil {
			t.Fatalf("PriceVolatility: %v", err)
		}
		if report.VolatilityLevel != domain.VolatilityInsufficient {
			t.Errorf("expected %s, got %s", domain.VolatilityInsufficient, report.VolatilityLevel)
		}
		if report.DataPoints != 1 {
			t.Errorf("expected 1 data point, got %d", report.DataPoints)
		}
	})

	t.Run("LowVolatility", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i, p := range []float64{100, 101, 99, 100} {
			seedHistory(t, repo, "sku-1", "vendor-a", base.Add(time.Duration(i)*24*time.Hour), p)
		}

		d := NewDetector(repo, domain.DefaultAnomalyConfig())
		report, err := d.PriceVolatility(ctx, "sku-1", "", 30)
		if err != nil {
			t.Fatalf("PriceVolatility: %v", err)
		}
		if report.VolatilityLevel != domain.VolatilityLow {
			t.Errorf("expected low, got %s (cv=%v)", report.VolatilityLevel, report.CoefficientOfVariation)
		}
		if report.Mean != 100 {
			t.Errorf("expected mean 100, got %v", report.Mean)
		}
		if report.Min != 99 || report.Max != 101 {
			t.Errorf("expected min/max 99/101, got %v/%v", report.Min, report.Max)
		}
	})

	t.Run("HighVolatility", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i, p := range []float64{100, 150, 80, 200} {
			seedHistory(t, repo, "sku-1", "vendor-a", base.Add(time.Duration(i)*24*time.Hour), p)
		}

		d := NewDetector(repo, domain.DefaultAnomalyConfig())
		report, err := d.PriceVolatility(ctx, "sku-1", "", 30)
		if err != nil {
			t.Fatalf("PriceVolatility: %v", err)
		}
		if report.VolatilityLevel != domain.VolatilityHigh {
			t.Errorf("expected high, got %s (cv=%v)", report.VolatilityLevel, report.CoefficientOfVariation)
		}
		if report.ReturnVolatilityPct <= 0 {
			t.Errorf("expected positive return volatility, got %v", report.ReturnVolatilityPct)
		}
	})

	t.Run("VendorScopeFiltersHistory", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i, p := range []float64{100, 101, 99} {
			seedHistory(t, repo, "sku-1", "vendor-a", base.Add(time.Duration(i)*24*time.Hour), p)
		}
		seedHistory(t, repo, "sku-1", "vendor-b", base, 9000)

		d := NewDetector(repo, domain.DefaultAnomalyConfig())
		report, err := d.PriceVolatility(ctx, "sku-1", "vendor-a", 30)
		if err != nil {
			t.Fatalf("PriceVolatility: %v", err)
		}
		if report.DataPoints != 3 {
			t.Errorf("expected 3 data points for vendor-a, got %d", report.DataPoints)
		}
		if report.Max >= 9000 {
			t.Error("vendor-b history leaked into vendor-a report")
		}
	})

	t.Run("ZeroWindowUsesConfigDefault", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		for i := 0; i < 40; i++ {
			seedHistory(t, repo, "sku-1", "vendor-a", base.Add(time.Duration(i)*24*time.Hour), 100+float64(i%3))
		}

		d := NewDetector(repo, domain.AnomalyConfig{VolatilityWindowDays: 10})
		report, err := d.PriceVolatility(ctx, "sku-1", "", 0)
		if err != nil {
			t.Fatalf("PriceVolatility: %v", err)
		}
		if report.DataPoints != 10 {
			t.Errorf("expected the 10-day window, got %d points", report.DataPoints)
		}
	})
}
