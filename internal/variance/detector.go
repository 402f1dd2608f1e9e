// Package variance detects statistical pricing anomalies across regions
// and vendors, and summarizes price volatility over time.
package variance

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/opensupply/tradewind/internal/domain"
)

// Detector flags price observations whose z-score against their
// (region, SKU) population exceeds a threshold. Stateless between calls;
// safe for concurrent use.
type Detector struct {
	repo domain.Repository
	cfg  domain.AnomalyConfig
}

// NewDetector creates a variance detector with the given policy.
func NewDetector(repo domain.Repository, cfg domain.AnomalyConfig) *Detector {
	if cfg.ZScoreThreshold <= 0 {
		cfg.ZScoreThreshold = 2.0
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 3
	}
	if cfg.VolatilityWindowDays <= 0 {
		cfg.VolatilityWindowDays = 30
	}
	return &Detector{repo: repo, cfg: cfg}
}

type groupKey struct {
	region string
	skuID  string
}

type observation struct {
	price    float64
	vendorID string
	raw      *domain.PricingObservation
}

// DetectRegionalAnomalies pulls pricing for the optional SKU and category
// filters, groups by (region, SKU), and returns flagged observations
// sorted descending by |z|. Groups below the sample floor or with zero
// variance are skipped: there is nothing to measure.
func (d *Detector) DetectRegionalAnomalies(ctx context.Context, skuID, category string) ([]domain.VarianceResult, error) {
	pricing, err := d.repo.ListPricing(ctx, domain.PricingFilter{
		SKUID:    skuID,
		Category: category,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing: %w", err)
	}

	groups := make(map[groupKey][]observation)
	for _, p := range pricing {
		if p.Region == "" {
			continue
		}
		key := groupKey{region: p.Region, skuID: p.SKUID}
		groups[key] = append(groups[key], observation{
			price:    p.Price.InexactFloat64(),
			vendorID: p.VendorID,
			raw:      p,
		})
	}

	results := []domain.VarianceResult{}
	for key, obs := range groups {
		if len(obs) < d.cfg.MinSamples {
			continue
		}

		prices := make([]float64, len(obs))
		for i, o := range obs {
			prices[i] = o.price
		}
		mean, std := sampleMeanStd(prices)
		if std == 0 {
			continue
		}

		for _, o := range obs {
			z := (o.price - mean) / std
			if math.Abs(z) <= d.cfg.ZScoreThreshold {
				continue
			}

			anomalyType := domain.AnomalyPriceSpike
			if z < 0 {
				anomalyType = domain.AnomalyPriceDrop
			}

			results = append(results, domain.VarianceResult{
				SKUID:        key.skuID,
				VendorID:     o.vendorID,
				Region:       key.region,
				Price:        o.raw.Price,
				RegionalMean: mean,
				RegionalStd:  std,
				ZScore:       z,
				VariancePct:  (o.price - mean) / mean * 100,
				IsAnomaly:    true,
				AnomalyType:  anomalyType,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return math.Abs(results[i].ZScore) > math.Abs(results[j].ZScore)
	})
	return results, nil
}

// DetectVendorOutliers compares every (SKU, region) price of one vendor
// against the full population for that pair and flags outliers.
func (d *Detector) DetectVendorOutliers(ctx context.Context, vendorID string) ([]domain.VarianceResult, error) {
	if vendorID == "" {
		return nil, fmt.Errorf("vendorID is required")
	}

	vendorPricing, err := d.repo.ListPricing(ctx, domain.PricingFilter{VendorID: vendorID})
	if err != nil {
		return nil, fmt.Errorf("failed to list vendor pricing: %w", err)
	}

	results := []domain.VarianceResult{}
	for _, vp := range vendorPricing {
		population, err := d.repo.ListPricing(ctx, domain.PricingFilter{
			SKUID:  vp.SKUID,
			Region: vp.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list population pricing: %w", err)
		}

		if len(population) < d.cfg.MinSamples {
			continue
		}

		prices := make([]float64, len(population))
		for i, p := range population {
			prices[i] = p.Price.InexactFloat64()
		}
		mean, std := sampleMeanStd(prices)
		if std == 0 || mean == 0 {
			continue
		}

		price := vp.Price.InexactFloat64()
		z := (price - mean) / std
		if math.Abs(z) <= d.cfg.ZScoreThreshold {
			continue
		}

		region := vp.Region
		if region == "" {
			region = "all"
		}

		results = append(results, domain.VarianceResult{
			SKUID:        vp.SKUID,
			VendorID:     vendorID,
			Region:       region,
			Price:        vp.Price,
			RegionalMean: mean,
			RegionalStd:  std,
			ZScore:       z,
			VariancePct:  (price - mean) / mean * 100,
			IsAnomaly:    true,
			AnomalyType:  domain.AnomalyVendorOutlier,
		})
	}

	return results, nil
}

// PriceVolatility summarizes price movement for a SKU over a trailing
// window, optionally scoped to one vendor. Fewer than two points yields
// an explicit insufficient-data report rather than an error.
func (d *Detector) PriceVolatility(ctx context.Context, skuID, vendorID string, windowDays int) (*domain.VolatilityReport, error) {
	if windowDays <= 0 {
		windowDays = d.cfg.VolatilityWindowDays
	}

	history, err := d.repo.ListPriceHistory(ctx, skuID, vendorID, windowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}

	report := &domain.VolatilityReport{
		SKUID:      skuID,
		VendorID:   vendorID,
		DataPoints: len(history),
	}

	if len(history) < 2 {
		report.VolatilityLevel = domain.VolatilityInsufficient
		report.Message = "insufficient data"
		return report, nil
	}

	prices := make([]float64, len(history))
	for i, h := range history {
		prices[i] = h.Price.InexactFloat64()
	}

	mean, std := sampleMeanStd(prices)

	cv := 0.0
	if mean > 0 {
		cv = std / mean * 100
	}

	// Period-over-period percentage changes.
	var returns []float64
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	returnVolatility := 0.0
	if len(returns) > 1 {
		_, retStd := sampleMeanStd(returns)
		returnVolatility = retStd * 100
	}

	minPrice, maxPrice := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < minPrice {
			minPrice = p
		}
		if p > maxPrice {
			maxPrice = p
		}
	}

	report.Mean = mean
	report.Std = std
	report.CoefficientOfVariation = cv
	report.ReturnVolatilityPct = returnVolatility
	report.Min = minPrice
	report.Max = maxPrice

	switch {
	case cv < 5:
		report.VolatilityLevel = domain.VolatilityLow
	case cv < 15:
		report.VolatilityLevel = domain.VolatilityModerate
	default:
		report.VolatilityLevel = domain.VolatilityHigh
	}

	return report, nil
}

// sampleMeanStd returns the mean and sample standard deviation (n-1).
func sampleMeanStd(values []float64) (float64, float64) {
	if len(values) < 2 {
		if len(values) == 1 {
			return values[0], 0
		}
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	ss := 0.0
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}
