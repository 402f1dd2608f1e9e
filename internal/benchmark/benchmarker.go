// Package benchmark aggregates pricing observations into regional
// statistics used for cross-region comparison and risk scoring.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/repository"
)

// Benchmarker computes descriptive statistics over pricing observations.
// It never errors for absence of data; an empty sample yields a benchmark
// with SampleSize zero and all-zero statistics.
type Benchmarker struct {
	repo domain.Repository
}

func NewBenchmarker(repo domain.Repository) *Benchmarker {
	return &Benchmarker{repo: repo}
}

// CalculateBenchmark aggregates observations matching the optional region
// and category filters. The cost index comes from the matching market
// record when a region is given; it defaults to 1.0.
func (b *Benchmarker) CalculateBenchmark(ctx context.Context, region, category string) (*domain.RegionalBenchmark, error) {
	pricing, err := b.repo.ListPricing(ctx, domain.PricingFilter{
		Region:   region,
		Category: category,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing: %w", err)
	}

	bench := &domain.RegionalBenchmark{
		Region:    region,
		Category:  category,
		CostIndex: 1.0,
	}
	if region == "" {
		bench.Region = "all"
	}

	if region != "" {
		market, err := b.repo.GetMarketByRegion(ctx, region)
		switch {
		case err == nil:
			bench.MarketID = market.MarketID
			bench.CostIndex = market.CostOfLivingIndex
		case errors.Is(err, repository.ErrNotFound):
			// Unknown region still benchmarks; the index stays 1.0.
		default:
			return nil, fmt.Errorf("failed to resolve market for region %q: %w", region, err)
		}
	}

	if len(pricing) == 0 {
		return bench, nil
	}

	prices := make([]float64, len(pricing))
	vendors := make(map[string]struct{})
	for i, p := range pricing {
		prices[i] = p.Price.InexactFloat64()
		vendors[p.VendorID] = struct{}{}
	}
	sort.Float64s(prices)

	skuCount, err := b.repo.CountDistinctSKUs(ctx, domain.PricingFilter{
		Region:   region,
		Category: category,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count SKUs: %w", err)
	}

	mean, std := populationMeanStd(prices)

	bench.SampleSize = len(prices)
	bench.VendorCount = len(vendors)
	bench.SKUCount = skuCount
	bench.Mean = mean
	bench.Std = std
	bench.Min = prices[0]
	bench.Max = prices[len(prices)-1]
	bench.Median = percentile(prices, 50)
	bench.Percentile25 = percentile(prices, 25)
	bench.Percentile75 = percentile(prices, 75)

	return bench, nil
}

// CompareRegions benchmarks each region in turn, preserving input order.
func (b *Benchmarker) CompareRegions(ctx context.Context, regions []string, category string) ([]*domain.RegionalBenchmark, error) {
	out := make([]*domain.RegionalBenchmark, 0, len(regions))
	for _, region := range regions {
		bench, err := b.CalculateBenchmark(ctx, region, category)
		if err != nil {
			return nil, err
		}
		out = append(out, bench)
	}
	return out, nil
}

// CategoryBenchmarks benchmarks every product category, optionally scoped
// to one region.
func (b *Benchmarker) CategoryBenchmarks(ctx context.Context, region string) (map[string]*domain.RegionalBenchmark, error) {
	out := make(map[string]*domain.RegionalBenchmark, len(domain.ProductCategories))
	for _, category := range domain.ProductCategories {
		bench, err := b.CalculateBenchmark(ctx, region, category)
		if err != nil {
			return nil, err
		}
		out[category] = bench
	}
	return out, nil
}

func populationMeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
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
	return mean, math.Sqrt(ss / float64(len(values)))
}

// percentile interpolates linearly between order statistics of a sorted
// slice, with rank = (n-1) * p / 100.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	rank := float64(n-1) * p / 100
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
