package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opensupply/tradewind/internal/domain"
)

// MemoryRepository is an in-memory implementation of domain.Repository.
// It keeps the analytics core testable without a database and doubles as
// a scratch store for tooling.
type MemoryRepository struct {
	mu      sync.RWMutex
	vendors map[string]*domain.Vendor
	markets map[string]*domain.GeographicMarket
	centers map[string]*domain.DistributionCenter
	pricing []*domain.PricingObservation
	history []*domain.PricePoint
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		vendors: make(map[string]*domain.Vendor),
		markets: make(map[string]*domain.GeographicMarket),
		centers: make(map[string]*domain.DistributionCenter),
	}
}

func (r *MemoryRepository) ListActiveVendors(ctx context.Context, minReliability *float64) ([]*domain.Vendor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Vendor
	for _, v := range r.vendors {
		if !v.IsActive || !v.HasCoordinates() {
			continue
		}
		if minReliability != nil {
			if v.ReliabilityScore == nil || *v.ReliabilityScore < *minReliability {
				continue
			}
		}
		out = append(out, v)
	}

	// Stable output order for tests.
	sort.Slice(out, func(i, j int) bool { return out[i].VendorID < out[j].VendorID })
	return out, nil
}

func (r *MemoryRepository) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.vendors[vendorID]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepository) SaveVendor(ctx context.Context, v *domain.Vendor) error {
	if v.VendorID == "" {
		return fmt.Errorf("%w: vendorID is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vendors[v.VendorID] = v
	return nil
}

func (r *MemoryRepository) GetMarket(ctx context.Context, marketID string) (*domain.GeographicMarket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.markets[marketID]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepository) GetMarketByRegion(ctx context.Context, regionName string) (*domain.GeographicMarket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.markets {
		if m.RegionName == regionName {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) SaveMarket(ctx context.Context, m *domain.GeographicMarket) error {
	if m.MarketID == "" {
		return fmt.Errorf("%w: marketID is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.CostOfLivingIndex == 0 {
		m.CostOfLivingIndex = 1.0
	}
	r.markets[m.MarketID] = m
	return nil
}

func (r *MemoryRepository) ListActiveCenters(ctx context.Context) ([]*domain.DistributionCenter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.DistributionCenter
	for _, c := range r.centers {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CenterID < out[j].CenterID })
	return out, nil
}

func (r *MemoryRepository) SaveCenter(ctx context.Context, c *domain.DistributionCenter) error {
	if c.CenterID == "" {
		return fmt.Errorf("%w: centerID is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.centers[c.CenterID] = c
	return nil
}

func (r *MemoryRepository) ListPricing(ctx context.Context, f domain.PricingFilter) ([]*domain.PricingObservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.PricingObservation
	for _, p := range r.pricing {
		if matchesFilter(p, f) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveDate.After(out[j].EffectiveDate) })
	return out, nil
}

func (r *MemoryRepository) SavePricing(ctx context.Context, p *domain.PricingObservation) error {
	if p.SKUID == "" || p.VendorID == "" {
		return fmt.Errorf("%w: skuID and vendorID are required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.EffectiveDate.IsZero() {
		p.EffectiveDate = time.Now().UTC()
	}
	r.pricing = append(r.pricing, p)
	return nil
}

func (r *MemoryRepository) ListPriceHistory(ctx context.Context, skuID, vendorID string, limit int) ([]*domain.PricePoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.PricePoint
	for _, pt := range r.history {
		if pt.SKUID != skuID {
			continue
		}
		if vendorID != "" && pt.VendorID != vendorID {
			continue
		}
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) SavePricePoint(ctx context.Context, p *domain.PricePoint) error {
	if p.SKUID == "" || p.VendorID == "" {
		return fmt.Errorf("%w: skuID and vendorID are required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	r.history = append(r.history, p)
	return nil
}

func (r *MemoryRepository) CountDistinctSKUs(ctx context.Context, f domain.PricingFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range r.pricing {
		if matchesFilter(p, f) {
			seen[p.SKUID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

func matchesFilter(p *domain.PricingObservation, f domain.PricingFilter) bool {
	if f.SKUID != "" && p.SKUID != f.SKUID {
		return false
	}
	if f.VendorID != "" && p.VendorID != f.VendorID {
		return false
	}
	if f.Region != "" && p.Region != f.Region {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if !f.Since.IsZero() && p.EffectiveDate.Before(f.Since) {
		return false
	}
	return true
}
