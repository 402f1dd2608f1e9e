// Package proximity ranks vendors and distribution centers by distance
// from a reference point.
package proximity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/geo"
	"github.com/opensupply/tradewind/internal/repository"
)

// Scorer computes proximity and composite scores for vendors relative to
// a point or market centroid. It holds no mutable state beyond its
// configuration and is safe for concurrent use.
type Scorer struct {
	repo domain.Repository
	cfg  domain.ScoringConfig
}

// NewScorer creates a proximity scorer with the given policy.
func NewScorer(repo domain.Repository, cfg domain.ScoringConfig) *Scorer {
	if cfg.MaxDistanceMiles <= 0 {
		cfg.MaxDistanceMiles = 500.0
	}
	if cfg.DecayRate <= 0 {
		cfg.DecayRate = 0.01
	}
	if cfg.ProximityWeight == 0 && cfg.ReliabilityWeight == 0 {
		cfg.ProximityWeight = 0.6
		cfg.ReliabilityWeight = 0.4
	}
	if cfg.DefaultReliability == 0 {
		cfg.DefaultReliability = 0.5
	}
	return &Scorer{repo: repo, cfg: cfg}
}

// Score converts a distance into a proximity score in [0,1] using
// exponential decay; distances at or beyond the cutoff score exactly 0.
func (s *Scorer) Score(distanceMiles float64) float64 {
	if distanceMiles >= s.cfg.MaxDistanceMiles {
		return 0.0
	}
	return geo.Clamp(math.Exp(-s.cfg.DecayRate*distanceMiles), 0.0, 1.0)
}

// ScoreFromPoint ranks active located vendors by composite score relative
// to a point. Vendors beyond the distance cutoff are dropped. Results are
// sorted descending by composite score and truncated to limit.
func (s *Scorer) ScoreFromPoint(ctx context.Context, lat, lon float64, limit int, minReliability *float64) ([]domain.ProximityResult, error) {
	vendors, err := s.repo.ListActiveVendors(ctx, minReliability)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}

	results := make([]domain.ProximityResult, 0, len(vendors))
	for _, v := range vendors {
		distance := geo.Distance(lat, lon, *v.Latitude, *v.Longitude)
		if distance > s.cfg.MaxDistanceMiles {
			continue
		}

		proximityScore := s.Score(distance)

		reliability := s.cfg.DefaultReliability
		if v.ReliabilityScore != nil {
			reliability = *v.ReliabilityScore
		}
		composite := s.cfg.ProximityWeight*proximityScore + s.cfg.ReliabilityWeight*reliability

		results = append(results, domain.ProximityResult{
			VendorID:         v.VendorID,
			VendorName:       v.Name,
			DistanceMiles:    distance,
			ProximityScore:   proximityScore,
			Latitude:         *v.Latitude,
			Longitude:        *v.Longitude,
			ReliabilityScore: v.ReliabilityScore,
			AvgLeadTimeDays:  v.AvgLeadTimeDays,
			CompositeScore:   composite,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompositeScore > results[j].CompositeScore
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ScoreForMarket ranks vendors relative to a market's centroid. An unknown
// market yields an empty result, not an error.
func (s *Scorer) ScoreForMarket(ctx context.Context, marketID string, limit int) ([]domain.ProximityResult, error) {
	market, err := s.repo.GetMarket(ctx, marketID)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("market not found", "market_id", marketID)
		return []domain.ProximityResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}

	return s.ScoreFromPoint(ctx, market.Latitude, market.Longitude, limit, nil)
}

// NearestCenters finds the closest active distribution centers to a point,
// sorted ascending by distance and truncated to limit.
func (s *Scorer) NearestCenters(ctx context.Context, lat, lon float64, limit int) ([]domain.CenterProximity, error) {
	centers, err := s.repo.ListActiveCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list distribution centers: %w", err)
	}

	results := make([]domain.CenterProximity, 0, len(centers))
	for _, c := range centers {
		distance := geo.Distance(lat, lon, c.Latitude, c.Longitude)

		results = append(results, domain.CenterProximity{
			CenterID:           c.CenterID,
			CenterName:         c.Name,
			CenterType:         c.Type,
			City:               c.City,
			State:              c.State,
			DistanceMiles:      distance,
			ServiceRadiusMiles: c.ServiceRadiusMiles,
			WithinServiceArea:  c.ServiceRadiusMiles > 0 && distance <= c.ServiceRadiusMiles,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceMiles < results[j].DistanceMiles
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
