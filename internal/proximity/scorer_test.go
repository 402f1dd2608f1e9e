package proximity

import (
	"context"
	"math"
	"testing"

	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/repository"
)

func floatPtr(f float64) *float64 { return &f }

// Reference point used throughout: downtown Denver.
const (
	refLat = 39.7392
	refLon = -104.9903
)

func seedVendors(t *testing.T, repo *repository.MemoryRepository) {
	t.Helper()
	ctx := context.Background()

	vendors := []*domain.Vendor{
		// ~0 miles, mediocre reliability
		{VendorID: "near-ok", Name: "Near OK", Latitude: floatPtr(39.74), Longitude: floatPtr(-104.99), ReliabilityScore: floatPtr(0.6), IsActive: true},
		// ~70 miles, excellent reliability
		{VendorID: "far-great", Name: "Far Great", Latitude: floatPtr(40.7), Longitude: floatPtr(-105.1), ReliabilityScore: floatPtr(0.99), IsActive: true},
		// ~600+ miles: beyond the 500 mile cutoff
		{VendorID: "too-far", Name: "Too Far", Latitude: floatPtr(34.05), Longitude: floatPtr(-118.24), ReliabilityScore: floatPtr(0.9), IsActive: true},
		// no reliability data at all
		{VendorID: "unknown-rel", Name: "Unknown Rel", Latitude: floatPtr(39.8), Longitude: floatPtr(-105.0), IsActive: true},
	}
	for _, v := range vendors {
		if err := repo.SaveVendor(ctx, v); err != nil {
			t.Fatalf("failed to seed vendor: %v", err)
		}
	}
}

func TestScoreDecay(t *testing.T) {
	scorer := NewScorer(repository.NewMemoryRepository(), domain.DefaultScoringConfig())

	t.Run("NonIncreasing", func(t *testing.T) {
		prev := scorer.Score(0)
		if prev != 1.0 {
			t.Errorf("score at distance 0 should be 1.0, got %f", prev)
		}
		for d := 10.0; d <= 600; d += 10 {
			score := scorer.Score(d)
			if score > prev {
				t.Fatalf("score increased from %f to %f at distance %f", prev, score, d)
			}
			prev = score
		}
	})

	t.Run("ZeroAtCutoff", func(t *testing.T) {
		if got := scorer.Score(500.0); got != 0 {
			t.Errorf("score at max distance should be exactly 0, got %f", got)
		}
		if got := scorer.Score(750.0); got != 0 {
			t.Errorf("score beyond max distance should be exactly 0, got %f", got)
		}
	})

	t.Run("Bounded", func(t *testing.T) {
		for d := 0.0; d < 500; d += 7 {
			score := scorer.Score(d)
			if score < 0 || score > 1 {
				t.Fatalf("score %f out of [0,1] at distance %f", score, d)
			}
		}
	})
}

func TestScoreFromPoint(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seedVendors(t, repo)
	scorer := NewScorer(repo, domain.DefaultScoringConfig())
	ctx := context.Background()

	results, err := scorer.ScoreFromPoint(ctx, refLat, refLon, 50, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("DropsVendorsBeyondCutoff", func(t *testing.T) {
		for _, r := range results {
			if r.VendorID == "too-far" {
				t.Errorf("vendor beyond max distance should be dropped")
			}
			if r.DistanceMiles > 500 {
				t.Errorf("result distance %f exceeds cutoff", r.DistanceMiles)
			}
		}
		if len(results) != 3 {
			t.Errorf("expected 3 vendors in range, got %d", len(results))
		}
	})

	t.Run("SortedByCompositeDescending", func(t *testing.T) {
		for i := 1; i < len(results); i++ {
			if results[i].CompositeScore > results[i-1].CompositeScore {
				t.Errorf("results not sorted by composite score at index %d", i)
			}
		}
	})

	t.Run("DefaultReliabilitySubstituted", func(t *testing.T) {
		for _, r := range results {
			if r.VendorID == "unknown-rel" {
				// composite = 0.6*prox + 0.4*0.5
				want := 0.6*r.ProximityScore + 0.4*0.5
				if math.Abs(r.CompositeScore-want) > 1e-9 {
					t.Errorf("composite for unknown reliability = %f, want %f", r.CompositeScore, want)
				}
			}
		}
	})

	t.Run("LimitRespected", func(t *testing.T) {
		limited, err := scorer.ScoreFromPoint(ctx, refLat, refLon, 2, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 results, got %d", len(limited))
		}
		// Truncation must keep the top-scored entries.
		if limited[0].VendorID != results[0].VendorID {
			t.Errorf("limit changed ranking head: %s vs %s", limited[0].VendorID, results[0].VendorID)
		}
	})

	t.Run("ReliabilityFloorFilters", func(t *testing.T) {
		filtered, err := scorer.ScoreFromPoint(ctx, refLat, refLon, 50, floatPtr(0.9))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(filtered) != 1 || filtered[0].VendorID != "far-great" {
			t.Errorf("expected only far-great past floor, got %d results", len(filtered))
		}
	})
}

func TestCompositeBlendPolicy(t *testing.T) {
	// A distant but highly reliable vendor should outrank a near but
	// unreliable one under a reliability-heavy blend.
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	repo.SaveVendor(ctx, &domain.Vendor{VendorID: "near-bad", Name: "Near Bad", Latitude: floatPtr(39.75), Longitude: floatPtr(-104.99), ReliabilityScore: floatPtr(0.1), IsActive: true})
	repo.SaveVendor(ctx, &domain.Vendor{VendorID: "far-good", Name: "Far Good", Latitude: floatPtr(40.6), Longitude: floatPtr(-105.1), ReliabilityScore: floatPtr(1.0), IsActive: true})

	cfg := domain.DefaultScoringConfig()
	cfg.ProximityWeight = 0.2
	cfg.ReliabilityWeight = 0.8
	scorer := NewScorer(repo, cfg)

	results, err := scorer.ScoreFromPoint(ctx, refLat, refLon, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].VendorID != "far-good" {
		t.Errorf("reliability-heavy blend should rank far-good first, got %s", results[0].VendorID)
	}
}

func TestScoreForMarket(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seedVendors(t, repo)
	ctx := context.Background()

	repo.SaveMarket(ctx, &domain.GeographicMarket{
		MarketID:   "MKT-DEN",
		RegionName: "mountain_west",
		Latitude:   refLat,
		Longitude:  refLon,
		IsActive:   true,
	})

	scorer := NewScorer(repo, domain.DefaultScoringConfig())

	t.Run("ResolvesCentroid", func(t *testing.T) {
		results, err := scorer.ScoreForMarket(ctx, "MKT-DEN", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) == 0 {
			t.Errorf("expected vendors for known market")
		}
	})

	t.Run("UnknownMarketIsEmptyNotError", func(t *testing.T) {
		results, err := scorer.ScoreForMarket(ctx, "MKT-missing", 10)
		if err != nil {
			t.Fatalf("unknown market should not error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected empty result for unknown market, got %d", len(results))
		}
	})
}

func TestNearestCenters(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	centers := []*domain.DistributionCenter{
		{CenterID: "dc-close", Name: "Close", Latitude: 39.75, Longitude: -105.0, ServiceRadiusMiles: 50, IsActive: true},
		{CenterID: "dc-mid", Name: "Mid", Latitude: 40.5, Longitude: -105.1, ServiceRadiusMiles: 25, IsActive: true},
		{CenterID: "dc-far", Name: "Far", Latitude: 35.0, Longitude: -106.6, ServiceRadiusMiles: 0, IsActive: true},
		{CenterID: "dc-off", Name: "Off", Latitude: 39.7, Longitude: -105.0, IsActive: false},
	}
	for _, c := range centers {
		if err := repo.SaveCenter(ctx, c); err != nil {
			t.Fatalf("failed to seed center: %v", err)
		}
	}

	scorer := NewScorer(repo, domain.DefaultScoringConfig())
	results, err := scorer.NearestCenters(ctx, refLat, refLon, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 active centers, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceMiles < results[i-1].DistanceMiles {
			t.Errorf("centers not sorted ascending by distance")
		}
	}
	if results[0].CenterID != "dc-close" {
		t.Errorf("expected dc-close first, got %s", results[0].CenterID)
	}
	if !results[0].WithinServiceArea {
		t.Errorf("dc-close should be within its 50 mile service radius")
	}
	for _, r := range results {
		if r.CenterID == "dc-mid" && r.WithinServiceArea {
			t.Errorf("dc-mid is ~55 miles out with a 25 mile radius; should be outside")
		}
		if r.CenterID == "dc-far" && r.WithinServiceArea {
			t.Errorf("center with unknown radius can never be within service area")
		}
	}
}
