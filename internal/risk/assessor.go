// Package risk composes proximity, variance, and benchmark signals into
// entity-level risk assessments and optimal-vendor rankings.
package risk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opensupply/tradewind/internal/benchmark"
	"github.com/opensupply/tradewind/internal/domain"
	"github.com/opensupply/tradewind/internal/geo"
	"github.com/opensupply/tradewind/internal/proximity"
	"github.com/opensupply/tradewind/internal/repository"
	"github.com/opensupply/tradewind/internal/variance"
)

// Assessor orchestrates the analytics engines into risk verdicts. All
// scoring constants come from the RiskWeights policy so deployments can
// tune contributions without code changes.
type Assessor struct {
	repo        domain.Repository
	scorer      *proximity.Scorer
	detector    *variance.Detector
	benchmarker *benchmark.Benchmarker
	weights     domain.RiskWeights
}

// NewAssessor wires the assessor. A zero-valued weights struct is replaced
// with the documented defaults.
func NewAssessor(
	repo domain.Repository,
	scorer *proximity.Scorer,
	detector *variance.Detector,
	benchmarker *benchmark.Benchmarker,
	weights domain.RiskWeights,
) *Assessor {
	if weights == (domain.RiskWeights{}) {
		weights = domain.DefaultRiskWeights()
	}
	return &Assessor{
		repo:        repo,
		scorer:      scorer,
		detector:    detector,
		benchmarker: benchmarker,
		weights:     weights,
	}
}

// AssessVendorRisk scores one vendor across reliability, lead time, price
// variance, and optionally distance from a reference point. An unknown
// vendor is itself the maximum risk: CRITICAL with score 100.
func (a *Assessor) AssessVendorRisk(ctx context.Context, vendorID string, refLat, refLon *float64) (*domain.RiskAssessment, error) {
	assessment := &domain.RiskAssessment{
		AssessmentID: uuid.New().String(),
		EntityID:     vendorID,
		EntityType:   "vendor",
		Factors:      []domain.RiskFactor{},
		AssessedAt:   time.Now().UTC(),
	}

	vendor, err := a.repo.GetVendor(ctx, vendorID)
	if errors.Is(err, repository.ErrNotFound) {
		assessment.Level = domain.RiskCritical
		assessment.Score = 100.0
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "unknown_vendor",
			Contribution: 100.0,
		})
		assessment.Recommendations = []string{"Verify vendor exists in system"}
		return assessment, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor: %w", err)
	}

	score := 0.0

	if vendor.ReliabilityScore != nil {
		r := *vendor.ReliabilityScore
		contribution := (1 - r) * a.weights.ReliabilityMax
		score += contribution
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "reliability",
			Contribution: contribution,
			Detail:       map[string]any{"score": r},
		})
		if r < a.weights.ReliabilityFloor {
			assessment.Recommendations = append(assessment.Recommendations,
				fmt.Sprintf("Review vendor reliability, score below %.0f%%", a.weights.ReliabilityFloor*100))
		}
	} else {
		score += a.weights.UnknownReliability
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "reliability",
			Contribution: a.weights.UnknownReliability,
			Detail:       map[string]any{"score": nil},
		})
		assessment.Recommendations = append(assessment.Recommendations,
			"No reliability data, consider vendor review")
	}

	if vendor.AvgLeadTimeDays != nil && *vendor.AvgLeadTimeDays > a.weights.LeadTimeThresholdDays {
		days := *vendor.AvgLeadTimeDays
		contribution := min(a.weights.LeadTimeMax, float64(days-a.weights.LeadTimeThresholdDays))
		score += contribution
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "lead_time",
			Contribution: contribution,
			Detail:       map[string]any{"days": days},
		})
		assessment.Recommendations = append(assessment.Recommendations,
			fmt.Sprintf("Long lead time (%d days), consider alternatives", days))
	}

	outliers, err := a.detector.DetectVendorOutliers(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to detect vendor outliers: %w", err)
	}
	if len(outliers) > 0 {
		contribution := min(a.weights.OutlierMax, float64(len(outliers))*a.weights.OutlierUnit)
		score += contribution
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "price_variance",
			Contribution: contribution,
			Detail:       map[string]any{"outlierCount": len(outliers)},
		})
		assessment.Recommendations = append(assessment.Recommendations,
			fmt.Sprintf("Vendor has %d price outliers, review pricing strategy", len(outliers)))
	}

	if refLat != nil && refLon != nil && vendor.HasCoordinates() {
		distance := geo.Distance(*refLat, *refLon, *vendor.Latitude, *vendor.Longitude)
		if distance > a.weights.DistanceThresholdMiles {
			contribution := min(a.weights.DistanceMax,
				(distance-a.weights.DistanceThresholdMiles)/a.weights.DistanceDivisor)
			score += contribution
			assessment.Factors = append(assessment.Factors, domain.RiskFactor{
				Name:         "distance",
				Contribution: contribution,
				Detail:       map[string]any{"miles": distance},
			})
			assessment.Recommendations = append(assessment.Recommendations,
				fmt.Sprintf("Vendor is %.0f miles away, consider closer alternatives", distance))
		}
	}

	assessment.Score = geo.Clamp(score, 0, 100)
	assessment.Level = a.weights.LevelForScore(assessment.Score)
	return assessment, nil
}

// AssessRegionRisk scores a region on vendor concentration, price
// volatility, cost index, and data quality. A region with no pricing data
// at all is scored HIGH rather than erroring.
func (a *Assessor) AssessRegionRisk(ctx context.Context, region string) (*domain.RiskAssessment, error) {
	assessment := &domain.RiskAssessment{
		AssessmentID: uuid.New().String(),
		EntityID:     region,
		EntityType:   "region",
		Factors:      []domain.RiskFactor{},
		AssessedAt:   time.Now().UTC(),
	}

	bench, err := a.benchmarker.CalculateBenchmark(ctx, region, "")
	if err != nil {
		return nil, fmt.Errorf("failed to benchmark region: %w", err)
	}

	if bench.SampleSize == 0 {
		assessment.Level = domain.RiskHigh
		assessment.Score = a.weights.NoDataRegionScore
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "no_pricing_data",
			Contribution: a.weights.NoDataRegionScore,
		})
		assessment.Recommendations = []string{"Add vendor coverage for this region"}
		return assessment, nil
	}

	score := 0.0

	if bench.VendorCount < a.weights.MinVendors {
		contribution := float64(a.weights.MinVendors-bench.VendorCount) * a.weights.ConcentrationUnit
		score += contribution
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "vendor_concentration",
			Contribution: contribution,
			Detail:       map[string]any{"vendorCount": bench.VendorCount},
		})
		assessment.Recommendations = append(assessment.Recommendations,
			fmt.Sprintf("Low vendor diversity (%d vendors), increase supplier base", bench.VendorCount))
	}

	if bench.Mean > 0 {
		cv := bench.Std / bench.Mean * 100
		if cv > a.weights.VolatilityCVThreshold {
			contribution := min(a.weights.VolatilityMax,
				(cv-a.weights.VolatilityCVThreshold)*a.weights.VolatilityScale)
			score += contribution
			assessment.Factors = append(assessment.Factors, domain.RiskFactor{
				Name:         "price_volatility",
				Contribution: contribution,
				Detail:       map[string]any{"coefficientOfVariation": cv},
			})
			assessment.Recommendations = append(assessment.Recommendations,
				fmt.Sprintf("High price volatility in region (CV: %.1f%%)", cv))
		}
	}

	if bench.CostIndex > a.weights.CostIndexThreshold {
		contribution := (bench.CostIndex - 1.0) * a.weights.CostIndexScale
		score += contribution
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "cost_index",
			Contribution: contribution,
			Detail:       map[string]any{"index": bench.CostIndex},
		})
		assessment.Recommendations = append(assessment.Recommendations,
			fmt.Sprintf("High cost region (index: %.2f), budget accordingly", bench.CostIndex))
	}

	if bench.SampleSize < a.weights.DataQualityMinSamples {
		contribution := float64(a.weights.DataQualityMinSamples-bench.SampleSize) * a.weights.DataQualityUnit
		score += contribution
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Name:         "data_quality",
			Contribution: contribution,
			Detail:       map[string]any{"sampleSize": bench.SampleSize},
		})
		assessment.Recommendations = append(assessment.Recommendations,
			"Limited pricing data, increase data collection")
	}

	assessment.Score = geo.Clamp(score, 0, 100)
	assessment.Level = a.weights.LevelForScore(assessment.Score)
	return assessment, nil
}

// FindOptimalVendors ranks vendors near a point by a combined score:
// proximity * reliability * (1 - risk/100). It scans twice the requested
// limit of proximity candidates, drops those beyond maxDistance, assesses
// the survivors, and returns the top limit sorted by overall score.
// skuIDs is accepted for callers that scope a search to specific SKUs;
// it does not yet narrow the candidate set.
func (a *Assessor) FindOptimalVendors(ctx context.Context, lat, lon float64, skuIDs []string, maxDistance float64, limit int) ([]domain.VendorRecommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	if maxDistance <= 0 {
		maxDistance = 200.0
	}

	candidates, err := a.scorer.ScoreFromPoint(ctx, lat, lon, limit*2, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to score vendors: %w", err)
	}

	recommendations := []domain.VendorRecommendation{}
	for _, c := range candidates {
		if c.DistanceMiles > maxDistance {
			continue
		}
		if len(recommendations) >= limit {
			break
		}

		assessment, err := a.AssessVendorRisk(ctx, c.VendorID, &lat, &lon)
		if err != nil {
			return nil, fmt.Errorf("failed to assess vendor %s: %w", c.VendorID, err)
		}

		reliability := 0.5
		if c.ReliabilityScore != nil {
			reliability = *c.ReliabilityScore
		}
		overall := c.ProximityScore * reliability * (1 - assessment.Score/100)

		topRecs := assessment.Recommendations
		if len(topRecs) > 3 {
			topRecs = topRecs[:3]
		}

		recommendations = append(recommendations, domain.VendorRecommendation{
			VendorID:         c.VendorID,
			VendorName:       c.VendorName,
			DistanceMiles:    c.DistanceMiles,
			ProximityScore:   c.ProximityScore,
			ReliabilityScore: c.ReliabilityScore,
			RiskLevel:        assessment.Level,
			RiskScore:        assessment.Score,
			OverallScore:     overall,
			Recommendations:  topRecs,
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].OverallScore > recommendations[j].OverallScore
	})
	return recommendations, nil
}
