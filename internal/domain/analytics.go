package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel classifies a numeric risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AnomalyType classifies a pricing anomaly.
type AnomalyType string

const (
	AnomalyPriceSpike      AnomalyType = "price_spike"
	AnomalyPriceDrop       AnomalyType = "price_drop"
	AnomalyRegionalOutlier AnomalyType = "regional_outlier"
	AnomalyVendorOutlier   AnomalyType = "vendor_outlier"
	AnomalyTemporal        AnomalyType = "temporal_anomaly"
)

// ProximityResult ranks one vendor relative to a reference point.
type ProximityResult struct {
	VendorID   string `json:"vendorId"`
	VendorName string `json:"vendorName"`

	DistanceMiles float64 `json:"distanceMiles"`

	// ProximityScore is in [0,1]; higher is closer.
	ProximityScore float64 `json:"proximityScore"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	ReliabilityScore *float64 `json:"reliabilityScore,omitempty"`
	AvgLeadTimeDays  *int     `json:"avgLeadTimeDays,omitempty"`

	// CompositeScore blends proximity and reliability.
	CompositeScore float64 `json:"compositeScore"`
}

// CenterProximity describes a distribution center's distance from a point.
type CenterProximity struct {
	CenterID   string `json:"centerId"`
	CenterName string `json:"centerName"`
	CenterType string `json:"centerType,omitempty"`

	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`

	DistanceMiles      float64 `json:"distanceMiles"`
	ServiceRadiusMiles float64 `json:"serviceRadiusMiles,omitempty"`

	// WithinServiceArea is true iff the radius is known and the distance
	// falls inside it.
	WithinServiceArea bool `json:"withinServiceArea"`
}

// VarianceResult is one flagged price observation relative to its
// (region, SKU) population.
type VarianceResult struct {
	SKUID    string `json:"skuId"`
	VendorID string `json:"vendorId,omitempty"`
	Region   string `json:"region"`

	Price        decimal.Decimal `json:"price"`
	RegionalMean float64         `json:"regionalMean"`
	RegionalStd  float64         `json:"regionalStd"`

	ZScore      float64 `json:"zScore"`
	VariancePct float64 `json:"variancePct"`

	IsAnomaly   bool        `json:"isAnomaly"`
	AnomalyType AnomalyType `json:"anomalyType,omitempty"`
}

// VolatilityReport summarizes price movement for a SKU over a window.
type VolatilityReport struct {
	SKUID    string `json:"skuId"`
	VendorID string `json:"vendorId,omitempty"`

	DataPoints int `json:"dataPoints"`

	Mean                   float64 `json:"mean"`
	Std                    float64 `json:"std"`
	CoefficientOfVariation float64 `json:"coefficientOfVariation"`
	ReturnVolatilityPct    float64 `json:"returnVolatilityPct"`
	Min                    float64 `json:"min"`
	Max                    float64 `json:"max"`

	// VolatilityLevel is "low", "moderate", "high", or "insufficient_data"
	// when fewer than two points exist.
	VolatilityLevel string `json:"volatilityLevel"`
	Message         string `json:"message,omitempty"`
}

// Volatility level classifications.
const (
	VolatilityLow          = "low"
	VolatilityModerate     = "moderate"
	VolatilityHigh         = "high"
	VolatilityInsufficient = "insufficient_data"
)

// RegionalBenchmark aggregates pricing distribution statistics for a region
// and optional category.
type RegionalBenchmark struct {
	Region   string `json:"region"`
	Category string `json:"category,omitempty"`
	MarketID string `json:"marketId,omitempty"`

	SKUCount    int `json:"skuCount"`
	VendorCount int `json:"vendorCount"`

	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Std          float64 `json:"std"`
	Percentile25 float64 `json:"percentile25"`
	Percentile75 float64 `json:"percentile75"`

	CostIndex  float64 `json:"costIndex"`
	SampleSize int     `json:"sampleSize"`
}

// RiskFactor is one named contribution to a risk score. Factors form an
// ordered slice so consumers can iterate deterministically.
type RiskFactor struct {
	Name         string         `json:"name"`
	Contribution float64        `json:"contribution"`
	Detail       map[string]any `json:"detail,omitempty"`
}

// RiskAssessment is the composite risk verdict for a vendor or region.
type RiskAssessment struct {
	AssessmentID string `json:"assessmentId"`
	EntityID     string `json:"entityId"`

	// EntityType is "vendor" or "region".
	EntityType string `json:"entityType"`

	Level RiskLevel `json:"riskLevel"`

	// Score is clamped to [0,100].
	Score float64 `json:"riskScore"`

	Factors         []RiskFactor `json:"factors"`
	Recommendations []string     `json:"recommendations"`

	AssessedAt time.Time `json:"assessedAt"`
}

// Factor returns the factor with the given name, or nil.
func (a *RiskAssessment) Factor(name string) *RiskFactor {
	for i := range a.Factors {
		if a.Factors[i].Name == name {
			return &a.Factors[i]
		}
	}
	return nil
}

// VendorRecommendation is one ranked entry from optimal-vendor search.
type VendorRecommendation struct {
	VendorID   string `json:"vendorId"`
	VendorName string `json:"vendorName"`

	DistanceMiles    float64  `json:"distanceMiles"`
	ProximityScore   float64  `json:"proximityScore"`
	ReliabilityScore *float64 `json:"reliabilityScore,omitempty"`

	RiskLevel RiskLevel `json:"riskLevel"`
	RiskScore float64   `json:"riskScore"`

	// OverallScore = proximity * reliability * (1 - risk/100).
	OverallScore float64 `json:"overallScore"`

	Recommendations []string `json:"recommendations,omitempty"`
}
