package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingObservation is a single vendor price for a SKU, optionally tagged
// with a region and market. Prices carry fixed-precision decimal semantics:
// they are stored and serialized as decimals and only converted to float64
// at the statistics boundary.
type PricingObservation struct {
	SKUID    string `json:"skuId"`
	VendorID string `json:"vendorId"`
	MarketID string `json:"marketId,omitempty"`

	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`

	// Region is the geographic region label ("" when unknown).
	Region string `json:"region,omitempty"`

	// Category is the product category of the SKU.
	Category string `json:"category,omitempty"`

	EffectiveDate time.Time `json:"effectiveDate"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PricePoint is a historical price sample used for volatility analysis.
type PricePoint struct {
	SKUID    string `json:"skuId"`
	VendorID string `json:"vendorId"`

	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Region   string          `json:"region,omitempty"`

	RecordedAt time.Time `json:"recordedAt"`
}

// PricingFilter narrows pricing queries. Zero values mean "no filter";
// a zero Since means no recency window.
type PricingFilter struct {
	SKUID    string
	VendorID string
	Region   string
	Category string
	Since    time.Time
}

// ProductCategories is the fixed category set used for category-level
// benchmarking.
var ProductCategories = []string{
	"flooring",
	"building_materials",
	"electrical",
	"plumbing",
	"hvac",
	"hardware",
	"lumber",
	"paint",
	"tools",
	"other",
}

// Supported currencies. Pricing math assumes observations within a group
// share a currency; cross-currency normalization is upstream's concern.
const (
	CurrencyUSD = "USD"
	CurrencyCAD = "CAD"
	CurrencyEUR = "EUR"
)
