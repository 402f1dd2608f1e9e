package domain

import (
	"time"
)

// GeographicMarket defines a named pricing region with a centroid and a
// cost-of-living index used to contextualize regional benchmarks.
type GeographicMarket struct {
	MarketID   string `json:"marketId"`
	RegionName string `json:"regionName"`
	RegionCode string `json:"regionCode,omitempty"`

	// ISO country code, defaults to "USA"
	CountryCode string `json:"countryCode,omitempty"`

	// Centroid
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Optional bounding box
	BBox *BoundingBox `json:"bbox,omitempty"`

	// CostOfLivingIndex is relative to a 1.0 national baseline. Valid
	// range is roughly [0.1, 5.0]; the ingestion layer rejects values
	// outside it.
	CostOfLivingIndex float64 `json:"costOfLivingIndex"`

	// RegionalPriceMultiplier adjusts list prices for the region.
	RegionalPriceMultiplier float64 `json:"regionalPriceMultiplier,omitempty"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BoundingBox is a lat/lon rectangle around a market.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}
