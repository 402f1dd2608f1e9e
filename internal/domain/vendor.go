package domain

import (
	"time"
)

// Vendor represents a supplier that prices SKUs in one or more markets.
// The analytics core treats vendors as immutable snapshots; the ingestion
// layer owns their lifecycle.
type Vendor struct {
	VendorID string `json:"vendorId"`
	Name     string `json:"name"`

	// Classification (e.g., "manufacturer", "distributor", "retailer")
	Type string `json:"type,omitempty"`

	// Headquarters location
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`

	// Coordinates are optional; vendors without them are excluded from
	// proximity scoring.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// ReliabilityScore is in [0,1] when known.
	ReliabilityScore *float64 `json:"reliabilityScore,omitempty"`
	AvgLeadTimeDays  *int     `json:"avgLeadTimeDays,omitempty"`
	MinOrderValue    *float64 `json:"minOrderValue,omitempty"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasCoordinates reports whether the vendor can participate in
// distance-based scoring.
func (v *Vendor) HasCoordinates() bool {
	return v.Latitude != nil && v.Longitude != nil
}

// DistributionCenter is a shipping origin with an optional service radius.
type DistributionCenter struct {
	CenterID string `json:"centerId"`
	Name     string `json:"name"`

	// Type is e.g. "warehouse", "cross_dock", "fulfillment"
	Type string `json:"type,omitempty"`

	// Optional associations
	MarketID string `json:"marketId,omitempty"`
	VendorID string `json:"vendorId,omitempty"`

	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// ServiceRadiusMiles of 0 means the radius is unknown.
	ServiceRadiusMiles float64 `json:"serviceRadiusMiles,omitempty"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
