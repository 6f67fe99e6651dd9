package vendors

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecentProduct is the name/price sample shown on vendor cards.
type RecentProduct struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// VendorSummary is the enriched vendor row returned by discovery and listing.
// AvgRating is 0 both when there are no reviews and when every review is 0;
// ReviewCount disambiguates. DistanceMeters is 0 when no query point was
// given or the vendor has no location ("unknown", not "here").
type VendorSummary struct {
	ID             uuid.UUID       `json:"id"`
	BusinessName   string          `json:"business_name"`
	Contact        string          `json:"contact"`
	Categories     []string        `json:"categories,omitempty"`
	DistanceMeters int             `json:"distance_meters"`
	IsActive       bool            `json:"is_active"`
	AvgRating      float64         `json:"avg_rating"`
	ReviewCount    int             `json:"review_count"`
	RecentProducts []RecentProduct `json:"recent_products"`
}

// NearbyQuery carries the discovery inputs.
type NearbyQuery struct {
	Lat       float64
	Lng       float64
	MaxMeters int
}

// Origin is an optional query point for distance-augmented listings.
type Origin struct {
	Lat float64
	Lng float64
}

// LocationUpdate is the vendor-session location ping.
type LocationUpdate struct {
	Lat      float64
	Lng      float64
	IsActive bool
}

// CreateVendorInput captures vendor onboarding fields.
type CreateVendorInput struct {
	OwnerID      uuid.UUID
	BusinessName string
	Contact      string
	Categories   []string
}

// LocationStatus is returned to vendors checking their own ping state.
type LocationStatus struct {
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}
