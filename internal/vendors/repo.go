package vendors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
)

// Repository defines persistence for vendors, their locations, and the
// aggregation view.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, vendor *models.Vendor) (*models.Vendor, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Vendor, error)
	ListNearby(ctx context.Context, query NearbyQuery, limit int) ([]VendorSummary, error)
	ListSummaries(ctx context.Context, origin *Origin) ([]VendorSummary, error)
	FindSummary(ctx context.Context, vendorID uuid.UUID, origin *Origin) (*VendorSummary, error)
	UpsertLocation(ctx context.Context, vendorID uuid.UUID, update LocationUpdate, at time.Time) error
	GetLocation(ctx context.Context, vendorID uuid.UUID) (*models.VendorLocation, error)
	DeactivateStaleLocations(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vendors repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, vendor *models.Vendor) (*models.Vendor, error) {
	if err := r.db.WithContext(ctx).Create(vendor).Error; err != nil {
		return nil, err
	}
	return vendor, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// summaryRow is the raw scan target shared by the aggregation queries.
type summaryRow struct {
	ID             uuid.UUID
	BusinessName   string
	Contact        string
	DistanceMeters int
	IsActive       bool
	AvgRating      float64
	ReviewCount    int
	RecentProducts json.RawMessage
}

// aggregationJoins enriches each vendor with review stats and a 3-row
// in-stock product sample. The LATERAL subquery orders by created_at then id
// so ties resolve the same way on every execution.
const aggregationJoins = `
LEFT JOIN LATERAL (
    SELECT COALESCE(AVG(rating), 0)::float8 AS avg_rating,
           COUNT(*)                         AS review_count
    FROM reviews
    WHERE reviews.vendor_id = v.id
) stats ON true
LEFT JOIN LATERAL (
    SELECT COALESCE(json_agg(json_build_object('name', sample.name, 'price', sample.price)), '[]'::json) AS recent_products
    FROM (
        SELECT name, price
        FROM products
        WHERE products.vendor_id = v.id AND products.inventory_count > 0
        ORDER BY created_at DESC, id DESC
        LIMIT 3
    ) sample
) recent ON true`

// ListNearby answers the radius query: active latest-snapshot locations
// only, geodesic distance, nearest first.
func (r *repository) ListNearby(ctx context.Context, query NearbyQuery, limit int) ([]VendorSummary, error) {
	sql := `
SELECT v.id,
       v.business_name,
       v.contact,
       CAST(ST_Distance(vl.location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) AS integer) AS distance_meters,
       vl.is_active,
       stats.avg_rating,
       stats.review_count,
       recent.recent_products
FROM vendor_locations vl
JOIN vendors v ON v.id = vl.vendor_id` + aggregationJoins + `
WHERE vl.is_active
  AND vl.location IS NOT NULL
  AND ST_DWithin(vl.location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)
ORDER BY distance_meters ASC, v.id ASC
LIMIT ?`

	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Raw(sql, query.Lng, query.Lat, query.Lng, query.Lat, query.MaxMeters, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return buildSummaries(rows)
}

// ListSummaries is the unfiltered listing ordered by business name. With an
// origin, vendors that have a location get a real distance; everyone else
// keeps the 0 sentinel.
func (r *repository) ListSummaries(ctx context.Context, origin *Origin) ([]VendorSummary, error) {
	distanceExpr := "0 AS distance_meters"
	args := []any{}
	if origin != nil {
		distanceExpr = `COALESCE(CAST(ST_Distance(vl.location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) AS integer), 0) AS distance_meters`
		args = append(args, origin.Lng, origin.Lat)
	}

	sql := `
SELECT v.id,
       v.business_name,
       v.contact,
       ` + distanceExpr + `,
       COALESCE(vl.is_active, false) AS is_active,
       stats.avg_rating,
       stats.review_count,
       recent.recent_products
FROM vendors v
LEFT JOIN vendor_locations vl ON vl.vendor_id = v.id` + aggregationJoins + `
ORDER BY v.business_name ASC, v.id ASC`

	var rows []summaryRow
	if err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return buildSummaries(rows)
}

func (r *repository) FindSummary(ctx context.Context, vendorID uuid.UUID, origin *Origin) (*VendorSummary, error) {
	distanceExpr := "0 AS distance_meters"
	args := []any{}
	if origin != nil {
		distanceExpr = `COALESCE(CAST(ST_Distance(vl.location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) AS integer), 0) AS distance_meters`
		args = append(args, origin.Lng, origin.Lat)
	}
	args = append(args, vendorID)

	sql := `
SELECT v.id,
       v.business_name,
       v.contact,
       ` + distanceExpr + `,
       COALESCE(vl.is_active, false) AS is_active,
       stats.avg_rating,
       stats.review_count,
       recent.recent_products
FROM vendors v
LEFT JOIN vendor_locations vl ON vl.vendor_id = v.id` + aggregationJoins + `
WHERE v.id = ?`

	var rows []summaryRow
	if err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	summaries, err := buildSummaries(rows)
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

// UpsertLocation replaces the vendor's snapshot: last write wins, older
// pings never accumulate.
func (r *repository) UpsertLocation(ctx context.Context, vendorID uuid.UUID, update LocationUpdate, at time.Time) error {
	sql := `
INSERT INTO vendor_locations (vendor_id, location, is_active, updated_at)
VALUES (?, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?, ?)
ON CONFLICT (vendor_id) DO UPDATE SET
    location = EXCLUDED.location,
    is_active = EXCLUDED.is_active,
    updated_at = EXCLUDED.updated_at`
	return r.db.WithContext(ctx).
		Exec(sql, vendorID, update.Lng, update.Lat, update.IsActive, at).Error
}

func (r *repository) GetLocation(ctx context.Context, vendorID uuid.UUID) (*models.VendorLocation, error) {
	var location models.VendorLocation
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// DeactivateStaleLocations flips is_active off for vendors that stopped
// pinging before the cutoff.
func (r *repository) DeactivateStaleLocations(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VendorLocation{}).
		Where("is_active = ?", true).
		Where("updated_at < ?", cutoff).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func buildSummaries(rows []summaryRow) ([]VendorSummary, error) {
	summaries := make([]VendorSummary, 0, len(rows))
	for _, row := range rows {
		summary := VendorSummary{
			ID:             row.ID,
			BusinessName:   row.BusinessName,
			Contact:        row.Contact,
			DistanceMeters: row.DistanceMeters,
			IsActive:       row.IsActive,
			AvgRating:      row.AvgRating,
			ReviewCount:    row.ReviewCount,
			RecentProducts: []RecentProduct{},
		}
		if len(row.RecentProducts) > 0 {
			if err := json.Unmarshal(row.RecentProducts, &summary.RecentProducts); err != nil {
				return nil, err
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
