package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

// VendorLocation is the latest location snapshot per vendor. The table is
// keyed by vendor_id and written with an upsert, so only the most recent
// update survives; stale updates never accumulate.
type VendorLocation struct {
	VendorID  uuid.UUID             `gorm:"column:vendor_id;type:uuid;primaryKey"`
	Location  *types.GeographyPoint `gorm:"column:location;type:geography(Point,4326)"`
	IsActive  bool                  `gorm:"column:is_active;not null;default:false"`
	UpdatedAt time.Time             `gorm:"column:updated_at;not null"`
}
