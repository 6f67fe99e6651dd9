package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Vendor represents the seller entity with a catalog and a live location.
type Vendor struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessName string         `gorm:"column:business_name;not null"`
	Contact      string         `gorm:"column:contact;not null"`
	Categories   pq.StringArray `gorm:"column:categories;type:text[]"`
	OwnerID      uuid.UUID      `gorm:"column:owner_id;type:uuid;not null"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
