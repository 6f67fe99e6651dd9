package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a customer rating for a vendor, 1 through 5.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID   uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`
	Rating     int       `gorm:"column:rating;not null"`
	Comment    *string   `gorm:"column:comment"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
