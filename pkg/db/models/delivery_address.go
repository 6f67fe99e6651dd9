package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAddress is a labeled entry in the customer's address book. At most
// one entry per customer carries IsDefault.
type DeliveryAddress struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	Label      string    `gorm:"column:label;not null"`
	Address    string    `gorm:"column:address;not null"`
	Lat        *float64  `gorm:"column:lat"`
	Lng        *float64  `gorm:"column:lng"`
	IsDefault  bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
