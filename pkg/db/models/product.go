package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a vendor-owned catalog entry. InventoryCount is the ledger
// balance and never goes negative; decrements happen server-side (see the
// inventory ledger).
type Product struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID       uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name           string          `gorm:"column:name;not null"`
	Description    *string         `gorm:"column:description"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	InventoryCount int             `gorm:"column:inventory_count;not null;default:0"`
	ExpirationDate *time.Time      `gorm:"column:expiration_date"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
