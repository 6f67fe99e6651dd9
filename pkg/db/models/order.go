package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

// Order belongs to one customer and one vendor. TotalAmount is frozen at
// placement; only Status mutates afterwards.
type Order struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	VendorID        uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null;index"`
	Status          enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'placed'"`
	TotalAmount     decimal.Decimal        `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderDate       time.Time              `gorm:"column:order_date;not null"`
	DeliveryAddress *types.AddressSnapshot `gorm:"column:delivery_address;type:jsonb"`
	Items           []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
