package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem captures one product line within an order. Price is the unit
// price at the time the order was placed, decoupled from the product's
// current price.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
}
