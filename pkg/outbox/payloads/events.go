package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito-app/mercadito-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order placed by a customer.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderStatusChangedEvent is emitted on every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	VendorID   uuid.UUID         `json:"vendor_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// ProductChangedEvent covers catalog create, update, and delete so nearby
// listings can refresh their snippets.
type ProductChangedEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Change    string    `json:"change"`
	InStock   bool      `json:"in_stock"`
}

// VendorLocationUpdatedEvent reports a fresh location snapshot.
type VendorLocationUpdatedEvent struct {
	VendorID  uuid.UUID `json:"vendor_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}
