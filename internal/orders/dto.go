package orders

import (
	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

// OrderLineInput is one requested product line at placement time.
type OrderLineInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// PlaceOrderInput carries everything needed to place an order. The delivery
// address is snapshotted onto the order, never referenced.
type PlaceOrderInput struct {
	CustomerID      uuid.UUID
	Items           []OrderLineInput
	DeliveryAddress *types.AddressSnapshot
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// VendorListFilter narrows a vendor's order queue.
type VendorListFilter struct {
	Status *string
}
