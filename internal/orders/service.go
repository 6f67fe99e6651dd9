package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/internal/inventory"
	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox/payloads"
	"github.com/mercadito-app/mercadito-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockLedger interface {
	DecrementBatch(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// Service exposes order placement and the lifecycle state machine.
type Service interface {
	Place(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	GetForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	GetForVendor(ctx context.Context, vendorID, orderID uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, filter VendorListFilter, params pagination.Params) (*OrderList, error)
	Transition(ctx context.Context, vendorID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
}

type service struct {
	repo   Repository
	stock  stockLedger
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, stock stockLedger, tx txRunner, ob outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, stock: stock, tx: tx, outbox: ob}, nil
}

// Place creates the order with item prices and the delivery address frozen
// at this moment. Inventory is untouched here; stock is taken when the
// vendor accepts.
func (s *service) Place(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	seen := make(map[uuid.UUID]bool, len(input.Items))
	productIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if seen[item.ProductID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		seen[item.ProductID] = true
		productIDs = append(productIDs, item.ProductID)
	}

	if input.DeliveryAddress != nil && !input.DeliveryAddress.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is incomplete")
	}

	products, err := s.repo.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	var vendorID uuid.UUID
	items := make([]models.OrderItem, 0, len(input.Items))
	total := decimal.Zero
	for _, line := range input.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if vendorID == uuid.Nil {
			vendorID = product.VendorID
		} else if product.VendorID != vendorID {
			return nil, pkgerrors.New(pkgerrors.CodeCrossVendor, "all items must belong to one vendor").
				WithDetails(map[string]any{"product_id": product.ID})
		}
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		VendorID:        vendorID,
		Status:          enums.OrderStatusPlaced,
		TotalAmount:     total,
		OrderDate:       time.Now(),
		DeliveryAddress: input.DeliveryAddress,
		Items:           items,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				VendorID:    order.VendorID,
				TotalAmount: order.TotalAmount,
				ItemCount:   len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, asTyped(err, "placing order")
	}
	return order, nil
}

func (s *service) GetForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) GetForVendor(ctx context.Context, vendorID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, asTyped(err, "listing orders")
	}
	return list, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, filter VendorListFilter, params pagination.Params) (*OrderList, error) {
	if filter.Status != nil {
		if _, err := enums.ParseOrderStatus(*filter.Status); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
				WithDetails(map[string]any{"status": *filter.Status})
		}
	}
	list, err := s.repo.ListByVendor(ctx, vendorID, filter, params)
	if err != nil {
		return nil, asTyped(err, "listing orders")
	}
	return list, nil
}

// Transition advances an order one step through its lifecycle. Acceptance
// takes stock for every item in the same transaction as the status write, so
// an inventory shortage leaves the order placed and the ledger untouched. A
// compare-and-swap on the status column resolves concurrent transitions:
// exactly one caller wins, the rest get a state conflict.
func (s *service) Transition(ctx context.Context, vendorID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": target})
	}

	order, err := s.GetForVendor(ctx, vendorID, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !from.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").
			WithDetails(map[string]any{"from": from, "to": target})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if target == enums.OrderStatusAccepted {
			lines := make([]inventory.Line, 0, len(order.Items))
			for _, item := range order.Items {
				lines = append(lines, inventory.Line{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
				})
			}
			if err := s.stock.DecrementBatch(ctx, tx, lines); err != nil {
				return err
			}
		}

		swapped, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, target)
		if err != nil {
			return err
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
				WithDetails(map[string]any{"from": from, "to": target})
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				VendorID:   order.VendorID,
				FromStatus: from,
				ToStatus:   target,
				ChangedAt:  time.Now(),
			},
		})
	})
	if err != nil {
		return nil, asTyped(err, "transitioning order")
	}

	order.Status = target
	return order, nil
}

func (s *service) find(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

// asTyped keeps domain error codes intact across transaction boundaries and
// wraps everything else as internal.
func asTyped(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}
