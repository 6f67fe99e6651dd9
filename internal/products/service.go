package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

// CreateProductInput carries a new catalog entry.
type CreateProductInput struct {
	VendorID       uuid.UUID
	Name           string
	Description    *string
	Price          decimal.Decimal
	InventoryCount int
	ExpirationDate *time.Time
}

// UpdateProductInput carries a partial catalog edit; nil fields are untouched.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	ExpirationDate *time.Time
}

// ProductList is a cursor page of products.
type ProductList struct {
	Products   []models.Product `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Service exposes vendor-owned catalog management.
type Service interface {
	Create(ctx context.Context, input CreateProductInput) (*models.Product, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*models.Product, error)
	Delete(ctx context.Context, vendorID, productID uuid.UUID) error
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ProductList, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a products service with the required dependencies.
func NewService(repo Repository, tx txRunner, ob outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: ob}, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.InventoryCount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory count cannot be negative")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor is required")
	}

	product := &models.Product{
		ID:             uuid.New(),
		VendorID:       input.VendorID,
		Name:           name,
		Description:    input.Description,
		Price:          input.Price,
		InventoryCount: input.InventoryCount,
		ExpirationDate: input.ExpirationDate,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			return err
		}
		return s.emitChanged(ctx, tx, product, "create")
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
	}
	return product, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		updates["price"] = *input.Price
	}
	if input.ExpirationDate != nil {
		updates["expiration_date"] = *input.ExpirationDate
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	product, err := s.findOwned(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, product.ID, updates); err != nil {
			return err
		}
		return s.emitChanged(ctx, tx, product, "update")
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating product")
	}

	return s.Get(ctx, productID)
}

func (s *service) Delete(ctx context.Context, vendorID, productID uuid.UUID) error {
	product, err := s.findOwned(ctx, vendorID, productID)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Delete(ctx, product.ID); err != nil {
			return err
		}
		return s.emitChanged(ctx, tx, product, "delete")
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting product")
	}
	return nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ProductList, error) {
	list, err := s.repo.ListByVendor(ctx, vendorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}
	return list, nil
}

// findOwned loads the product and enforces vendor ownership. Foreign
// products surface as NotFound, not Forbidden, to avoid leaking catalog IDs.
func (s *service) findOwned(ctx context.Context, vendorID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if product.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) emitChanged(ctx context.Context, tx *gorm.DB, product *models.Product, change string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventProductChanged,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Data: payloads.ProductChangedEvent{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Change:    change,
			InStock:   product.InventoryCount > 0 && change != "delete",
		},
	})
}
