package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
)

// Line pairs a product with the quantity being taken from stock.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// StockShortage describes the product that blocked a batch decrement.
type StockShortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Service exposes the stock ledger operations.
type Service interface {
	GetCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
	SetCount(ctx context.Context, vendorID, productID uuid.UUID, count int) error
	DecrementBatch(ctx context.Context, tx *gorm.DB, lines []Line) error
}

type service struct {
	repo Repository
}

// NewService builds an inventory service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return s.repo.GetCounts(ctx, productIDs)
}

func (s *service) SetCount(ctx context.Context, vendorID, productID uuid.UUID, count int) error {
	if count < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory count cannot be negative")
	}
	updated, err := s.repo.SetCount(ctx, vendorID, productID, count)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating inventory count")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// DecrementBatch takes stock for every line or none. It must run inside the
// caller's transaction: the first shortage aborts, and the rollback restores
// any counts already taken.
func (s *service) DecrementBatch(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if _, err := repo.Decrement(ctx, line.ProductID, line.Quantity); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrementing inventory")
			}
			// Guard matched no row: either the product is gone or the
			// count is short. Re-read inside the tx to tell them apart.
			product, findErr := repo.FindProduct(ctx, line.ProductID)
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"product_id": line.ProductID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "loading product after failed decrement")
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(StockShortage{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: product.InventoryCount,
				})
		}
	}
	return nil
}
