package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
)

// Repository defines persistence operations against product stock counts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
	Decrement(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	SetCount(ctx context.Context, vendorID, productID uuid.UUID, count int) (bool, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// GetCounts returns current stock per product. Unknown IDs are skipped so a
// stale cart does not fail the whole read.
func (r *repository) GetCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ID             uuid.UUID
		InventoryCount int
	}
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("id", "inventory_count").
		Where("id IN ?", productIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ID] = row.InventoryCount
	}
	return counts, nil
}

// Decrement atomically subtracts qty, guarded so the count never drops below
// zero. The arithmetic happens in the database, not in Go, so concurrent
// orders serialize on the row. Returns the remaining count.
func (r *repository) Decrement(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	result := r.db.WithContext(ctx).Exec(
		"UPDATE products SET inventory_count = inventory_count - ?, updated_at = ? WHERE id = ? AND inventory_count >= ?",
		qty, time.Now(), productID, qty,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var remaining int
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("inventory_count").
		Where("id = ?", productID).
		Scan(&remaining).Error
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// SetCount replaces the stock count for a product owned by the vendor.
// Returns false when no matching row exists.
func (r *repository) SetCount(ctx context.Context, vendorID, productID uuid.UUID, count int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND vendor_id = ?", productID, vendorID).
		Updates(map[string]any{
			"inventory_count": count,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
