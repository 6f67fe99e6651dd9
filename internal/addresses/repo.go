package addresses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
)

// Repository defines persistence for customer address books.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, address *models.DeliveryAddress) (*models.DeliveryAddress, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryAddress, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.DeliveryAddress, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClearDefault(ctx context.Context, customerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an addresses repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, address *models.DeliveryAddress) (*models.DeliveryAddress, error) {
	if err := r.db.WithContext(ctx).Create(address).Error; err != nil {
		return nil, err
	}
	return address, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryAddress, error) {
	var address models.DeliveryAddress
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.DeliveryAddress, error) {
	var rows []models.DeliveryAddress
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAddress{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.DeliveryAddress{}).Error
}

// ClearDefault drops the default flag from every entry in the customer's
// book. Run it inside the same transaction that sets the new default.
func (r *repository) ClearDefault(ctx context.Context, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAddress{}).
		Where("customer_id = ? AND is_default", customerID).
		Update("is_default", false).Error
}
