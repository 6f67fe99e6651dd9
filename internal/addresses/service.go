package addresses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/geo"
	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateAddressInput carries a new address book entry.
type CreateAddressInput struct {
	CustomerID uuid.UUID
	Label      string
	Address    string
	Lat        *float64
	Lng        *float64
	IsDefault  bool
}

// UpdateAddressInput carries a partial edit; nil fields are untouched.
type UpdateAddressInput struct {
	Label     *string
	Address   *string
	Lat       *float64
	Lng       *float64
	IsDefault *bool
}

// Service manages the customer's delivery address book. At most one entry
// per customer is the default at any time.
type Service interface {
	Create(ctx context.Context, input CreateAddressInput) (*models.DeliveryAddress, error)
	List(ctx context.Context, customerID uuid.UUID) ([]models.DeliveryAddress, error)
	Update(ctx context.Context, customerID, addressID uuid.UUID, input UpdateAddressInput) (*models.DeliveryAddress, error)
	Delete(ctx context.Context, customerID, addressID uuid.UUID) error
	Snapshot(ctx context.Context, customerID, addressID uuid.UUID) (*types.AddressSnapshot, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds an addresses service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("addresses repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateAddressInput) (*models.DeliveryAddress, error) {
	label := strings.TrimSpace(input.Label)
	addressText := strings.TrimSpace(input.Address)
	if label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label is required")
	}
	if addressText == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}
	if err := validateCoords(input.Lat, input.Lng); err != nil {
		return nil, err
	}

	address := &models.DeliveryAddress{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		Label:      label,
		Address:    addressText,
		Lat:        input.Lat,
		Lng:        input.Lng,
		IsDefault:  input.IsDefault,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.IsDefault {
			if err := repo.ClearDefault(ctx, input.CustomerID); err != nil {
				return err
			}
		}
		_, err := repo.Create(ctx, address)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating address")
	}
	return address, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.DeliveryAddress, error) {
	rows, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing addresses")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, customerID, addressID uuid.UUID, input UpdateAddressInput) (*models.DeliveryAddress, error) {
	updates := map[string]any{}
	if input.Label != nil {
		label := strings.TrimSpace(*input.Label)
		if label == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "label cannot be empty")
		}
		updates["label"] = label
	}
	if input.Address != nil {
		addressText := strings.TrimSpace(*input.Address)
		if addressText == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "address cannot be empty")
		}
		updates["address"] = addressText
	}
	if input.Lat != nil || input.Lng != nil {
		if err := validateCoords(input.Lat, input.Lng); err != nil {
			return nil, err
		}
		updates["lat"] = input.Lat
		updates["lng"] = input.Lng
	}
	if input.IsDefault != nil {
		updates["is_default"] = *input.IsDefault
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	address, err := s.findOwned(ctx, customerID, addressID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.IsDefault != nil && *input.IsDefault {
			if err := repo.ClearDefault(ctx, customerID); err != nil {
				return err
			}
		}
		return repo.Update(ctx, address.ID, updates)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating address")
	}
	return s.findOwned(ctx, customerID, addressID)
}

func (s *service) Delete(ctx context.Context, customerID, addressID uuid.UUID) error {
	address, err := s.findOwned(ctx, customerID, addressID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, address.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting address")
	}
	return nil
}

// Snapshot copies an address book entry into the frozen form orders carry.
func (s *service) Snapshot(ctx context.Context, customerID, addressID uuid.UUID) (*types.AddressSnapshot, error) {
	address, err := s.findOwned(ctx, customerID, addressID)
	if err != nil {
		return nil, err
	}
	return &types.AddressSnapshot{
		Label:   address.Label,
		Address: address.Address,
		Lat:     address.Lat,
		Lng:     address.Lng,
	}, nil
}

func (s *service) findOwned(ctx context.Context, customerID, addressID uuid.UUID) (*models.DeliveryAddress, error) {
	address, err := s.repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading address")
	}
	if address.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return address, nil
}

func validateCoords(lat, lng *float64) error {
	if lat == nil && lng == nil {
		return nil
	}
	if lat == nil || lng == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must be provided together")
	}
	if !geo.ValidCoordinates(*lat, *lng) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	return nil
}
