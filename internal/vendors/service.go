package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/geo"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox/payloads"
)

const (
	// DefaultRadiusMeters applies when the caller does not pick a radius.
	DefaultRadiusMeters = 30000
	// NearbyLimit caps how many vendors a radius query returns.
	NearbyLimit = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes vendor discovery, aggregation, and the location write path.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateVendorInput) (*models.Vendor, error)
	ListNearby(ctx context.Context, query NearbyQuery) ([]VendorSummary, error)
	ListSummaries(ctx context.Context, origin *Origin) ([]VendorSummary, error)
	GetSummary(ctx context.Context, vendorID uuid.UUID, origin *Origin) (*VendorSummary, error)
	UpdateLocation(ctx context.Context, vendorID uuid.UUID, update LocationUpdate) error
	GetLocationStatus(ctx context.Context, vendorID uuid.UUID) (*LocationStatus, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a vendors service with the required dependencies.
func NewService(repo Repository, tx txRunner, ob outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: ob}, nil
}

// Create inserts the vendor row. It runs inside the caller's transaction so
// registration can link users.vendor_id atomically.
func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateVendorInput) (*models.Vendor, error) {
	name := strings.TrimSpace(input.BusinessName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business name is required")
	}
	contact := strings.TrimSpace(input.Contact)
	if contact == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact is required")
	}
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner is required")
	}

	vendor := &models.Vendor{
		ID:           uuid.New(),
		BusinessName: name,
		Contact:      contact,
		Categories:   input.Categories,
		OwnerID:      input.OwnerID,
	}
	created, err := s.repo.WithTx(tx).Create(ctx, vendor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating vendor")
	}
	return created, nil
}

func (s *service) ListNearby(ctx context.Context, query NearbyQuery) ([]VendorSummary, error) {
	if !geo.ValidCoordinates(query.Lat, query.Lng) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coordinates").
			WithDetails(map[string]any{"lat": query.Lat, "lng": query.Lng})
	}
	if query.MaxMeters == 0 {
		query.MaxMeters = DefaultRadiusMeters
	}
	if query.MaxMeters < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "radius must be positive")
	}

	summaries, err := s.repo.ListNearby(ctx, query, NearbyLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "querying nearby vendors")
	}
	return summaries, nil
}

func (s *service) ListSummaries(ctx context.Context, origin *Origin) ([]VendorSummary, error) {
	if origin != nil && !geo.ValidCoordinates(origin.Lat, origin.Lng) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coordinates")
	}
	summaries, err := s.repo.ListSummaries(ctx, origin)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing vendors")
	}
	return summaries, nil
}

func (s *service) GetSummary(ctx context.Context, vendorID uuid.UUID, origin *Origin) (*VendorSummary, error) {
	if origin != nil && !geo.ValidCoordinates(origin.Lat, origin.Lng) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coordinates")
	}
	summary, err := s.repo.FindSummary(ctx, vendorID, origin)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading vendor summary")
	}
	return summary, nil
}

// UpdateLocation is the fire-and-forget ping: last write wins per vendor.
// The snapshot write and the change notification commit together.
func (s *service) UpdateLocation(ctx context.Context, vendorID uuid.UUID, update LocationUpdate) error {
	if !geo.ValidCoordinates(update.Lat, update.Lng) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid coordinates").
			WithDetails(map[string]any{"lat": update.Lat, "lng": update.Lng})
	}
	if vendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor is required")
	}

	now := time.Now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpsertLocation(ctx, vendorID, update, now); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorLocationUpdated,
			AggregateType: enums.AggregateVendor,
			AggregateID:   vendorID,
			Data: payloads.VendorLocationUpdatedEvent{
				VendorID:  vendorID,
				Lat:       update.Lat,
				Lng:       update.Lng,
				IsActive:  update.IsActive,
				UpdatedAt: now,
			},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating vendor location")
	}
	return nil
}

func (s *service) GetLocationStatus(ctx context.Context, vendorID uuid.UUID) (*LocationStatus, error) {
	location, err := s.repo.GetLocation(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no location recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading vendor location")
	}

	status := &LocationStatus{
		IsActive:  location.IsActive,
		UpdatedAt: location.UpdatedAt,
	}
	if location.Location != nil {
		status.Lat = &location.Location.Lat
		status.Lng = &location.Location.Lng
	}
	return status, nil
}
