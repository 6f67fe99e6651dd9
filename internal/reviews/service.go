package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/pagination"
)

// CreateReviewInput carries a customer's rating submission.
type CreateReviewInput struct {
	VendorID   uuid.UUID
	CustomerID uuid.UUID
	Rating     int
	Comment    *string
}

// ReviewList is a cursor page of reviews.
type ReviewList struct {
	Reviews    []models.Review `json:"reviews"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Service exposes review submission and listing.
type Service interface {
	Create(ctx context.Context, input CreateReviewInput) (*models.Review, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ReviewList, error)
}

type service struct {
	repo Repository
}

// NewService builds a reviews service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateReviewInput) (*models.Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"rating": input.Rating})
	}
	if input.Comment != nil {
		trimmed := strings.TrimSpace(*input.Comment)
		if trimmed == "" {
			input.Comment = nil
		} else {
			input.Comment = &trimmed
		}
	}

	exists, err := s.repo.VendorExists(ctx, input.VendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking vendor")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}

	review := &models.Review{
		ID:         uuid.New(),
		VendorID:   input.VendorID,
		CustomerID: input.CustomerID,
		Rating:     input.Rating,
		Comment:    input.Comment,
	}
	created, err := s.repo.Create(ctx, review)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating review")
	}
	return created, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ReviewList, error) {
	list, err := s.repo.ListByVendor(ctx, vendorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing reviews")
	}
	return list, nil
}
