package reviews

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/pagination"
)

func setupReviewsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:reviews_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS vendors (
  id TEXT PRIMARY KEY,
  business_name TEXT NOT NULL,
  contact TEXT NOT NULL,
  categories TEXT,
  owner_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS reviews (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  rating INTEGER NOT NULL,
  comment TEXT,
  created_at DATETIME
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedVendor(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()

	vendorID := uuid.New()
	require.NoError(t, db.Exec(
		"INSERT INTO vendors (id, business_name, contact, owner_id) VALUES (?, ?, ?, ?)",
		vendorID, "Fonda Lupita", "555-0100", uuid.New(),
	).Error)
	return vendorID
}

func newReviewsTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestCreateReview(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsTestService(t, db)
	vendorID := seedVendor(t, db)

	comment := "  excelente servicio  "
	review, err := svc.Create(context.Background(), CreateReviewInput{
		VendorID:   vendorID,
		CustomerID: uuid.New(),
		Rating:     5,
		Comment:    &comment,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)
	require.NotNil(t, review.Comment)
	assert.Equal(t, "excelente servicio", *review.Comment)
}

func TestCreateReviewRatingBounds(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsTestService(t, db)
	vendorID := seedVendor(t, db)

	for _, rating := range []int{0, -1, 6} {
		_, err := svc.Create(context.Background(), CreateReviewInput{
			VendorID:   vendorID,
			CustomerID: uuid.New(),
			Rating:     rating,
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "rating %d", rating)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}

	for _, rating := range []int{1, 5} {
		_, err := svc.Create(context.Background(), CreateReviewInput{
			VendorID:   vendorID,
			CustomerID: uuid.New(),
			Rating:     rating,
		})
		require.NoError(t, err, "rating %d", rating)
	}
}

func TestCreateReviewUnknownVendor(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsTestService(t, db)

	_, err := svc.Create(context.Background(), CreateReviewInput{
		VendorID:   uuid.New(),
		CustomerID: uuid.New(),
		Rating:     4,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListByVendorPaginates(t *testing.T) {
	db := setupReviewsTestDB(t)
	svc := newReviewsTestService(t, db)
	vendorID := seedVendor(t, db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		review := models.Review{
			ID:         uuid.New(),
			VendorID:   vendorID,
			CustomerID: uuid.New(),
			Rating:     3,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&review).Error)
	}

	first, err := svc.ListByVendor(context.Background(), vendorID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, first.Reviews, 3)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListByVendor(context.Background(), vendorID, pagination.Params{
		Limit:  3,
		Cursor: first.NextCursor,
	})
	require.NoError(t, err)
	assert.Len(t, second.Reviews, 2)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, review := range append(first.Reviews, second.Reviews...) {
		assert.False(t, seen[review.ID], "no duplicates across pages")
		seen[review.ID] = true
	}
}
