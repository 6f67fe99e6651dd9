package addresses

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
)

func setupAddressesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:addresses_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS delivery_addresses (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  label TEXT NOT NULL,
  address TEXT NOT NULL,
  lat REAL,
  lng REAL,
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newAddressesTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), dbTxRunner{db: db})
	require.NoError(t, err)
	return svc
}

func defaultCount(t *testing.T, db *gorm.DB, customerID uuid.UUID) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.DeliveryAddress{}).
		Where("customer_id = ? AND is_default", customerID).
		Count(&count).Error)
	return count
}

func TestCreateAddress(t *testing.T) {
	db := setupAddressesTestDB(t)
	svc := newAddressesTestService(t, db)

	customerID := uuid.New()
	lat, lng := 19.4326, -99.1332
	address, err := svc.Create(context.Background(), CreateAddressInput{
		CustomerID: customerID,
		Label:      " casa ",
		Address:    "Av. Insurgentes Sur 123",
		Lat:        &lat,
		Lng:        &lng,
		IsDefault:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "casa", address.Label)
	assert.True(t, address.IsDefault)
}

func TestCreateAddressValidation(t *testing.T) {
	db := setupAddressesTestDB(t)
	svc := newAddressesTestService(t, db)

	badLat := 95.0
	lng := -99.0
	cases := []CreateAddressInput{
		{CustomerID: uuid.New(), Label: "", Address: "x"},
		{CustomerID: uuid.New(), Label: "casa", Address: "  "},
		{CustomerID: uuid.Nil, Label: "casa", Address: "x"},
		{CustomerID: uuid.New(), Label: "casa", Address: "x", Lat: &badLat, Lng: &lng},
		{CustomerID: uuid.New(), Label: "casa", Address: "x", Lat: &badLat},
	}
	for i, input := range cases {
		_, err := svc.Create(context.Background(), input)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "case %d", i)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code(), "case %d", i)
	}
}

func TestSingleDefaultInvariant(t *testing.T) {
	db := setupAddressesTestDB(t)
	svc := newAddressesTestService(t, db)

	customerID := uuid.New()
	first, err := svc.Create(context.Background(), CreateAddressInput{
		CustomerID: customerID,
		Label:      "casa",
		Address:    "Calle Uno 1",
		IsDefault:  true,
	})
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), CreateAddressInput{
		CustomerID: customerID,
		Label:      "oficina",
		Address:    "Calle Dos 2",
		IsDefault:  true,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, defaultCount(t, db, customerID))

	rows, err := svc.List(context.Background(), customerID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID, "default sorts first")
	assert.True(t, rows[0].IsDefault)

	// Flipping the default back via update clears the other entry.
	makeDefault := true
	_, err = svc.Update(context.Background(), customerID, first.ID, UpdateAddressInput{
		IsDefault: &makeDefault,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, defaultCount(t, db, customerID))

	updated, err := svc.List(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated[0].ID)
}

func TestUpdateAddressEnforcesOwnership(t *testing.T) {
	db := setupAddressesTestDB(t)
	svc := newAddressesTestService(t, db)

	customerID := uuid.New()
	address, err := svc.Create(context.Background(), CreateAddressInput{
		CustomerID: customerID,
		Label:      "casa",
		Address:    "Calle Uno 1",
	})
	require.NoError(t, err)

	label := "depa"
	_, err = svc.Update(context.Background(), uuid.New(), address.ID, UpdateAddressInput{Label: &label})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestDeleteAddress(t *testing.T) {
	db := setupAddressesTestDB(t)
	svc := newAddressesTestService(t, db)

	customerID := uuid.New()
	address, err := svc.Create(context.Background(), CreateAddressInput{
		CustomerID: customerID,
		Label:      "casa",
		Address:    "Calle Uno 1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), customerID, address.ID))

	rows, err := svc.List(context.Background(), customerID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = svc.Delete(context.Background(), customerID, address.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestSnapshotCopiesEntry(t *testing.T) {
	db := setupAddressesTestDB(t)
	svc := newAddressesTestService(t, db)

	customerID := uuid.New()
	lat, lng := 19.43, -99.13
	address, err := svc.Create(context.Background(), CreateAddressInput{
		CustomerID: customerID,
		Label:      "casa",
		Address:    "Calle Uno 1",
		Lat:        &lat,
		Lng:        &lng,
	})
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(context.Background(), customerID, address.ID)
	require.NoError(t, err)
	assert.Equal(t, "casa", snapshot.Label)
	assert.Equal(t, "Calle Uno 1", snapshot.Address)
	require.NotNil(t, snapshot.Lat)
	assert.InDelta(t, 19.43, *snapshot.Lat, 0.0001)
	assert.True(t, snapshot.Valid())
}
