package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/internal/inventory"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox"
	"github.com/mercadito-app/mercadito-backend/pkg/pagination"
	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  inventory_count INTEGER NOT NULL DEFAULT 0,
  expiration_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'placed',
  total_amount NUMERIC NOT NULL,
  order_date DATETIME NOT NULL,
  delivery_address TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price NUMERIC NOT NULL
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type captureOutbox struct {
	events []outbox.DomainEvent
}

func (c *captureOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	c.events = append(c.events, event)
	return nil
}

func newOrdersTestService(t *testing.T, db *gorm.DB) (Service, *captureOutbox) {
	t.Helper()

	stock, err := inventory.NewService(inventory.NewRepository(db))
	require.NoError(t, err)

	ob := &captureOutbox{}
	svc, err := NewService(NewRepository(db), stock, dbTxRunner{db: db}, ob)
	require.NoError(t, err)
	return svc, ob
}

func seedOrderProduct(t *testing.T, db *gorm.DB, vendorID uuid.UUID, price string, count int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	require.NoError(t, db.Exec(
		"INSERT INTO products (id, vendor_id, name, price, inventory_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, vendorID, "producto", price, count, time.Now(), time.Now(),
	).Error)
	return id
}

func productCount(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()

	var count int
	require.NoError(t, db.Raw(
		"SELECT inventory_count FROM products WHERE id = ?", productID,
	).Scan(&count).Error)
	return count
}

func TestPlaceOrderFreezesPricesAndTotal(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, ob := newOrdersTestService(t, db)

	vendorID := uuid.New()
	cheap := seedOrderProduct(t, db, vendorID, "12.50", 10)
	pricey := seedOrderProduct(t, db, vendorID, "40.00", 10)

	lat, lng := 19.4326, -99.1332
	order, err := svc.Place(context.Background(), PlaceOrderInput{
		CustomerID: uuid.New(),
		Items: []OrderLineInput{
			{ProductID: cheap, Quantity: 2},
			{ProductID: pricey, Quantity: 1},
		},
		DeliveryAddress: &types.AddressSnapshot{
			Label:   "casa",
			Address: "Av. Insurgentes Sur 123",
			Lat:     &lat,
			Lng:     &lng,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPlaced, order.Status)
	assert.Equal(t, vendorID, order.VendorID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("65.00")),
		"total %s", order.TotalAmount)

	require.Len(t, order.Items, 2)
	var itemTotal decimal.Decimal
	for _, item := range order.Items {
		itemTotal = itemTotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, order.TotalAmount.Equal(itemTotal), "total matches item sum")

	// Placement never touches stock.
	assert.Equal(t, 10, productCount(t, db, cheap))

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventOrderCreated, ob.events[0].EventType)
	assert.Equal(t, order.ID, ob.events[0].AggregateID)
}

func TestPlaceOrderCrossVendorRejectedBeforeWrite(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, ob := newOrdersTestService(t, db)

	first := seedOrderProduct(t, db, uuid.New(), "10.00", 5)
	second := seedOrderProduct(t, db, uuid.New(), "10.00", 5)

	_, err := svc.Place(context.Background(), PlaceOrderInput{
		CustomerID: uuid.New(),
		Items: []OrderLineInput{
			{ProductID: first, Quantity: 1},
			{ProductID: second, Quantity: 1},
		},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeCrossVendor, typed.Code())

	var orderCount int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM orders").Scan(&orderCount).Error)
	assert.Zero(t, orderCount, "no order row written")
	assert.Empty(t, ob.events)
}

func TestPlaceOrderValidation(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "10.00", 5)
	customerID := uuid.New()

	cases := []struct {
		name  string
		input PlaceOrderInput
		code  pkgerrors.Code
	}{
		{
			name:  "empty items",
			input: PlaceOrderInput{CustomerID: customerID},
			code:  pkgerrors.CodeValidation,
		},
		{
			name: "zero quantity",
			input: PlaceOrderInput{
				CustomerID: customerID,
				Items:      []OrderLineInput{{ProductID: productID, Quantity: 0}},
			},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "duplicate product",
			input: PlaceOrderInput{
				CustomerID: customerID,
				Items: []OrderLineInput{
					{ProductID: productID, Quantity: 1},
					{ProductID: productID, Quantity: 2},
				},
			},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "unknown product",
			input: PlaceOrderInput{
				CustomerID: customerID,
				Items:      []OrderLineInput{{ProductID: uuid.New(), Quantity: 1}},
			},
			code: pkgerrors.CodeNotFound,
		},
		{
			name: "blank delivery address",
			input: PlaceOrderInput{
				CustomerID:      customerID,
				Items:           []OrderLineInput{{ProductID: productID, Quantity: 1}},
				DeliveryAddress: &types.AddressSnapshot{Label: "casa"},
			},
			code: pkgerrors.CodeValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Place(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}
}

func TestAcceptTakesStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, ob := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "15.00", 5)

	order, err := svc.Place(context.Background(), PlaceOrderInput{
		CustomerID: uuid.New(),
		Items:      []OrderLineInput{{ProductID: productID, Quantity: 3}},
	})
	require.NoError(t, err)

	accepted, err := svc.Transition(context.Background(), vendorID, order.ID, enums.OrderStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, accepted.Status)
	assert.Equal(t, 2, productCount(t, db, productID))

	require.Len(t, ob.events, 2)
	assert.Equal(t, enums.EventOrderStatusChanged, ob.events[1].EventType)
}

func TestAcceptShortageRollsBackEverything(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	plenty := seedOrderProduct(t, db, vendorID, "10.00", 10)
	scarce := seedOrderProduct(t, db, vendorID, "10.00", 1)

	order, err := svc.Place(context.Background(), PlaceOrderInput{
		CustomerID: uuid.New(),
		Items: []OrderLineInput{
			{ProductID: plenty, Quantity: 2},
			{ProductID: scarce, Quantity: 3},
		},
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), vendorID, order.ID, enums.OrderStatusAccepted)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	shortage, ok := typed.Details().(inventory.StockShortage)
	require.True(t, ok)
	assert.Equal(t, scarce, shortage.ProductID)
	assert.Equal(t, 3, shortage.Requested)
	assert.Equal(t, 1, shortage.Available)

	// The whole transaction rolled back: counts and status untouched.
	assert.Equal(t, 10, productCount(t, db, plenty))
	assert.Equal(t, 1, productCount(t, db, scarce))

	current, err := svc.GetForVendor(context.Background(), vendorID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPlaced, current.Status)
}

func TestAcceptTwiceFailsOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "10.00", 5)

	order, err := svc.Place(context.Background(), PlaceOrderInput{
		CustomerID: uuid.New(),
		Items:      []OrderLineInput{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), vendorID, order.ID, enums.OrderStatusAccepted)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), vendorID, order.ID, enums.OrderStatusAccepted)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// Stock only taken once.
	assert.Equal(t, 3, productCount(t, db, productID))
}

func TestOrderLifecycleChain(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "10.00", 5)

	order, err := svc.Place(context.Background(), PlaceOrderInput{
		CustomerID: uuid.New(),
		Items:      []OrderLineInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)

	chain := []enums.OrderStatus{
		enums.OrderStatusAccepted,
		enums.OrderStatusPreparing,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	}
	for _, target := range chain {
		updated, err := svc.Transition(context.Background(), vendorID, order.ID, target)
		require.NoError(t, err, "transition to %s", target)
		assert.Equal(t, target, updated.Status)
	}

	// Delivered is terminal.
	_, err = svc.Transition(context.Background(), vendorID, order.ID, enums.OrderStatusPreparing)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestRejectOnlyFromPlaced(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "10.00", 5)
	place := func() uuid.UUID {
		order, err := svc.Place(context.Background(), PlaceOrderInput{
			CustomerID: uuid.New(),
			Items:      []OrderLineInput{{ProductID: productID, Quantity: 1}},
		})
		require.NoError(t, err)
		return order.ID
	}

	rejected, err := svc.Transition(context.Background(), vendorID, place(), enums.OrderStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRejected, rejected.Status)
	// Rejection never touches stock.
	assert.Equal(t, 5, productCount(t, db, productID))

	acceptedID := place()
	_, err = svc.Transition(context.Background(), vendorID, acceptedID, enums.OrderStatusAccepted)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), vendorID, acceptedID, enums.OrderStatusRejected)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestTransitionForeignVendorIsNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "10.00", 5)

	order, err := svc.Place(context.Background(), PlaceOrderInput{
		CustomerID: uuid.New(),
		Items:      []OrderLineInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), uuid.New(), order.ID, enums.OrderStatusAccepted)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListByVendorFiltersStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "10.00", 20)

	var placedIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		order, err := svc.Place(context.Background(), PlaceOrderInput{
			CustomerID: uuid.New(),
			Items:      []OrderLineInput{{ProductID: productID, Quantity: 1}},
		})
		require.NoError(t, err)
		placedIDs = append(placedIDs, order.ID)
	}
	_, err := svc.Transition(context.Background(), vendorID, placedIDs[0], enums.OrderStatusAccepted)
	require.NoError(t, err)

	placed := "placed"
	list, err := svc.ListByVendor(context.Background(), vendorID, VendorListFilter{Status: &placed}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)

	bogus := "unknown"
	_, err = svc.ListByVendor(context.Background(), vendorID, VendorListFilter{Status: &bogus}, pagination.Params{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListByCustomerPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newOrdersTestService(t, db)

	vendorID := uuid.New()
	productID := seedOrderProduct(t, db, vendorID, "10.00", 50)
	customerID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := svc.Place(context.Background(), PlaceOrderInput{
			CustomerID: customerID,
			Items:      []OrderLineInput{{ProductID: productID, Quantity: 1}},
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	first, err := svc.ListByCustomer(context.Background(), customerID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, first.Orders, 3)
	require.NotEmpty(t, first.NextCursor)
	require.NotEmpty(t, first.Orders[0].Items, "items preloaded")

	second, err := svc.ListByCustomer(context.Background(), customerID, pagination.Params{
		Limit:  3,
		Cursor: first.NextCursor,
	})
	require.NoError(t, err)
	assert.Len(t, second.Orders, 2)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, order := range append(first.Orders, second.Orders...) {
		assert.False(t, seen[order.ID], "no duplicates across pages")
		seen[order.ID] = true
	}
}
