package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/internal/addresses"
	internalauth "github.com/mercadito-app/mercadito-backend/internal/auth"
	"github.com/mercadito-app/mercadito-backend/internal/inventory"
	"github.com/mercadito-app/mercadito-backend/internal/orders"
	"github.com/mercadito-app/mercadito-backend/internal/products"
	"github.com/mercadito-app/mercadito-backend/internal/reviews"
	"github.com/mercadito-app/mercadito-backend/internal/vendors"
	pkgauth "github.com/mercadito-app/mercadito-backend/pkg/auth"
	"github.com/mercadito-app/mercadito-backend/pkg/auth/session"
	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/pagination"
	"github.com/mercadito-app/mercadito-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) RegisterCustomer(ctx context.Context, input internalauth.RegisterInput) (*internalauth.AuthResult, error) {
	return &internalauth.AuthResult{}, nil
}

func (stubAuthService) RegisterVendor(ctx context.Context, input internalauth.RegisterVendorInput) (*internalauth.AuthResult, error) {
	return &internalauth.AuthResult{}, nil
}

func (stubAuthService) Login(ctx context.Context, creds internalauth.Credentials) (*internalauth.AuthResult, error) {
	return &internalauth.AuthResult{}, nil
}

func (stubAuthService) Refresh(ctx context.Context, rawAccessToken, refreshToken string) (*internalauth.RefreshResult, error) {
	return &internalauth.RefreshResult{}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

type stubVendorsService struct{}

func (stubVendorsService) Create(ctx context.Context, tx *gorm.DB, input vendors.CreateVendorInput) (*models.Vendor, error) {
	panic("unimplemented")
}

func (stubVendorsService) ListNearby(ctx context.Context, query vendors.NearbyQuery) ([]vendors.VendorSummary, error) {
	return []vendors.VendorSummary{}, nil
}

func (stubVendorsService) ListSummaries(ctx context.Context, origin *vendors.Origin) ([]vendors.VendorSummary, error) {
	return []vendors.VendorSummary{}, nil
}

func (stubVendorsService) GetSummary(ctx context.Context, vendorID uuid.UUID, origin *vendors.Origin) (*vendors.VendorSummary, error) {
	return &vendors.VendorSummary{ID: vendorID}, nil
}

func (stubVendorsService) UpdateLocation(ctx context.Context, vendorID uuid.UUID, update vendors.LocationUpdate) error {
	return nil
}

func (stubVendorsService) GetLocationStatus(ctx context.Context, vendorID uuid.UUID) (*vendors.LocationStatus, error) {
	return &vendors.LocationStatus{}, nil
}

type stubProductsService struct{}

func (stubProductsService) Create(ctx context.Context, input products.CreateProductInput) (*models.Product, error) {
	panic("unimplemented")
}

func (stubProductsService) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return &models.Product{ID: productID}, nil
}

func (stubProductsService) Update(ctx context.Context, vendorID, productID uuid.UUID, input products.UpdateProductInput) (*models.Product, error) {
	panic("unimplemented")
}

func (stubProductsService) Delete(ctx context.Context, vendorID, productID uuid.UUID) error {
	return nil
}

func (stubProductsService) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*products.ProductList, error) {
	return &products.ProductList{}, nil
}

type stubInventoryService struct{}

func (stubInventoryService) GetCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return map[uuid.UUID]int{}, nil
}

func (stubInventoryService) SetCount(ctx context.Context, vendorID, productID uuid.UUID, count int) error {
	return nil
}

func (stubInventoryService) DecrementBatch(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) Place(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) GetForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (stubOrdersService) GetForVendor(ctx context.Context, vendorID, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (stubOrdersService) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrdersService) ListByVendor(ctx context.Context, vendorID uuid.UUID, filter orders.VendorListFilter, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrdersService) Transition(ctx context.Context, vendorID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: target}, nil
}

type stubReviewsService struct{}

func (stubReviewsService) Create(ctx context.Context, input reviews.CreateReviewInput) (*models.Review, error) {
	return &models.Review{}, nil
}

func (stubReviewsService) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*reviews.ReviewList, error) {
	return &reviews.ReviewList{}, nil
}

type stubAddressesService struct{}

func (stubAddressesService) Create(ctx context.Context, input addresses.CreateAddressInput) (*models.DeliveryAddress, error) {
	return &models.DeliveryAddress{}, nil
}

func (stubAddressesService) List(ctx context.Context, customerID uuid.UUID) ([]models.DeliveryAddress, error) {
	return []models.DeliveryAddress{}, nil
}

func (stubAddressesService) Update(ctx context.Context, customerID, addressID uuid.UUID, input addresses.UpdateAddressInput) (*models.DeliveryAddress, error) {
	panic("unimplemented")
}

func (stubAddressesService) Delete(ctx context.Context, customerID, addressID uuid.UUID) error {
	return nil
}

func (stubAddressesService) Snapshot(ctx context.Context, customerID, addressID uuid.UUID) (*types.AddressSnapshot, error) {
	panic("unimplemented")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        stubPinger{},
		Redis:     nil,
		Sessions:  stubSessions{},
		Auth:      stubAuthService{},
		Vendors:   stubVendorsService{},
		Products:  stubProductsService{},
		Inventory: stubInventoryService{},
		Orders:    stubOrdersService{},
		Reviews:   stubReviewsService{},
		Addresses: stubAddressesService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   uuid.New(),
		Role:     role,
		VendorID: vendorID,
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestDiscoveryIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors/nearby?lat=19.43&lng=-99.13", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public discovery got %d", resp.Code)
	}
}

func TestOrdersRequireToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOrdersRequireCustomerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	vendorID := uuid.New()

	asVendor := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	asVendor.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleVendor, &vendorID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asVendor)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendor on customer route got %d", resp.Code)
	}

	asCustomer := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	asCustomer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleCustomer, nil))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, asCustomer)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for customer orders got %d", resp.Code)
	}
}

func TestVendorRoutesRequireVendorRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	vendorID := uuid.New()

	asCustomer := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/orders", nil)
	asCustomer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleCustomer, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asCustomer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer on vendor route got %d", resp.Code)
	}

	asVendor := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/orders", nil)
	asVendor.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleVendor, &vendorID))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, asVendor)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for vendor queue got %d", resp.Code)
	}
}

func TestVendorTokenWithoutProfileIsRejected(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleVendor, nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendor token without profile got %d", resp.Code)
	}
}

func TestLoginRejectsBadJSON(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payload got %d", resp.Code)
	}
}

func TestLoginAcceptsGoodJSON(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{"email":"ana@example.com","password":"super-secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid login got %d", resp.Code)
	}
}
