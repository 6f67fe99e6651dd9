package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercadito-app/mercadito-backend/api/controllers"
	"github.com/mercadito-app/mercadito-backend/api/middleware"
	"github.com/mercadito-app/mercadito-backend/internal/addresses"
	internalauth "github.com/mercadito-app/mercadito-backend/internal/auth"
	"github.com/mercadito-app/mercadito-backend/internal/inventory"
	"github.com/mercadito-app/mercadito-backend/internal/orders"
	"github.com/mercadito-app/mercadito-backend/internal/products"
	"github.com/mercadito-app/mercadito-backend/internal/reviews"
	"github.com/mercadito-app/mercadito-backend/internal/vendors"
	"github.com/mercadito-app/mercadito-backend/pkg/auth/session"
	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/db"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	pkgredis "github.com/mercadito-app/mercadito-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *pkgredis.Client
	Sessions session.AccessSessionChecker

	Auth      internalauth.Service
	Vendors   vendors.Service
	Products  products.Service
	Inventory inventory.Service
	Orders    orders.Service
	Reviews   reviews.Service
	Addresses addresses.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// A typed nil *Client inside an interface would dodge the middleware nil
	// checks, so resolve it here.
	var idemStore pkgredis.IdempotencyStore
	var rateStore pkgredis.RateLimiterStore
	var cachePinger pkgredis.Pinger
	if deps.Redis != nil {
		idemStore = deps.Redis
		rateStore = deps.Redis
		cachePinger = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, cachePinger, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthRateLimit(registerPolicy, rateStore, logg))
			r.Use(middleware.Idempotency(idemStore, logg))
			r.Post("/register", controllers.Register(deps.Auth, logg))
			r.Post("/register/vendor", controllers.RegisterVendor(deps.Auth, logg))
		})
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.Login(deps.Auth, logg))
		r.Post("/refresh", controllers.Refresh(deps.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).Post("/logout", controllers.Logout(deps.Auth, logg))
	})

	// Discovery endpoints stay public so the app works before login.
	r.Route("/api/v1/vendors", func(r chi.Router) {
		r.Get("/nearby", controllers.VendorsNearby(deps.Vendors, logg))
		r.Get("/", controllers.VendorsList(deps.Vendors, logg))
		r.Get("/{vendorID}", controllers.VendorDetail(deps.Vendors, logg))
		r.Get("/{vendorID}/products", controllers.VendorProducts(deps.Products, logg))
		r.Get("/{vendorID}/reviews", controllers.VendorReviews(deps.Reviews, logg))
	})
	r.Get("/api/v1/products/{productID}", controllers.ProductDetail(deps.Products, logg))
	r.Get("/api/v1/inventory", controllers.InventoryCounts(deps.Inventory, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleCustomer, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.PlaceOrder(deps.Orders, deps.Addresses, logg))
				r.Get("/", controllers.CustomerOrders(deps.Orders, logg))
				r.Get("/{orderID}", controllers.CustomerOrderDetail(deps.Orders, logg))
			})
			r.Route("/addresses", func(r chi.Router) {
				r.Post("/", controllers.CreateAddress(deps.Addresses, logg))
				r.Get("/", controllers.ListAddresses(deps.Addresses, logg))
				r.Patch("/{addressID}", controllers.UpdateAddress(deps.Addresses, logg))
				r.Delete("/{addressID}", controllers.DeleteAddress(deps.Addresses, logg))
			})
			r.Post("/vendors/{vendorID}/reviews", controllers.CreateReview(deps.Reviews, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireVendor(logg))

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.CreateProduct(deps.Products, logg))
				r.Patch("/{productID}", controllers.UpdateProduct(deps.Products, logg))
				r.Delete("/{productID}", controllers.DeleteProduct(deps.Products, logg))
			})
			r.Put("/inventory/{productID}", controllers.SetInventoryCount(deps.Inventory, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.VendorOrders(deps.Orders, logg))
				r.Get("/{orderID}", controllers.VendorOrderDetail(deps.Orders, logg))
				r.Post("/{orderID}/status", controllers.TransitionOrder(deps.Orders, logg))
			})
			r.Route("/location", func(r chi.Router) {
				r.Put("/", controllers.VendorUpdateLocation(deps.Vendors, logg))
				r.Get("/", controllers.VendorLocationStatus(deps.Vendors, logg))
			})
		})
	})

	return r
}
