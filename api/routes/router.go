package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/auth"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/orders"
	product "github.com/angelmondragon/storefront/internal/products"
	"github.com/angelmondragon/storefront/pkg/auth/tokens"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// KVStore is the Redis surface used by the rate limiter and idempotency guard.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	IdempotencyKey(scope, id string) string
}

type DwellRecorder interface {
	ObservePageDwell(page string, dwell time.Duration)
}

// Deps carries everything the router hands to middleware and controllers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	KV       KVStore
	Sessions middleware.SessionStore
	Tokens   tokens.ActiveChecker
	Dwell    DwellRecorder
	Now      func() time.Time

	Auth     auth.Service
	Products product.Service
	Checkout checkout.Service
	Orders   orders.Service

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
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
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}, logg))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Everything a visitor sees runs with a session. The page timer sits
	// between the session and the subject so refused requests are timed too.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(deps.Sessions, cfg.Session, logg))
		r.Use(middleware.PageTimer(deps.Dwell, deps.Now, logg))
		r.Use(middleware.Subject(cfg.JWT, deps.Tokens, deps.Auth, logg))
		r.Use(middleware.Idempotency(deps.KV, logg))

		// Routes are registered flat so the idempotency guard sees the full pattern.
		r.Get("/", controllers.ListProducts(deps.Products, logg))
		r.Get("/stats/", controllers.SessionStats(logg))

		r.With(middleware.AuthRateLimit(registerPolicy, deps.KV, logg)).Post("/auth/register", controllers.AuthRegister(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.KV, logg)).Post("/auth/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/auth/logout", controllers.AuthLogout(deps.Auth, logg))

		r.Get("/products/create/", controllers.NewProductForm(deps.Products, logg))
		r.Post("/products/create/", controllers.CreateProduct(deps.Products, logg))
		r.Get("/products/{id}/", controllers.GetProduct(deps.Products, logg))
		r.Get("/products/{id}/update/", controllers.EditProductForm(deps.Products, logg))
		r.Post("/products/{id}/update/", controllers.UpdateProduct(deps.Products, logg))
		r.Post("/products/{id}/delete", controllers.DeleteProduct(deps.Products, logg))

		r.Get("/basket/", controllers.BasketPreview(deps.Checkout, logg))
		r.Post("/basket/", controllers.BasketCheckout(deps.Checkout, logg))
		r.Get("/basket/change/", controllers.BasketChange(deps.Products, logg))

		r.Get("/orders/", controllers.ListOrders(deps.Orders, logg))
		r.Get("/orders/create/", controllers.NewOrderForm(deps.Orders, logg))
		r.Post("/orders/create/", controllers.CreateOrder(deps.Orders, logg))
		r.Get("/orders/{id}", controllers.GetOrder(deps.Orders, logg))
		r.Get("/orders/{id}/update/", controllers.EditOrderForm(deps.Orders, logg))
		r.Post("/orders/{id}/update/", controllers.UpdateOrder(deps.Orders, logg))
		r.Get("/orders/{id}/deliver/", controllers.DeliverOrder(deps.Orders, logg))
		r.Get("/orders/{id}/cancel/", controllers.CancelOrder(deps.Orders, logg))
		r.Get("/orders/{id}/add", controllers.OrderItemForm(deps.Orders, logg))
		r.Post("/orders/{id}/add", controllers.AddOrderItem(deps.Orders, logg))
		r.Get("/orders/{id}/change/{item_id}", controllers.OrderItemForm(deps.Orders, logg))
		r.Post("/orders/{id}/change/{item_id}", controllers.UpdateOrderItem(deps.Orders, logg))
		r.Post("/orders/{id}/delete/{item_id}", controllers.DeleteOrderItem(deps.Orders, logg))
	})

	return r
}
