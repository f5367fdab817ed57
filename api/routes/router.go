package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liminara/storefront/api/controllers"
	authcontrollers "github.com/liminara/storefront/api/controllers/auth"
	cartcontrollers "github.com/liminara/storefront/api/controllers/cart"
	"github.com/liminara/storefront/api/middleware"
	"github.com/liminara/storefront/internal/auth"
	"github.com/liminara/storefront/internal/cart"
	product "github.com/liminara/storefront/internal/products"
	"github.com/liminara/storefront/internal/wishlist"
	"github.com/liminara/storefront/pkg/auth/session"
	"github.com/liminara/storefront/pkg/config"
	"github.com/liminara/storefront/pkg/db"
	"github.com/liminara/storefront/pkg/enums"
	"github.com/liminara/storefront/pkg/logger"
	"github.com/liminara/storefront/pkg/metrics"
	pkgredis "github.com/liminara/storefront/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.Storefront
	Gatherer prometheus.Gatherer
	DB       db.Pinger
	Redis    RedisStore
	Sessions session.AccessSessionChecker
	Auth     auth.Service
	Cart     cart.Service
	Wishlist wishlist.Service
	Products product.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	requestOTPPolicy := middleware.NewAuthRateLimitPolicy(
		"request_otp",
		cfg.AuthRateLimit.RequestOTPWindow,
		cfg.AuthRateLimit.RequestOTPIPLimit,
		cfg.AuthRateLimit.RequestOTPIdentLimit,
	)
	verifyOTPPolicy := middleware.NewAuthRateLimitPolicy(
		"verify_otp",
		cfg.AuthRateLimit.VerifyOTPWindow,
		cfg.AuthRateLimit.VerifyOTPIPLimit,
		cfg.AuthRateLimit.VerifyOTPIdentLimit,
	)

	pingers := map[string]controllers.Pinger{}
	if d.DB != nil {
		pingers["db"] = d.DB
	}
	if d.Redis != nil {
		pingers["redis"] = d.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	var limiter rateStore
	if d.Redis != nil {
		limiter = d.Redis
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(requestOTPPolicy, limiter, logg)).Post("/request-otp", authcontrollers.AuthRequestOTP(d.Auth, logg))
		r.With(middleware.AuthRateLimit(verifyOTPPolicy, limiter, logg)).Post("/verify-otp", authcontrollers.AuthVerifyOTP(d.Auth, logg))
		r.Post("/logout", authcontrollers.AuthLogout(d.Auth, logg))
		r.Post("/refresh", authcontrollers.AuthRefresh(d.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Get("/me", authcontrollers.AuthMe(d.Auth, logg))
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(d.Products, logg))
		r.Get("/{productId}", controllers.ProductDetail(d.Products, logg))
	})

	var idem pkgredis.IdempotencyStore
	if d.Redis != nil {
		idem = d.Redis
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.Idempotency(idem, logg))

		r.Route("/api/cart", func(r chi.Router) {
			r.Post("/", cartcontrollers.CartAdd(d.Cart, logg))
			r.Get("/", cartcontrollers.CartFetch(d.Cart, logg))
			r.Patch("/{itemId}", cartcontrollers.CartSetQuantity(d.Cart, logg))
			r.Delete("/{itemId}", cartcontrollers.CartRemove(d.Cart, logg))
		})

		r.Route("/api/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistList(d.Wishlist, logg))
			r.Post("/{productId}", controllers.WishlistAddItem(d.Wishlist, logg))
			r.Delete("/{productId}", controllers.WishlistRemoveItem(d.Wishlist, logg))
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Get("/ping", controllers.AdminPing())
		})

		r.Route("/api/agent", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAgent, enums.UserRoleAdmin))
			r.Get("/ping", controllers.AgentPing())
		})
	})

	return r
}

type rateStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}
