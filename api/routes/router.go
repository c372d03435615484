package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/items"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Params collects the router's collaborators. Redis is optional: without it
// the rate limit and idempotency middleware are not mounted.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Sessions    session.AccessSessionChecker
	Auth        auth.Service
	Items       items.Service
	Carts       cart.Service
	Transition  *cart.Transition
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Logging(logg, p.HTTPMetrics),
	)

	var redisPinger redis.Pinger
	rateLimit := func(middleware.RateLimitPolicy) func(http.Handler) http.Handler { return passthrough }
	idempotency := passthrough
	if p.Redis != nil {
		redisPinger = p.Redis
		rateLimit = func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
			return middleware.RateLimit(policy, p.Redis, logg)
		}
		idempotency = middleware.Idempotency(p.Redis, logg)
	}

	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)

	requireAuth := middleware.Auth(cfg.JWT, p.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, p.Sessions, logg)
	guests := cartcontrollers.NewGuestTransport(cfg.Cart, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, redisPinger))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/api/ping", controllers.Ping(cfg.App.PingMessage))

	r.Route("/api/auth", func(r chi.Router) {
		r.With(rateLimit(signupPolicy)).Post("/signup", controllers.AuthSignup(p.Auth, logg))
		r.With(rateLimit(loginPolicy)).Post("/login", controllers.AuthLogin(p.Auth, guests, logg))
		r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		r.With(requireAuth).Get("/me", controllers.AuthMe(p.Auth, logg))
	})

	r.Route("/api/items", func(r chi.Router) {
		r.Get("/", controllers.ItemsList(p.Items, logg))
		r.Get("/{itemId}", controllers.ItemsGet(p.Items, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/", controllers.ItemsCreate(p.Items, logg))
			r.Put("/{itemId}", controllers.ItemsUpdate(p.Items, logg))
			r.Delete("/{itemId}", controllers.ItemsDelete(p.Items, logg))
		})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.With(requireAuth, idempotency).Post("/merge", cartcontrollers.CartMerge(p.Transition, guests, logg))

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", cartcontrollers.CartFetch(p.Carts, guests, logg))
			r.Post("/", cartcontrollers.CartAddItem(p.Carts, guests, logg))
			r.Get("/summary", cartcontrollers.CartSummary(p.Carts, guests, logg))
			r.Patch("/{itemId}", cartcontrollers.CartSetQuantity(p.Carts, guests, logg))
			r.Delete("/{itemId}", cartcontrollers.CartRemoveItem(p.Carts, guests, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
