package routes

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/ownerauth"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/sales"
	"github.com/angelmondragon/storefront-backend/internal/stats"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Store is the redis surface shared by the idempotency and rate limit
// middleware.
type Store interface {
	middleware.IdempotencyStore
	middleware.RateLimiter
}

type dashboardService interface {
	Dashboard(ctx context.Context) *stats.Dashboard
}

// Deps lists everything the router wires into handlers. Nil services make
// their handlers answer 500; a nil Store disables idempotency and rate
// limiting.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	Store          Store
	Sessions       session.Checker
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Health         map[string]controllers.Pinger

	Auth     ownerauth.Service
	Products products.Service
	Users    users.Service
	Sales    sales.Service
	Stats    dashboardService
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimiddleware.RealIP,
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteMethodNotAllowed(w)
	})

	idempotency := middleware.Idempotency(d.Store, logg)
	sessionLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "session",
		Window: cfg.AuthRateLimit.SessionWindow,
		PerIP:  cfg.AuthRateLimit.SessionIPLimit,
	}, d.Store, logg)
	registerLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:     "register",
		Window:   cfg.AuthRateLimit.RegisterWindow,
		PerIP:    cfg.AuthRateLimit.RegisterIPLimit,
		PerEmail: cfg.AuthRateLimit.RegisterEmailLimit,
	}, d.Store, logg)
	cookie := controllers.NewSessionCookie(cfg)
	maxUpload := cfg.Storage.MaxUploadBytes()

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Health))
	})
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}
	if !cfg.FeatureFlags.UsesGCS() {
		mountUploads(r, cfg.Storage)
	}

	r.Route("/owner", func(r chi.Router) {
		r.With(sessionLimit).
			Post("/session", controllers.SessionCreate(d.Auth, cookie, logg))
		r.Post("/logout", controllers.SessionLogout(d.Auth, cookie, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OwnerSession(cfg.JWT, d.Sessions, logg))

			r.Get("/session", controllers.SessionCurrent(logg))
			r.Get("/stats", controllers.Dashboard(d.Stats, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ProductList(d.Products, logg))
				r.Post("/", controllers.ProductCreate(d.Products, maxUpload, logg))
				r.Post("/bulk", controllers.ProductCreateBulk(d.Products, logg))
				r.Get("/{productId}", controllers.ProductGet(d.Products, logg))
				r.Put("/{productId}", controllers.ProductUpdate(d.Products, maxUpload, logg))
				r.Delete("/{productId}", controllers.ProductDelete(d.Products, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", controllers.UserList(d.Users, logg))
				r.Post("/", controllers.UserCreate(d.Users, logg))
				r.Get("/stats", controllers.UserStats(d.Users, logg))
				r.Get("/{userId}", controllers.UserGet(d.Users, logg))
				r.Put("/{userId}", controllers.UserUpdate(d.Users, logg))
				r.Delete("/{userId}", controllers.UserDelete(d.Users, logg))
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", controllers.SaleList(d.Sales, logg))
				r.With(idempotency).Post("/", controllers.SaleCreate(d.Sales, logg))
				r.Get("/stats", controllers.SaleStats(d.Sales, logg))
				r.Get("/{saleId}", controllers.SaleGet(d.Sales, logg))
				r.Put("/{saleId}", controllers.SaleUpdate(d.Sales, logg))
				r.Delete("/{saleId}", controllers.SaleDelete(d.Sales, logg))
			})
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(d.Products, logg))
		r.Get("/products/{productId}", controllers.ProductGet(d.Products, logg))
		r.With(
			registerLimit,
			idempotency,
		).Post("/register", controllers.Register(d.Users, logg))
		r.With(idempotency).Post("/orders", controllers.OrderPlace(d.Sales, logg))
		r.Get("/orders", controllers.OrderListByEmail(d.Sales, logg))
		r.Get("/orders/{orderId}", controllers.OrderGet(d.Sales, logg))
	})

	return r
}

// mountUploads serves locally stored product images. Directory listings
// are not exposed.
func mountUploads(r chi.Router, storage config.StorageConfig) {
	prefix := "/" + strings.Trim(storage.PublicPrefix, "/")
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(storage.UploadDir)))
	r.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, "/") {
			responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
			return
		}
		files.ServeHTTP(w, req)
	})
}
