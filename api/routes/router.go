package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sweetshop/sweetshop-backend/api/controllers"
	"github.com/sweetshop/sweetshop-backend/api/middleware"
	"github.com/sweetshop/sweetshop-backend/internal/auth"
	"github.com/sweetshop/sweetshop-backend/internal/sweets"
	"github.com/sweetshop/sweetshop-backend/pkg/auth/session"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
	"github.com/sweetshop/sweetshop-backend/pkg/metrics"
	"github.com/sweetshop/sweetshop-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// redisStore is the subset of the redis client the HTTP layer depends on.
type redisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisStore,
	sessionManager sessionManager,
	authService auth.Service,
	sweetsService sweets.Service,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimw.RealIP,
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}, logg))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	requireAuth := middleware.Auth(cfg.JWT, sessionManager, logg)
	requireAdmin := middleware.RequireRole(logg, enums.UserRoleAdmin)
	idempotent := middleware.Idempotency(redisClient, middleware.DefaultIdempotencyTTL, logg)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(middleware.RegisterRateLimit(cfg.AuthRateLimit), redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.With(middleware.AuthRateLimit(middleware.LoginRateLimit(cfg.AuthRateLimit), redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.With(requireAuth).Get("/profile", controllers.AuthProfile(authService, logg))
	})

	r.Route("/api/sweets", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", controllers.ListSweets(sweetsService, cfg.Pagination, logg))
		r.Get("/search", controllers.SearchSweets(sweetsService, cfg.Pagination, logg))
		r.Get("/{id}", controllers.GetSweet(sweetsService, logg))
		r.Put("/{id}", controllers.UpdateSweet(sweetsService, logg))
		r.With(idempotent).Post("/{id}/purchase", controllers.PurchaseSweet(sweetsService, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.With(idempotent).Post("/", controllers.CreateSweet(sweetsService, logg))
			r.Delete("/{id}", controllers.DeleteSweet(sweetsService, logg))
			r.With(idempotent).Post("/{id}/restock", controllers.RestockSweet(sweetsService, logg))
		})
	})

	return r
}
