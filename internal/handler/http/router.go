package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/accounts/internal/auth"
	"github.com/utafrali/accounts/internal/domain"
	"github.com/utafrali/accounts/internal/service"
	"github.com/utafrali/accounts/pkg/health"
	"github.com/utafrali/accounts/pkg/middleware"
)

// RouterConfig holds the edge settings of the HTTP surface.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig
	// AuthRateLimitPerMinute bounds unauthenticated auth requests per client IP.
	AuthRateLimitPerMinute int
	// MetricsAllowedCIDRs restricts /metrics. Empty allows every client.
	MetricsAllowedCIDRs []string
}

// NewRouter creates a chi router with all accounts routes registered.
func NewRouter(
	authService *service.AuthService,
	userService *service.UserService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.With(middleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(authService, userService, logger)
	userHandler := NewUserHandler(userService, logger)

	requireAccess := middleware.Auth(tokenValidator(authService, auth.PurposeAccess))
	rateLimit := middleware.NewRateLimiter(cfg.AuthRateLimitPerMinute).Handler(logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		// Public, rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/verify-otp", authHandler.VerifyOTP)
		})

		r.With(middleware.Auth(tokenValidator(authService, auth.PurposeReset))).
			Post("/reset-password", authHandler.ResetPassword)
		r.With(middleware.Auth(tokenValidator(authService, auth.PurposeRefresh))).
			Post("/refresh-token", authHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(requireAccess)

			r.Post("/change-password", authHandler.ChangePassword)
			r.Post("/verify-account", authHandler.VerifyAccount)
		})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)
		r.Use(requireAccess)

		r.Get("/me", userHandler.GetMe)
		r.Patch("/me", userHandler.UpdateMe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Get("/", userHandler.List)
			r.Get("/count", userHandler.Count)
			r.Get("/{id}", userHandler.Get)
			r.Delete("/{id}", userHandler.Delete)
		})
	})

	return r
}
