package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ritik272004/PROJMANAGEMENT/pkg/health"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/httputil"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/middleware"
)

const serviceName = "auth"

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService AuthService,
	healthHandler *health.Handler,
	cookies CookieConfig,
	corsConfig middleware.CORSConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CORS(corsConfig))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/api/v1/healthcheck", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Message: "OK"})
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(authService, cookies, logger)
	sessions := NewSessionMiddleware(authService, logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh-token", authHandler.RefreshToken)
		r.Get("/verify-email/{verificationToken}", authHandler.VerifyEmail)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password/{resetToken}", authHandler.ResetPassword)

		// Session required
		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireSession)

			r.Post("/logout", authHandler.Logout)
			r.Get("/current-user", authHandler.CurrentUser)
			r.Post("/current-user", authHandler.CurrentUser)
			r.Post("/change-password", authHandler.ChangePassword)
			r.Post("/resend-email-verification", authHandler.ResendVerification)
		})
	})

	return r
}

// ContentTypeJSON rejects request bodies that are not declared as JSON.
// Bodyless POSTs such as logout pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
