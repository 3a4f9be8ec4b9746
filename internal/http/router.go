package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/redmonkez12/taskmanager-auth/docs"
	"github.com/redmonkez12/taskmanager-auth/internal/auth"
	"github.com/redmonkez12/taskmanager-auth/internal/config"
	"github.com/redmonkez12/taskmanager-auth/internal/httputil"
	"github.com/redmonkez12/taskmanager-auth/internal/logging"
)

// MaxBodyBytes caps request bodies at 16 KiB.
const MaxBodyBytes = 16 << 10

// NewRouter creates and configures the HTTP router
func NewRouter(
	cfg *config.Config,
	authHandler *auth.Handler,
	authMiddleware *auth.Middleware,
	boundary *httputil.Boundary,
	logger *logging.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "PUT", "DELETE", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Global middleware
	r.Use(SecurityHeaders)               // Security headers on all responses
	r.Use(Recoverer(boundary))           // Recover from panics
	r.Use(middleware.RequestID)          // Add request ID
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(logging.RequestLogger(logger)) // Structured logging with request context
	r.Use(middleware.RequestSize(MaxBodyBytes))
	r.Use(middleware.Compress(5)) // Compress responses

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		boundary.Render(w, r, httputil.NewError(http.StatusNotFound, httputil.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		boundary.Render(w, r, httputil.NewError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed"))
	})

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthcheck", handleHealth)

		r.Route("/users", func(r chi.Router) {
			r.Use(NoStore)

			r.Post("/register", boundary.Handle(authHandler.Register))
			r.Post("/login", boundary.Handle(authHandler.Login))
			r.Get("/verify-email/{verificationToken}", boundary.Handle(authHandler.VerifyEmail))
			r.Post("/refresh-token", boundary.Handle(authHandler.RefreshToken))
			r.Post("/forgot-password", boundary.Handle(authHandler.ForgotPassword))
			r.Post("/reset-password/{resetToken}", boundary.Handle(authHandler.ResetPassword))

			// Protected routes (require authentication)
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Post("/logout", boundary.Handle(authHandler.Logout))
				r.Get("/current-user", boundary.Handle(authHandler.CurrentUser))
				r.Post("/current-user", boundary.Handle(authHandler.CurrentUser))
				r.Post("/change-password", boundary.Handle(authHandler.ChangePassword))
				r.Post("/resend-email-verification", boundary.Handle(authHandler.ResendEmailVerification))
			})
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} httputil.Response
// @Router       /healthcheck [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondOK(w, http.StatusOK, map[string]string{"message": "server is running"}, "Success")
}
