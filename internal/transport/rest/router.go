package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/access"
	"github.com/frahmantamala/access-management/internal/auth"
	"github.com/frahmantamala/access-management/internal/registry"
	"github.com/frahmantamala/access-management/internal/transport/middleware"
	"github.com/frahmantamala/access-management/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// RegisterAllRoutes wires the admin façade onto the router. Every /admin
// route requires an authenticated caller holding the admin override.
func RegisterAllRoutes(router *chi.Mux, cfg *internal.Config, db *sql.DB, authHandler *auth.Handler, adminAuth *auth.AdminAuthorization, accessHandler *access.Handler, registryHandler *registry.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/register", authHandler.Register)
		})

		r.Route("/admin", func(ar chi.Router) {
			ar.Use(authHandler.AuthMiddleware)
			ar.Use(adminAuth.RequireAdmin())

			ar.Post("/rebuild", registryHandler.Rebuild)

			ar.Get("/pending_users", accessHandler.GetPendingUsers)

			ar.Get("/user", accessHandler.GetUsers)
			ar.Route("/user/{username}", func(ur chi.Router) {
				ur.Get("/", accessHandler.GetUser)
				ur.Delete("/", accessHandler.DeleteUser)
				ur.Post("/approve", accessHandler.ApproveUser)
				ur.Post("/admin", accessHandler.SetAdminStatus)
				ur.Get("/permissions", accessHandler.GetUserPermissions)
				ur.Put("/group/{group}", accessHandler.EditUserGroup)
				ur.Delete("/group/{group}", accessHandler.EditUserGroup)
			})

			ar.Get("/group", accessHandler.GetGroups)
			ar.Route("/group/{group}", func(gr chi.Router) {
				gr.Get("/", accessHandler.GetGroupDetail)
				gr.Put("/", accessHandler.CreateGroup)
				gr.Delete("/", accessHandler.DeleteGroup)
			})

			ar.Get("/package/{package}", accessHandler.GetPackagePermissions)
			ar.Put("/package/{package}/type/{type}/name/{name}/permission/{permission}", accessHandler.EditPermission)
			ar.Delete("/package/{package}/type/{type}/name/{name}/permission/{permission}", accessHandler.EditPermission)

			ar.Post("/register", accessHandler.ToggleAllowRegister)
		})
	})
}
