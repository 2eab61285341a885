package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"

	"mortgageos/internal/adapters/http/handlers"
	"mortgageos/internal/adapters/http/middleware"
	"mortgageos/internal/config"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/core/services"
	"mortgageos/internal/pkg/jwt"
	"mortgageos/internal/pkg/metrics"
)

// Dependencies are the wired services the HTTP layer serves
type Dependencies struct {
	Config    *config.Config
	Tokens    *jwt.Manager
	Metrics   *metrics.Metrics
	Ping      handlers.Pinger
	Auth      *services.AuthService
	Users     *services.UserService
	Loans     *services.LoanService
	Documents *services.DocumentService
	Notes     *services.NoteService
	Settings  *services.SettingsService
	Audit     *services.AuditService
	Dashboard *services.DashboardService
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps Dependencies) {
	cfg := deps.Config
	gate := middleware.NewGate(deps.Tokens, cfg.IsDev())

	healthHandler := handlers.NewHealthHandler(cfg.AppMode, deps.Ping)
	authHandler := handlers.NewAuthHandler(deps.Auth, cfg)
	userHandler := handlers.NewUserHandler(deps.Users)
	loanHandler := handlers.NewLoanHandler(deps.Loans, deps.Documents, deps.Notes)
	adminHandler := handlers.NewAdminHandler(deps.Audit, deps.Settings, deps.Dashboard)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Uploaded documents
	app.Use(cfg.Upload.PublicPath, middleware.PrivateCacheHeaders(time.Hour))
	app.Static(cfg.Upload.PublicPath, cfg.Upload.Dir, fiber.Static{ByteRange: true})

	api := app.Group("/api/v1", middleware.NoCacheHeaders())
	setupAuthRoutes(api, gate, authHandler)
	setupLoanRoutes(api, gate, loanHandler)
	setupAdminRoutes(api, gate, userHandler, adminHandler)
}

func setupAuthRoutes(r fiber.Router, gate *middleware.Gate, h *handlers.AuthHandler) {
	r.Use("/auth/login", middleware.AuthRateLimiter())
	r.Use("/auth/register", middleware.AuthRateLimiter())

	gate.Route(r, "/auth/login", middleware.Options{Access: domain.Public}, middleware.Methods{
		fiber.MethodPost: h.Login,
	})
	gate.Route(r, "/auth/register", middleware.Options{Access: domain.Public}, middleware.Methods{
		fiber.MethodPost: h.Register,
	})
	gate.Route(r, "/auth/logout", middleware.Options{Access: domain.Public, OptionalSession: true}, middleware.Methods{
		fiber.MethodPost: h.Logout,
	})
	gate.Route(r, "/auth/me", middleware.Options{Access: domain.AnyAuthenticated}, middleware.Methods{
		fiber.MethodGet: h.Me,
	})
}

func setupLoanRoutes(r fiber.Router, gate *middleware.Gate, h *handlers.LoanHandler) {
	borrower := middleware.Options{Access: domain.RequireRole(domain.RoleBorrower)}
	lender := middleware.Options{Access: domain.RequireRole(domain.RoleLender)}
	authed := middleware.Options{Access: domain.AnyAuthenticated}

	gate.Route(r, "/loans", borrower, middleware.Methods{
		fiber.MethodGet:  h.ListMine,
		fiber.MethodPost: h.Create,
	})
	gate.Route(r, "/loans/:id", authed, middleware.Methods{
		fiber.MethodGet: h.Get,
		fiber.MethodPut: h.Update,
	})
	gate.Route(r, "/loans/:id/submit", borrower, middleware.Methods{
		fiber.MethodPost: h.Submit,
	})
	gate.Route(r, "/loans/:id/withdraw", borrower, middleware.Methods{
		fiber.MethodPost: h.Withdraw,
	})
	gate.Route(r, "/loans/:id/status", lender, middleware.Methods{
		fiber.MethodPut: h.SetStatus,
	})
	gate.Route(r, "/loans/:id/risk", authed, middleware.Methods{
		fiber.MethodGet: h.Risk,
	})
	gate.Route(r, "/loans/:id/documents", authed, middleware.Methods{
		fiber.MethodGet:  h.ListDocuments,
		fiber.MethodPost: h.UploadDocument,
	})
	gate.Route(r, "/loans/:id/notes", lender, middleware.Methods{
		fiber.MethodGet:  h.ListNotes,
		fiber.MethodPost: h.CreateNote,
	})
	gate.Route(r, "/lender/loans", lender, middleware.Methods{
		fiber.MethodGet: h.Pipeline,
	})
}

func setupAdminRoutes(r fiber.Router, gate *middleware.Gate, users *handlers.UserHandler, admin *handlers.AdminHandler) {
	superAdmin := middleware.Options{Access: domain.RequireRole(domain.RoleSuperAdmin)}

	gate.Route(r, "/profile", middleware.Options{Access: domain.AnyAuthenticated}, middleware.Methods{
		fiber.MethodGet: users.GetProfile,
		fiber.MethodPut: users.UpdateProfile,
	})
	gate.Route(r, "/users", superAdmin, middleware.Methods{
		fiber.MethodGet:  users.ListUsers,
		fiber.MethodPost: users.CreateUser,
	})
	gate.Route(r, "/users/:id", superAdmin, middleware.Methods{
		fiber.MethodGet:    users.GetUser,
		fiber.MethodPut:    users.UpdateUser,
		fiber.MethodDelete: users.DeleteUser,
	})
	gate.Route(r, "/audit", superAdmin, middleware.Methods{
		fiber.MethodGet: admin.ListAudit,
	})
	gate.Route(r, "/settings", superAdmin, middleware.Methods{
		fiber.MethodGet: admin.ListSettings,
		fiber.MethodPut: admin.UpsertSetting,
	})
	gate.Route(r, "/admin/stats", superAdmin, middleware.Methods{
		fiber.MethodGet: admin.Stats,
	})
}
