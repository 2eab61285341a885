package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mortgageos/internal/adapters/http/middleware"
	"mortgageos/internal/adapters/http/routes"
	"mortgageos/internal/adapters/mail"
	"mortgageos/internal/adapters/persistence/memory"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/adapters/storage"
	"mortgageos/internal/config"
	"mortgageos/internal/core/services"
	"mortgageos/internal/pkg/jwt"
	"mortgageos/internal/pkg/metrics"

	_ "mortgageos/docs" // Swagger docs
)

// @title MortgageOS API
// @version 1.0
// @description Mortgage origination portal: borrower applications, lender pipeline and admin console

// @contact.name API Support
// @contact.email support@platform.com

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// stores groups the repositories one backend provides
type stores struct {
	tx      repositories.Transactor
	users   repositories.UserRepository
	loans   repositories.LoanRepository
	docs    repositories.DocumentRepository
	notes   repositories.NoteRepository
	audit   repositories.AuditLogRepository
	configs repositories.SystemConfigRepository
}

func gormStores(db *gorm.DB) stores {
	return stores{
		tx:      repositories.NewTransactor(db),
		users:   repositories.NewUserRepository(db),
		loans:   repositories.NewLoanRepository(db),
		docs:    repositories.NewDocumentRepository(db),
		notes:   repositories.NewNoteRepository(db),
		audit:   repositories.NewAuditLogRepository(db),
		configs: repositories.NewSystemConfigRepository(db),
	}
}

func memoryStores(s *memory.Store) stores {
	return stores{
		tx:      s,
		users:   s.Users(),
		loans:   s.Loans(),
		docs:    s.Documents(),
		notes:   s.Notes(),
		audit:   s.AuditLogs(),
		configs: s.SystemConfigs(),
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	var (
		db   *gorm.DB
		repo stores
	)
	if cfg.Database.Driver == "memory" {
		log.Println("⚠️ Using in-memory store; data is lost on restart")
		repo = memoryStores(memory.NewStore())
	} else {
		db, err = config.ConnectDatabase(cfg)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer config.CloseDatabase(db)

		if err := config.AutoMigrate(db); err != nil {
			log.Fatalf("❌ Failed to auto migrate: %v", err)
		}
		repo = gormStores(db)
	}

	ctx := context.Background()
	if err := config.NewSeeder(repo.tx, repo.users, repo.configs).Run(ctx, cfg.SeedDemoUsers); err != nil {
		log.Printf("⚠️ Warning: Failed to seed data: %v", err)
	}

	m := metrics.New()
	tokens, err := jwt.NewManager(cfg.JWT.Secret)
	if err != nil {
		log.Fatalf("❌ Invalid JWT configuration: %v", err)
	}
	files, err := storage.NewLocalStore(cfg.Upload.Dir, cfg.Upload.PublicPath)
	if err != nil {
		log.Fatalf("❌ Failed to prepare upload directory: %v", err)
	}

	// Notification workers
	dispatcher := services.NewDispatcher(newMailer(cfg), services.DispatcherConfig{
		Workers:    cfg.Notify.Workers,
		QueueSize:  cfg.Notify.QueueSize,
		RatePerSec: cfg.Notify.RatePerSec,
	}, m)
	dispatcher.Start()
	defer dispatcher.Stop()
	notifier := services.NewStatusEmailNotifier(dispatcher, cfg.BaseURL)

	// Services
	auditService := services.NewAuditService(repo.audit)
	dashboardService := services.NewDashboardService(repo.tx, repo.users, repo.loans, m)
	deps := routes.Dependencies{
		Config:    cfg,
		Tokens:    tokens,
		Metrics:   m,
		Ping:      func(ctx context.Context) error { return config.HealthCheck(ctx, db) },
		Auth:      services.NewAuthService(repo.tx, repo.users, auditService, tokens, m),
		Users:     services.NewUserService(repo.tx, repo.users, auditService),
		Loans:     services.NewLoanService(repo.tx, repo.loans, repo.docs, auditService, notifier, m),
		Documents: services.NewDocumentService(repo.tx, repo.loans, repo.docs, files, auditService),
		Notes:     services.NewNoteService(repo.tx, repo.loans, repo.notes, auditService),
		Settings:  services.NewSettingsService(repo.tx, repo.configs, auditService),
		Audit:     auditService,
		Dashboard: dashboardService,
	}

	// Daily pipeline report
	cronService, err := services.NewCronService(dashboardService, cfg.ReportSchedule)
	if err != nil {
		log.Fatalf("❌ Invalid REPORT_SCHEDULE: %v", err)
	}
	cronService.Start()
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "MortgageOS API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
		BodyLimit:    storage.MaxUploadSize + 1024*1024,
	})

	// Setup middlewares
	middleware.Setup(app, cfg, m)

	// Setup routes
	routes.Setup(app, deps)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("❌ Failed to start server: %v", err)
	}
}

func newMailer(cfg *config.Config) mail.Mailer {
	if cfg.Mail.Driver == "smtp" {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}
	return mail.NewLogMailer()
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
