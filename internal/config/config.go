package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "default_secret"

// ErrDefaultSecret is returned when prod runs with the built-in JWT secret
var ErrDefaultSecret = errors.New("PROD_JWT_SECRET must be set in prod mode")

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	BaseURL  string
	Database DatabaseConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Mail     MailConfig
	Upload   UploadConfig
	Notify   NotifyConfig

	AllowedOrigins string
	ReportSchedule string
	SeedDemoUsers  bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string // mysql, postgres or memory
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// CookieConfig holds session cookie configuration
type CookieConfig struct {
	Secure bool
	Domain string
}

// MailConfig selects and configures the mailer
type MailConfig struct {
	Driver   string // log or smtp
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// UploadConfig holds document storage configuration
type UploadConfig struct {
	Dir        string
	PublicPath string
}

// NotifyConfig sizes the notification worker pool
type NotifyConfig struct {
	Workers    int
	QueueSize  int
	RatePerSec float64
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment
func FromEnv() (*Config, error) {
	// Trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	db, err := loadDatabaseConfig(appMode)
	if err != nil {
		return nil, err
	}
	notify, err := loadNotifyConfig()
	if err != nil {
		return nil, err
	}
	seed, err := strconv.ParseBool(getEnv("SEED_DEMO_USERS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_DEMO_USERS: %w", err)
	}

	cfg := &Config{
		AppMode:        appMode,
		Port:           getEnv("PORT", "3000"),
		BaseURL:        strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		Database:       db,
		JWT:            loadJWTConfig(appMode),
		Cookie:         loadCookieConfig(appMode),
		Mail:           loadMailConfig(),
		Upload:         loadUploadConfig(),
		Notify:         notify,
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		ReportSchedule: getEnv("REPORT_SCHEDULE", "30 8 * * *"),
		SeedDemoUsers:  seed,
	}

	if cfg.IsProd() && cfg.JWT.Secret == defaultJWTSecret {
		return nil, ErrDefaultSecret
	}
	if cfg.Mail.Driver != "log" && cfg.Mail.Driver != "smtp" {
		return nil, fmt.Errorf("invalid MAIL_DRIVER: '%s' (must be 'log' or 'smtp')", cfg.Mail.Driver)
	}

	log.Printf("✅ Configuration loaded successfully [MODE: %s, DB: %s]", appMode, db.Driver)
	return cfg, nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) (DatabaseConfig, error) {
	prefix := modePrefix(mode)

	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	defaultPort := "3306"
	switch driver {
	case "mysql", "memory":
	case "postgres":
		defaultPort = "5432"
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql', 'postgres' or 'memory')", driver)
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", defaultPort),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "mortgageos"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}, nil
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	return JWTConfig{
		Secret: getEnv(modePrefix(mode)+"JWT_SECRET", defaultJWTSecret),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	def := "false"
	if mode == "prod" {
		def = "true"
	}
	secure, _ := strconv.ParseBool(getEnv(modePrefix(mode)+"COOKIE_SECURE", def))

	return CookieConfig{
		Secure: secure,
		Domain: getEnv("COOKIE_DOMAIN", ""),
	}
}

func loadMailConfig() MailConfig {
	return MailConfig{
		Driver:   strings.ToLower(getEnv("MAIL_DRIVER", "log")),
		Host:     getEnv("SMTP_HOST", "localhost"),
		Port:     getEnv("SMTP_PORT", "587"),
		User:     getEnv("SMTP_USER", ""),
		Password: getEnv("SMTP_PASS", ""),
		From:     getEnv("MAIL_FROM", "MortgageOS <noreply@mortgageos.local>"),
	}
}

func loadUploadConfig() UploadConfig {
	return UploadConfig{
		Dir:        getEnv("UPLOAD_DIR", "./uploads"),
		PublicPath: getEnv("UPLOAD_PUBLIC_PATH", "/uploads"),
	}
}

func loadNotifyConfig() (NotifyConfig, error) {
	workers, err := strconv.Atoi(getEnv("NOTIFY_WORKERS", "2"))
	if err != nil {
		return NotifyConfig{}, fmt.Errorf("invalid NOTIFY_WORKERS: %w", err)
	}
	queue, err := strconv.Atoi(getEnv("NOTIFY_QUEUE_SIZE", "100"))
	if err != nil {
		return NotifyConfig{}, fmt.Errorf("invalid NOTIFY_QUEUE_SIZE: %w", err)
	}
	rate, err := strconv.ParseFloat(getEnv("NOTIFY_RATE_PER_SEC", "5"), 64)
	if err != nil {
		return NotifyConfig{}, fmt.Errorf("invalid NOTIFY_RATE_PER_SEC: %w", err)
	}
	return NotifyConfig{Workers: workers, QueueSize: queue, RatePerSec: rate}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	if c.AllowedOrigins == "" {
		return c.BaseURL
	}
	return c.AllowedOrigins
}

