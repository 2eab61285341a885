package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("DB_DRIVER", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, defaultJWTSecret, cfg.JWT.Secret)
	assert.False(t, cfg.Cookie.Secure)
	assert.Equal(t, "log", cfg.Mail.Driver)
	assert.Equal(t, NotifyConfig{Workers: 2, QueueSize: 100, RatePerSec: 5}, cfg.Notify)
	assert.Equal(t, "/uploads", cfg.Upload.PublicPath)
	assert.Equal(t, "http://localhost:3000", cfg.GetAllowedOrigins())
}

func TestFromEnvModePrefixes(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("DEV_DB_HOST", "ignored")
	t.Setenv("PROD_JWT_SECRET", "s3cret")
	t.Setenv("APP_BASE_URL", "https://loans.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.True(t, cfg.Cookie.Secure, "prod cookies default to secure")
	assert.Equal(t, "https://loans.example.com", cfg.BaseURL)
	assert.Equal(t, "https://a.example.com,https://b.example.com", cfg.GetAllowedOrigins())
}

func TestFromEnvRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown mode", map[string]string{"APP_MODE": "staging"}},
		{"unknown driver", map[string]string{"APP_MODE": "dev", "DB_DRIVER": "oracle"}},
		{"unknown mailer", map[string]string{"APP_MODE": "dev", "MAIL_DRIVER": "carrier-pigeon"}},
		{"bad worker count", map[string]string{"APP_MODE": "dev", "NOTIFY_WORKERS": "many"}},
		{"bad seed flag", map[string]string{"APP_MODE": "dev", "SEED_DEMO_USERS": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnvProdNeedsSecret(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("PROD_JWT_SECRET", "")

	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrDefaultSecret)
}

func TestDSNs(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}

	assert.Contains(t, buildMySQLDSN(d), "u:p@tcp(h:1)/n?")
	assert.Contains(t, buildMySQLDSN(d), "loc=UTC")
	assert.Contains(t, buildMySQLDSN(d), "clientFoundRows=true")
	assert.Contains(t, buildPostgresDSN(d), "host=h")
	assert.Contains(t, buildPostgresDSN(d), "dbname=n")

	_, err := dialectorFor(DatabaseConfig{Driver: "memory"})
	assert.Error(t, err)
}
