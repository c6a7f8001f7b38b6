package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "cache.json", cfg.Scraper.CacheFile)
	assert.Equal(t, "data", cfg.Scraper.OutputDir)
	assert.Equal(t, time.Second, cfg.Scraper.RequestDelayMin)
	assert.Equal(t, 2*time.Second, cfg.Scraper.RequestDelayMax)
	assert.Equal(t, 3, cfg.Scraper.ListingRetries)
	assert.Equal(t, 2*time.Second, cfg.Scraper.ListingRetryBase)
	assert.Equal(t, 2, cfg.Scraper.DetailRetries)
	assert.Equal(t, time.Second, cfg.Scraper.DetailRetryBase)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CACHE_FILE", "/tmp/c.json")
	t.Setenv("SCRAPER_DELAY_MIN", "500ms")
	t.Setenv("SCRAPER_DELAY_MAX", "750ms")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8081", cfg.Addr())
	assert.Equal(t, "/tmp/c.json", cfg.Scraper.CacheFile)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.RequestDelayMin)
	assert.Equal(t, 750*time.Millisecond, cfg.Scraper.RequestDelayMax)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 5432, cfg.Database.Port, "invalid values fall back to defaults")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty cache file", func(c *Config) { c.Scraper.CacheFile = "" }, true},
		{"empty output dir", func(c *Config) { c.Scraper.OutputDir = "" }, true},
		{"min above max", func(c *Config) { c.Scraper.RequestDelayMin = 3 * time.Second }, true},
		{"zero retries", func(c *Config) { c.Scraper.DetailRetries = 0 }, true},
		{"redis without db", func(c *Config) { c.Redis.Enabled = true }, true},
		{"redis with db", func(c *Config) { c.Redis.Enabled = true; c.Database.Enabled = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, DBName: "catalog", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/catalog?sslmode=disable", d.DSN())
}
