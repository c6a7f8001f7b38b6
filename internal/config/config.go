package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	CacheFile        string
	OutputDir        string
	CategoriesFile   string
	RequestDelayMin  time.Duration
	RequestDelayMax  time.Duration
	ListingRetries   int
	ListingRetryBase time.Duration
	DetailRetries    int
	DetailRetryBase  time.Duration
	RetryJitter      time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
}

// DatabaseConfig configures the optional Postgres export. Export is off
// unless Enabled is set.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig configures the relay of export events to a Redis stream. It
// only runs when the database export is enabled too.
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	Stream        string
	RelayInterval time.Duration
	RelayBatch    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "3000"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 0),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			CacheFile:        getEnvOrDefault("CACHE_FILE", "cache.json"),
			OutputDir:        getEnvOrDefault("OUTPUT_DIR", "data"),
			CategoriesFile:   getEnvOrDefault("CATEGORIES_FILE", ""),
			RequestDelayMin:  getDurationOrDefault("SCRAPER_DELAY_MIN", time.Second),
			RequestDelayMax:  getDurationOrDefault("SCRAPER_DELAY_MAX", 2*time.Second),
			ListingRetries:   getIntOrDefault("SCRAPER_LISTING_RETRIES", 3),
			ListingRetryBase: getDurationOrDefault("SCRAPER_LISTING_RETRY_BASE", 2*time.Second),
			DetailRetries:    getIntOrDefault("SCRAPER_DETAIL_RETRIES", 2),
			DetailRetryBase:  getDurationOrDefault("SCRAPER_DETAIL_RETRY_BASE", time.Second),
			RetryJitter:      getDurationOrDefault("SCRAPER_RETRY_JITTER", time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "vi-VN"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Ho_Chi_Minh"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:       getBoolOrDefault("REDIS_ENABLED", false),
			Addr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:      getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:            getIntOrDefault("REDIS_DB", 0),
			Stream:        getEnvOrDefault("REDIS_STREAM", "stream:catalog_products"),
			RelayInterval: getDurationOrDefault("REDIS_RELAY_INTERVAL", 5*time.Second),
			RelayBatch:    getIntOrDefault("REDIS_RELAY_BATCH", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.CacheFile == "" {
		return fmt.Errorf("CACHE_FILE must not be empty")
	}

	if c.Scraper.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}

	if c.Scraper.RequestDelayMin < 0 || c.Scraper.RequestDelayMin > c.Scraper.RequestDelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN must be between 0 and SCRAPER_DELAY_MAX")
	}

	if c.Scraper.ListingRetries < 1 || c.Scraper.DetailRetries < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}

	if c.Redis.Enabled && !c.Database.Enabled {
		return fmt.Errorf("REDIS_ENABLED requires DB_ENABLED")
	}

	if c.Redis.Enabled && c.Redis.RelayBatch < 1 {
		return fmt.Errorf("REDIS_RELAY_BATCH must be at least 1")
	}

	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
