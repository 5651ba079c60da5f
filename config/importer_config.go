package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Storage
	DatabaseURL  string
	MongoDBURL   string
	MongoDBName  string
	RedisURL     string
	BlobStoreURL string

	// Catalog API
	CatalogBaseURL string

	// OAuth defaults (used when a tenant has no stored credentials)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleAuthURI      string
	GoogleTokenURI     string
	GoogleRevokeURI    string
	OAuthRedirectURL   string

	// Admin API
	AdminJWTSecret string

	// Import pipeline
	ImportLockTTL      time.Duration
	SkuUpdateWorkers   int
	WatchRenewalWindow time.Duration
	WatchLifetime      time.Duration
	ReportTTL          time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Storage
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		MongoDBURL:   getEnv("MONGODB_URL", ""),
		MongoDBName:  getEnv("MONGODB_DATABASE", "driveimport"),
		RedisURL:     getEnv("REDIS_URL", ""),
		BlobStoreURL: getEnv("BLOBSTORE_URL", ""),

		// Catalog API
		CatalogBaseURL: getEnv("CATALOG_BASE_URL", ""),

		// OAuth
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleAuthURI:      getEnv("GOOGLE_AUTH_URI", "https://accounts.google.com/o/oauth2/auth"),
		GoogleTokenURI:     getEnv("GOOGLE_TOKEN_URI", "https://oauth2.googleapis.com/token"),
		GoogleRevokeURI:    getEnv("GOOGLE_REVOKE_URI", "https://oauth2.googleapis.com/revoke"),
		OAuthRedirectURL:   getEnv("OAUTH_REDIRECT_URL", ""),

		// Admin API
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		// Import pipeline
		ImportLockTTL:      time.Duration(getEnvInt("IMPORT_LOCK_TTL_SEC", 600)) * time.Second,
		SkuUpdateWorkers:   getEnvInt("SKU_UPDATE_WORKERS", 5),
		WatchRenewalWindow: time.Duration(getEnvInt("WATCH_RENEWAL_WINDOW_MIN", 60)) * time.Minute,
		WatchLifetime:      time.Duration(getEnvInt("WATCH_LIFETIME_HOURS", 24*365)) * time.Hour,
		ReportTTL:          time.Duration(getEnvInt("REPORT_TTL_HOURS", 24*30)) * time.Hour,

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
