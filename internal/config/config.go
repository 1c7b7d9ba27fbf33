// Package config provides centralized configuration management for the
// storefront. It loads settings from environment variables with sensible
// defaults and validates everything on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Admin    AdminConfig
	Services ServicesConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// AdminConfig identifies the site owner.
type AdminConfig struct {
	// OwnerEmail is the account granted admin access (required). It also
	// receives form submission notifications.
	OwnerEmail string `env:"ADMIN_OWNER_EMAIL" required:"true"`
}

// ServicesConfig holds endpoints and credentials for upstream services.
type ServicesConfig struct {
	// UsersURL is the base URL of the session/user service (required)
	UsersURL string `env:"USERS_SERVICE_URL" required:"true"`

	// ShoppingURL is the base URL of the shopping/payments service (required)
	ShoppingURL string `env:"SHOPPING_SERVICE_URL" required:"true"`

	// RunURL is the base URL of the model-run gateway used for email
	// delivery and the chatbot (required)
	RunURL string `env:"RUN_SERVICE_URL" required:"true"`

	// APIKey authenticates calls to the model-run gateway (required)
	APIKey string `env:"RUN_SERVICE_API_KEY" required:"true"`

	// ProjectID scopes shopping and email calls to this deployment (required)
	ProjectID string `env:"PROJECT_ID" required:"true"`

	// SenderDomain is the domain outbound emails are sent from (default: throwingafit.com)
	SenderDomain string `env:"EMAIL_SENDER_DOMAIN" default:"throwingafit.com"`

	// Origin is reported upstream as the request origin (default: https://throwingafit.com)
	Origin string `env:"SERVICE_ORIGIN" default:"https://throwingafit.com"`
}

// StorageConfig holds object storage settings for media uploads.
type StorageConfig struct {
	// Endpoint is the S3-compatible endpoint host:port (required)
	Endpoint string `env:"STORAGE_ENDPOINT" required:"true"`

	// AccessKey is the storage access key id (required)
	AccessKey string `env:"STORAGE_ACCESS_KEY" required:"true"`

	// SecretKey is the storage secret key (required)
	SecretKey string `env:"STORAGE_SECRET_KEY" required:"true"`

	// Bucket is the bucket uploads are written to (default: storefront-media)
	Bucket string `env:"STORAGE_BUCKET" default:"storefront-media"`

	// UseSSL controls TLS for the storage endpoint (default: true)
	UseSSL bool `env:"STORAGE_USE_SSL" default:"true"`

	// PublicBaseURL is the URL prefix stored objects are served from
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL"`
}

// UploadConfig holds media upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
