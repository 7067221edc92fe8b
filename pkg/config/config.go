package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	DataDir            string
	LogLevel           string
	JWTSecret          string
	TokenTTL           time.Duration
	RedisURL           string
	LoginMaxAttempts   int
	LoginLockout       time.Duration
	CORSAllowedOrigins []string
	DefaultLocale      string
	APIRateLimit       int
	OTLPEndpoint       string
	Store              StoreConfig
}

// StoreConfig tunes the record store retry behaviour
type StoreConfig struct {
	ReadAttempts  int
	WriteAttempts int
	RetryDelay    time.Duration
}

// UsersPath is the users collection file.
func (c *Config) UsersPath() string { return filepath.Join(c.DataDir, "users.json") }

// DrawsPath is the draws collection file.
func (c *Config) DrawsPath() string { return filepath.Join(c.DataDir, "pairs.json") }

// ResetRequestsPath is the password reset requests collection file.
func (c *Config) ResetRequestsPath() string { return filepath.Join(c.DataDir, "reset_requests.json") }

// ActivityLogPath is the append-only activity log.
func (c *Config) ActivityLogPath() string { return filepath.Join(c.DataDir, "activity.log") }

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	ttlMinutes, err := getInt("TOKEN_TTL_MINUTES", 1440)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := getInt("LOGIN_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	lockoutMinutes, err := getInt("LOGIN_LOCKOUT_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getInt("API_RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return nil, err
	}
	readAttempts, err := getInt("STORE_READ_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	writeAttempts, err := getInt("STORE_WRITE_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	retryDelayMS, err := getInt("STORE_RETRY_DELAY_MS", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         port,
		DataDir:            getEnv("DATA_DIR", "./data"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           time.Duration(ttlMinutes) * time.Minute,
		RedisURL:           os.Getenv("REDIS_URL"),
		LoginMaxAttempts:   maxAttempts,
		LoginLockout:       time.Duration(lockoutMinutes) * time.Minute,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		DefaultLocale:      strings.ToLower(getEnv("DEFAULT_LOCALE", "sv")),
		APIRateLimit:       rateLimit,
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Store: StoreConfig{
			ReadAttempts:  readAttempts,
			WriteAttempts: writeAttempts,
			RetryDelay:    time.Duration(retryDelayMS) * time.Millisecond,
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}
	if c.LoginMaxAttempts < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be at least 1")
	}
	if c.Store.ReadAttempts < 1 || c.Store.WriteAttempts < 1 {
		return fmt.Errorf("store attempts must be at least 1")
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
