// config/config.go - Environment backed configuration
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	Port        string
	CORSOrigins string

	JWTSecret string
	JWTTTL    time.Duration

	// StoreBackend is "postgres" or "memory".
	StoreBackend string
	Database     DatabaseConfig
	RedisURL     string

	LogLevel string
	LogFile  string

	RateLimit RateLimitConfig

	OAuth OAuthConfig
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RateLimitConfig struct {
	Disabled       bool
	Requests       int
	Window         time.Duration
	AuthRequests   int
	AuthWindow     time.Duration
	CleanupEvery   time.Duration
	IdleExpiration time.Duration
}

// OAuthConfig holds the external sign-in apps. A provider with an empty
// client id is disabled.
type OAuthConfig struct {
	// RedirectBase is the public origin the providers call back to.
	RedirectBase string
	Google       OAuthClient
	GitHub       OAuthClient
}

type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the client has credentials.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// DSN returns DATABASE_URL when set, otherwise builds one from the DB_* parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads configuration from the environment. Call godotenv first if a
// .env file should be honoured.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "3000")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("STORE_BACKEND", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "wizzzard")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "logs/wizzzard.log")
	v.SetDefault("RATE_LIMIT_DISABLED", false)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("AUTH_RATE_LIMIT_REQUESTS", 5)
	v.SetDefault("AUTH_RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_CLEANUP", "5m")
	v.SetDefault("RATE_LIMIT_IDLE", "10m")
	v.SetDefault("OAUTH_REDIRECT_BASE", "http://localhost:3000")

	cfg := &Config{
		AppEnv:       v.GetString("APP_ENV"),
		Port:         v.GetString("PORT"),
		CORSOrigins:  v.GetString("CORS_ORIGINS"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTTTL:       v.GetDuration("JWT_TTL"),
		StoreBackend: strings.ToLower(v.GetString("STORE_BACKEND")),
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		RedisURL: v.GetString("REDIS_URL"),
		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),
		RateLimit: RateLimitConfig{
			Disabled:       v.GetBool("RATE_LIMIT_DISABLED"),
			Requests:       v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:         v.GetDuration("RATE_LIMIT_WINDOW"),
			AuthRequests:   v.GetInt("AUTH_RATE_LIMIT_REQUESTS"),
			AuthWindow:     v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			CleanupEvery:   v.GetDuration("RATE_LIMIT_CLEANUP"),
			IdleExpiration: v.GetDuration("RATE_LIMIT_IDLE"),
		},
		OAuth: OAuthConfig{
			RedirectBase: strings.TrimRight(v.GetString("OAUTH_REDIRECT_BASE"), "/"),
			Google: OAuthClient{
				ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
				ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			},
			GitHub: OAuthClient{
				ClientID:     v.GetString("GITHUB_CLIENT_ID"),
				ClientSecret: v.GetString("GITHUB_CLIENT_SECRET"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long (current: %d)", len(c.JWTSecret))
	}
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", c.StoreBackend)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}
