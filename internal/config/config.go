package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all client configuration loaded from environment variables.
type Config struct {
	API      APIConfig
	App      AppConfig
	Session  SessionConfig
	Checkout CheckoutConfig
	State    StateConfig
	Link     LinkConfig
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	BaseURL string        `envconfig:"API_BASE_URL" default:"https://api.gundalf.app"`
	Timeout time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"gundalf-client"`
	Version  string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// SessionConfig holds token lifecycle settings.
type SessionConfig struct {
	// RefreshLead is how long before token expiry the proactive refresh fires.
	RefreshLead time.Duration `envconfig:"SESSION_REFRESH_LEAD" default:"60s"`
}

// CheckoutConfig holds payment screen timing settings.
type CheckoutConfig struct {
	PollInterval      time.Duration `envconfig:"CHECKOUT_POLL_INTERVAL" default:"5s"`
	CountdownInterval time.Duration `envconfig:"CHECKOUT_COUNTDOWN_INTERVAL" default:"1s"`
	// FallbackExpiry is assumed when a payment carries no expiry timestamp.
	FallbackExpiry time.Duration `envconfig:"CHECKOUT_FALLBACK_EXPIRY" default:"20m"`
}

// StateConfig holds local state store settings.
type StateConfig struct {
	Type string `envconfig:"STATE_STORE" default:"sqlite"` // sqlite, mysql, redis, or memory
	Path string `envconfig:"STATE_PATH" default:"./data/gundalf.db"`

	// MySQL settings (shared store for fleet deployments)
	MySQLHost     string `envconfig:"STATE_MYSQL_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"STATE_MYSQL_PORT" default:"3306"`
	MySQLName     string `envconfig:"STATE_MYSQL_NAME" default:"gundalf"`
	MySQLUser     string `envconfig:"STATE_MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"STATE_MYSQL_PASS" default:""`

	// Redis settings
	RedisHost     string `envconfig:"STATE_REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"STATE_REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"STATE_REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"STATE_REDIS_DB" default:"0"`
}

// LinkConfig holds settings for the local OAuth return listener.
type LinkConfig struct {
	ListenAddr string        `envconfig:"LINK_LISTEN_ADDR" default:"127.0.0.1:8976"`
	WaitLimit  time.Duration `envconfig:"LINK_WAIT_LIMIT" default:"15m"`
}

// MySQLDSN returns the MySQL data source name for the state store.
func (s *StateConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.MySQLUser, s.MySQLPassword, s.MySQLHost, s.MySQLPort, s.MySQLName)
}

// RedisAddress returns the Redis address in host:port format.
func (s *StateConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
