package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage     StorageConfig
	Cart        CartConfig
	Recent      RecentConfig
	Kafka       KafkaConfig
	Throttle    ThrottleConfig
	Graceful    GracefulConfig
}

// StorageConfig selects the store implementations.
type StorageConfig struct {
	Driver       string `default:"postgres" usage:"Cart and catalog storage: postgres or memory"`
	RecentDriver string `default:"" usage:"Recently viewed storage: postgres, bolt or memory; defaults to the storage driver" flag:"recent-driver"`
	RecentPath   string `default:"recent.db" usage:"BoltDB file for recently viewed products" flag:"recent-path"`
}

// CartConfig tunes cart-editing sessions.
type CartConfig struct {
	PageSize      int           `default:"5" usage:"Default number of cart lines per page" flag:"page-size"`
	StoreTimeout  time.Duration `default:"3s" usage:"Timeout of a single store call" flag:"store-timeout"`
	SessionTTL    time.Duration `default:"30m" usage:"Idle time after which a session is closed" flag:"session-ttl"`
	SweepInterval time.Duration `default:"1m" usage:"How often idle sessions are swept" flag:"sweep-interval"`
}

// RecentConfig tunes the recently viewed list.
type RecentConfig struct {
	Limit int `default:"10" usage:"Recently viewed products returned by default"`
}

// KafkaConfig configures the session difference sink. Publishing is
// disabled when no brokers are set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers for cart differences"`
	Topic   string   `default:"kart.cart-differences" usage:"Kafka topic for cart differences"`
}

// ThrottleConfig limits how often one client may open sessions.
type ThrottleConfig struct {
	Max    int           `default:"30" usage:"Max session opens per window; 0 disables"`
	Window time.Duration `default:"1m" usage:"Throttle window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver names and the settings they require.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.recentDriver() {
	case DriverMemory, DriverBolt:
	case DriverPostgres:
		if c.Storage.Driver != DriverPostgres {
			return errors.New("postgres recent driver requires postgres storage")
		}
	default:
		return errors.Errorf("unknown recent driver %q", c.Storage.RecentDriver)
	}
	if c.Cart.PageSize <= 0 {
		return errors.Errorf("page size must be positive, got %d", c.Cart.PageSize)
	}
	return nil
}

func (c *Config) recentDriver() string {
	if c.Storage.RecentDriver == "" {
		return c.Storage.Driver
	}
	return c.Storage.RecentDriver
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
