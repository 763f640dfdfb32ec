package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        "0.0.0.0:8080",
		DatabaseURL: "postgres://kart@localhost/kart",
		Storage:     StorageConfig{Driver: DriverPostgres},
		Cart:        CartConfig{PageSize: 5},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "postgres"},
		{name: "memory without database", modify: func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.DatabaseURL = ""
		}},
		{name: "bolt recents over memory", modify: func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.Storage.RecentDriver = DriverBolt
		}},
		{name: "postgres requires url", modify: func(c *Config) {
			c.DatabaseURL = ""
		}, wantErr: "database URL is required"},
		{name: "unknown driver", modify: func(c *Config) {
			c.Storage.Driver = "sqlite"
		}, wantErr: `unknown storage driver "sqlite"`},
		{name: "unknown recent driver", modify: func(c *Config) {
			c.Storage.RecentDriver = "redis"
		}, wantErr: `unknown recent driver "redis"`},
		{name: "postgres recents need postgres storage", modify: func(c *Config) {
			c.Storage.Driver = DriverMemory
			c.Storage.RecentDriver = DriverPostgres
		}, wantErr: "requires postgres storage"},
		{name: "page size", modify: func(c *Config) {
			c.Cart.PageSize = 0
		}, wantErr: "page size must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRecentDriverDefaultsToStorage(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, DriverPostgres, cfg.recentDriver())

	cfg.Storage.RecentDriver = DriverBolt
	assert.Equal(t, DriverBolt, cfg.recentDriver())
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/kart")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/kart", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	explicit := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/kart"}
	explicit.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/kart", explicit.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", explicit.Addr)
}
