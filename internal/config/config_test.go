package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "stock-ledger", cfg.App.Name)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, 10, cfg.Ledger.MaxRetries)
	assert.Equal(t, 5*time.Millisecond, cfg.Ledger.RetryBackoff)
	assert.True(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("STOCK_DATABASE_DRIVER", "memory")
	t.Setenv("STOCK_HTTP_PORT", "9090")
	t.Setenv("STOCK_LEDGER_RETRY_BACKOFF", "20ms")
	t.Setenv("STOCK_REDIS_ENABLED", "false")
	t.Setenv("STOCK_APP_ENV", "production")

	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 20*time.Millisecond, cfg.Ledger.RetryBackoff)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromViper_TOML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
[database]
driver = "memory"

[ledger]
max_retries = 3
sync_workers = 2

[http]
cors_allow_origins = ["http://localhost:3000"]
`)))

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, 2, cfg.Ledger.SyncWorkers)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.CORSAllowOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, errMsg: "database.driver"},
		{name: "port clash", mutate: func(c *Config) { c.GRPC.Port = c.HTTP.Port }, errMsg: "must differ"},
		{name: "production without password", mutate: func(c *Config) { c.App.Env = "production" }, errMsg: "database.password"},
		{name: "bad http port", mutate: func(c *Config) { c.HTTP.Port = 70000 }, errMsg: "http.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
