package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "https://pstcdypisr.clouda.sat.gob.mx/", cfg.Portal.BaseURL)
	assert.True(t, cfg.Portal.Headless)
	assert.Equal(t, 2, cfg.Engine.MaxRetries)
	assert.Equal(t, 1.0, cfg.Engine.Tolerance)
	assert.Equal(t, 1, cfg.Engine.RunRetries)
	assert.Equal(t, 60*time.Second, cfg.Engine.RunRetryWait)
	assert.Equal(t, 150*time.Millisecond, cfg.Engine.PollInterval)
	assert.Equal(t, "Impuestos", cfg.Workbook.Sheet)
	assert.Equal(t, 4, cfg.Workbook.ISRStartRow)
	assert.Equal(t, 58, cfg.Workbook.IVAEndRow)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"empty base url", func(c *Config) { c.Portal.BaseURL = "" }, "base_url"},
		{"non http url", func(c *Config) { c.Portal.BaseURL = "ftp://sat.gob.mx" }, "http(s)"},
		{"zero field timeout", func(c *Config) { c.Engine.FieldTimeout = 0 }, "field_timeout"},
		{"zero poll interval", func(c *Config) { c.Engine.PollInterval = 0 }, "poll_interval"},
		{"negative retries", func(c *Config) { c.Engine.MaxRetries = -1 }, "max_retries"},
		{"negative tolerance", func(c *Config) { c.Engine.Tolerance = -0.5 }, "tolerance"},
		{"negative run retries", func(c *Config) { c.Engine.RunRetries = -1 }, "run_retries"},
		{"inverted rows", func(c *Config) { c.Workbook.ISRStartRow = 30 }, "inverted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DECLARA_ENGINE_MAX_RETRIES", "5")

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("DECLARA")
	v.SetEnvKeyReplacer(EnvKeyReplacer())
	v.AutomaticEnv()

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, 5, cfg.Engine.MaxRetries)
}
