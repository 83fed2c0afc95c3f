// Package config defines the configuration surface of declara-cli.
//
// Everything is loaded once per invocation through viper (config.yaml plus
// DECLARA_* environment variables) and handed to components as plain structs.
// The engine never reads configuration ambiently; all tunables flow in through
// these types.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object unmarshalled by the CLI layer.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Portal   PortalConfig   `mapstructure:"portal" yaml:"portal"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Workbook WorkbookConfig `mapstructure:"workbook" yaml:"workbook"`
}

// LoggerConfig controls the zap logger built by internal/observability.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig points at the Contaayuda database that stores e.firma
// material per company/branch. Outcome persistence uses the same pool and is
// skipped entirely when DSN is empty.
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn" yaml:"dsn"`
	CertificateBase string `mapstructure:"certificate_base" yaml:"certificate_base"`
}

// PortalConfig describes the SAT portal endpoint and the browser driving it.
type PortalConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	MappingFile       string        `mapstructure:"mapping_file" yaml:"mapping_file"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LoginTimeout      time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	// InteractionsPerSecond throttles CDP interactions. The portal UI has
	// single focus semantics; overlapping bursts corrupt form state.
	InteractionsPerSecond float64 `mapstructure:"interactions_per_second" yaml:"interactions_per_second"`
}

// EngineConfig carries the form-filling engine's tunables.
type EngineConfig struct {
	// FieldTimeout bounds every Wait Gate poll for a single control.
	FieldTimeout time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
	// PopupTimeout bounds popup open and close visibility waits.
	PopupTimeout time.Duration `mapstructure:"popup_timeout" yaml:"popup_timeout"`
	// PollInterval is the Wait Gate's probe cadence.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// MaxRetries is the number of additional attempts a field gets after a
	// retryable failure (wait timeout, transient commit failure).
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryBackoff is the pause between attempts of the same field.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	// Tolerance is the absolute per-target reconciliation tolerance, in
	// currency units. It is not a percentage.
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`
	// RunRetries is the number of full-run re-attempts after a failed run,
	// each on a fresh browser session. A failed run sent nothing, so the
	// re-attempt is safe; mismatch verdicts are final and never retried.
	RunRetries int `mapstructure:"run_retries" yaml:"run_retries"`
	// RunRetryWait is the pause before a full-run re-attempt. Portal 500s
	// usually clear within a minute.
	RunRetryWait time.Duration `mapstructure:"run_retry_wait" yaml:"run_retry_wait"`
}

// WorkbookConfig describes where tax values live inside the workpaper.
type WorkbookConfig struct {
	Sheet       string `mapstructure:"sheet" yaml:"sheet"`
	ISRStartRow int    `mapstructure:"isr_start_row" yaml:"isr_start_row"`
	ISREndRow   int    `mapstructure:"isr_end_row" yaml:"isr_end_row"`
	IVAStartRow int    `mapstructure:"iva_start_row" yaml:"iva_start_row"`
	IVAEndRow   int    `mapstructure:"iva_end_row" yaml:"iva_end_row"`
}

// SetDefaults registers every default value on the given viper instance.
// Defaults mirror the documented behavior of the original automation: ±1 peso
// tolerance, two retries, and the Impuestos D4:E29 / D33:E58 row ranges.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "declara")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)

	v.SetDefault("portal.base_url", "https://pstcdypisr.clouda.sat.gob.mx/")
	v.SetDefault("portal.headless", true)
	v.SetDefault("portal.mapping_file", "form_field_mapping.json")
	v.SetDefault("portal.navigation_timeout", 60*time.Second)
	v.SetDefault("portal.login_timeout", 90*time.Second)
	v.SetDefault("portal.interactions_per_second", 8.0)

	v.SetDefault("engine.field_timeout", 12*time.Second)
	v.SetDefault("engine.popup_timeout", 45*time.Second)
	v.SetDefault("engine.poll_interval", 150*time.Millisecond)
	v.SetDefault("engine.max_retries", 2)
	v.SetDefault("engine.retry_backoff", 250*time.Millisecond)
	v.SetDefault("engine.tolerance", 1.0)
	v.SetDefault("engine.run_retries", 1)
	v.SetDefault("engine.run_retry_wait", 60*time.Second)

	v.SetDefault("workbook.sheet", "Impuestos")
	v.SetDefault("workbook.isr_start_row", 4)
	v.SetDefault("workbook.isr_end_row", 29)
	v.SetDefault("workbook.iva_start_row", 33)
	v.SetDefault("workbook.iva_end_row", 58)
}

// EnvKeyReplacer maps nested config keys to environment variable segments,
// e.g. engine.max_retries -> DECLARA_ENGINE_MAX_RETRIES.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url must not be empty")
	}
	if !strings.HasPrefix(c.Portal.BaseURL, "http://") && !strings.HasPrefix(c.Portal.BaseURL, "https://") {
		return fmt.Errorf("portal.base_url must be an http(s) URL, got %q", c.Portal.BaseURL)
	}
	if c.Engine.FieldTimeout <= 0 {
		return fmt.Errorf("engine.field_timeout must be positive")
	}
	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("engine.poll_interval must be positive")
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must not be negative")
	}
	if c.Engine.Tolerance < 0 {
		return fmt.Errorf("engine.tolerance must not be negative")
	}
	if c.Engine.RunRetries < 0 {
		return fmt.Errorf("engine.run_retries must not be negative")
	}
	if c.Workbook.ISRStartRow > c.Workbook.ISREndRow || c.Workbook.IVAStartRow > c.Workbook.IVAEndRow {
		return fmt.Errorf("workbook row ranges are inverted")
	}
	return nil
}
