package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/config"
	"github.com/declaranet/declara-cli/internal/observability"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "declara",
	Short:   "Declara fills and submits SAT provisional declarations from a tax workpaper.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			// Initialize a fallback logger if config unmarshal fails.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "declara"})
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "declara"})
			return fmt.Errorf("invalid configuration: %w", err)
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting declara.", zap.String("version", Version))
		return nil
	},
}

// Exit codes: 0 the declaration was sent, 1 the run was blocked or failed,
// 2 the invocation itself was wrong.
const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

// ExecuteContext runs the CLI under the given signal-aware context and
// returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	defer observability.Sync()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	if logger := observability.GetLogger(); logger != nil {
		logger.Error("Command execution failed.", zap.Error(err))
	} else {
		fmt.Fprintln(os.Stderr, err)
	}

	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return exitUsage
	}
	return exitRun
}

// usageError marks invocation mistakes (bad flags, missing files) so Execute
// can distinguish them from run failures.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newDeclareCmd())
	rootCmd.AddCommand(newMappingCmd())
}

// initializeConfig reads in the config file and DECLARA_* environment
// variables.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("DECLARA")
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}
