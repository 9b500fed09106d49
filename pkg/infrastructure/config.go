// Package infrastructure wires the ambient concerns every deployment of
// the core needs — configuration, logging, metrics, and dependency
// injection — around the generic packages (eventstore, engine, views,
// gormstore, dispatch) that stay deployment-agnostic.
package infrastructure

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration: database connection,
// dispatch transport selection, and logging.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig selects the gormstore dialect and DSN.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres
	DSN    string `mapstructure:"dsn"`
}

// DispatchConfig selects how committed events leave the process.
type DispatchConfig struct {
	Transport string `mapstructure:"transport"` // memory, watermill
}

// LoggingConfig controls the zap-backed Logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, fatal
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig reads configuration from ./config.yaml (if present), then
// EVENTCORE_-prefixed environment variables, falling back to the defaults
// set below. Environment variables win over the config file, which wins
// over defaults — viper's usual precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("EVENTCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("infrastructure: read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("infrastructure: unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("infrastructure: invalid config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "file:eventcore.db?cache=shared&mode=rwc")
	viper.SetDefault("dispatch.transport", "memory")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q (supported: sqlite, postgres)", config.Database.Driver)
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}

	switch config.Dispatch.Transport {
	case "memory", "watermill":
	default:
		return fmt.Errorf("unsupported dispatch transport %q (supported: memory, watermill)", config.Dispatch.Transport)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("unsupported logging level %q", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported logging format %q (supported: json, console)", config.Logging.Format)
	}

	return nil
}
