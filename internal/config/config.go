// Package config loads strata configuration from a file and the
// environment. Every setting has a default, an environment override under
// the STRATA_ prefix, and an optional config.yaml entry.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the process-wide settings.
type Config struct {
	// StorePath is the sqlite database file.
	StorePath string `mapstructure:"store_path" validate:"required"`

	// CatalogPath is the CUE file declaring the project's field catalog.
	CatalogPath string `mapstructure:"catalog_path" validate:"required"`

	// GrantsPath is the YAML file mapping actors to granted scopes. Empty
	// means no grants file: every action is refused.
	GrantsPath string `mapstructure:"grants_path"`

	// SummaryCeiling caps the distinct values a summary may group.
	SummaryCeiling int64 `mapstructure:"summary_ceiling" validate:"min=1"`
}

// Load reads configuration from the given file, or from the default
// search path when file is empty.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("store_path", "strata.db")
	v.SetDefault("catalog_path", "catalog.cue")
	v.SetDefault("grants_path", "")
	v.SetDefault("summary_ceiling", 100000)

	v.SetEnvPrefix("STRATA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/strata/")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file found on the default search path: defaults and
		// environment variables carry the whole configuration.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
