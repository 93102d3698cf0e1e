// Package config loads server settings from config.yaml and DRIVERPAY_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Port     int    `mapstructure:"port"`
	DBPath   string `mapstructure:"db_path"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	// SnapshotSyncInterval is how often cached employee configurations are
	// refreshed. Zero disables the scheduler.
	SnapshotSyncInterval time.Duration `mapstructure:"snapshot_sync_interval"`

	CORSOrigins []string `mapstructure:"cors_origins"`
}

// IsProduction reports whether Env is "production".
func (c Config) IsProduction() bool { return c.Env == "production" }

// Load reads config.yaml from the given directories (the working directory
// and ./config when none are given), then applies environment overrides such
// as DRIVERPAY_PORT. A missing file is not an error.
func Load(paths ...string) (Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("DRIVERPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "driverpay.db")
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("snapshot_sync_interval", time.Hour)
	v.SetDefault("cors_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.DBPath == "" {
		return Config{}, errors.New("db_path must not be empty")
	}
	return cfg, nil
}
