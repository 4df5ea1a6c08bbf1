// Package config holds the engine's tunables with sensible defaults and
// optional loading from a config file or DAFR_-prefixed environment
// variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config tunes the query engine. The zero value is not usable; start from
// Default.
type Config struct {
	// PreviewRows is the preview row cap
	PreviewRows int `mapstructure:"preview_rows"`
	// PreviewTimeout bounds how long get_preview blocks before returning
	// a still-computing marker
	PreviewTimeout time.Duration `mapstructure:"preview_timeout"`
	// CacheEntries bounds the preview cache entry count
	CacheEntries int `mapstructure:"cache_entries"`
	// CacheRowBudget bounds the preview cache's total row footprint
	CacheRowBudget int `mapstructure:"cache_row_budget"`
	// ProbeTimeout bounds source probing
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// PoolSize is the execution pool's worker count
	PoolSize int `mapstructure:"pool_size"`
	// ExportRowGroupSize is the Parquet row-group size for exports
	ExportRowGroupSize int64 `mapstructure:"export_row_group_size"`
}

// Default returns the stock configuration
func Default() Config {
	return Config{
		PreviewRows:        1000,
		PreviewTimeout:     2 * time.Second,
		CacheEntries:       16,
		CacheRowBudget:     64 * 1024,
		ProbeTimeout:       5 * time.Second,
		PoolSize:           4,
		ExportRowGroupSize: 65536,
	}
}

// Load reads configuration from an optional file path, layering
// DAFR_-prefixed environment variables over it and both over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	v := viper.New()
	v.SetEnvPrefix("dafr")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("preview_rows", cfg.PreviewRows)
	v.SetDefault("preview_timeout", cfg.PreviewTimeout)
	v.SetDefault("cache_entries", cfg.CacheEntries)
	v.SetDefault("cache_row_budget", cfg.CacheRowBudget)
	v.SetDefault("probe_timeout", cfg.ProbeTimeout)
	v.SetDefault("pool_size", cfg.PoolSize)
	v.SetDefault("export_row_group_size", cfg.ExportRowGroupSize)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
