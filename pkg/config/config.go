// =============================================================================
// pkg/config/config.go - Configuration
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig configures the streaming server.
type ServerConfig struct {
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
}

// DownloadConfig configures the torrent session.
type DownloadConfig struct {
	SaveDir   string `mapstructure:"save_dir" yaml:"save_dir"`
	MaxPeers  int    `mapstructure:"max_peers" yaml:"max_peers"`
	RateLimit int64  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Cleanup   bool   `mapstructure:"cleanup" yaml:"cleanup"`
	FileIndex int    `mapstructure:"file_index" yaml:"file_index"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// FlagKeys maps cobra flag names to config keys.
var FlagKeys = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"workers":      "server.workers",
	"save-dir":     "download.save_dir",
	"max-peers":    "download.max_peers",
	"rate-limit":   "download.rate_limit",
	"cleanup":      "download.cleanup",
	"file-index":   "download.file_index",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-addr": "metrics.addr",
}

// Load reads defaults, the optional YAML file at path, SEEDSTREAM_* env vars
// and finally any flags in fs that were set on the command line.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 0)
	v.SetDefault("server.workers", 4)
	v.SetDefault("download.save_dir", "")
	v.SetDefault("download.max_peers", 80)
	v.SetDefault("download.rate_limit", 0)
	v.SetDefault("download.cleanup", false)
	v.SetDefault("download.file_index", -1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.addr", "")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("SEEDSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate rejects impossible values and fills defaults a file may have zeroed.
func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Download.RateLimit < 0 {
		return errors.New("download.rate_limit must not be negative")
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Workers <= 0 {
		c.Server.Workers = 4
	}
	if c.Download.MaxPeers <= 0 {
		c.Download.MaxPeers = 80
	}
	return nil
}
