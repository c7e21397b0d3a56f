// Package config loads service configuration from an optional YAML file
// plus environment variables. Every key has a default, so the binary
// runs with no config at all.
package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	configMu sync.RWMutex
	current  *Config
)

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects and parameterizes the drive-history store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// Path is the SQLite file location.
	Path string `mapstructure:"path"`
	// URL is the Postgres connection string.
	URL string `mapstructure:"url"`
}

// SimulatorConfig tunes the tick loop.
type SimulatorConfig struct {
	TickMillis     int `mapstructure:"tick_millis"`
	SegmentMillis  int `mapstructure:"segment_millis"`
	PositionStride int `mapstructure:"position_stride"`
}

// Config holds the entire service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// TickInterval returns the tick cadence as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Simulator.TickMillis) * time.Millisecond
}

// SegmentTime returns the nominal full-segment traversal time.
func (c *Config) SegmentTime() time.Duration {
	return time.Duration(c.Simulator.SegmentMillis) * time.Millisecond
}

func setDefaults() {
	viper.SetDefault("server.port", "8090")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "data/greenwave.db")
	viper.SetDefault("database.url", "")
	viper.SetDefault("simulator.tick_millis", 200)
	viper.SetDefault("simulator.segment_millis", 4200)
	viper.SetDefault("simulator.position_stride", 5)
}

// Load initializes configuration from path (ignored when missing) and
// the environment (GREENWAVE_SERVER_PORT and friends). Changes to the
// file are picked up in the background for subsequent GetCurrent calls.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("greenwave")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine, the defaults cover everything.
	haveFile := false
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			viper.SetConfigFile(path)
			viper.SetConfigType("yaml")
			if err := viper.ReadInConfig(); err != nil {
				return nil, err
			}
			haveFile = true
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	configMu.Lock()
	current = &cfg
	configMu.Unlock()

	if haveFile {
		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			var newCfg Config
			if err := viper.Unmarshal(&newCfg); err == nil {
				configMu.Lock()
				current = &newCfg
				configMu.Unlock()
			}
		})
	}

	return &cfg, nil
}

// GetCurrent returns the most recently loaded configuration.
func GetCurrent() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return current
}
