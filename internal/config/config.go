// Package config handles configuration management for razorwire.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Hub     HubConfig     `mapstructure:"hub" yaml:"hub"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Reload  ReloadConfig  `mapstructure:"reload" yaml:"reload"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// HubConfig holds stream hub configuration.
type HubConfig struct {
	BufferCapacity int `mapstructure:"buffer_capacity" yaml:"buffer_capacity"` // Per-subscription queue bound
	HeartbeatSecs  int `mapstructure:"heartbeat_secs" yaml:"heartbeat_secs"`  // SSE heartbeat interval
}

// AuthConfig holds authorization configuration.
type AuthConfig struct {
	PublishToken    string   `mapstructure:"publish_token" yaml:"publish_token"`    // Bearer token required on publish; empty disables
	ChannelPatterns []string `mapstructure:"channel_patterns" yaml:"channel_patterns"` // Subscribable channel patterns; empty allows all
}

// ReloadConfig holds live-reload publisher configuration.
type ReloadConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	DebounceMS int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// LimitsConfig holds various limits.
type LimitsConfig struct {
	PublishPerMinute int `mapstructure:"publish_per_minute" yaml:"publish_per_minute"` // Per-IP publish rate limit
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.razorwire")
		v.AddConfigPath("/etc/razorwire")
	}

	v.SetEnvPrefix("RAZORWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults always unmarshal; a failure here is a programming error.
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8970)

	// Hub defaults
	v.SetDefault("hub.buffer_capacity", 100)
	v.SetDefault("hub.heartbeat_secs", 30)

	// Auth defaults
	v.SetDefault("auth.publish_token", "")
	v.SetDefault("auth.channel_patterns", []string{})

	// Reload defaults
	v.SetDefault("reload.enabled", false)
	v.SetDefault("reload.path", "")
	v.SetDefault("reload.debounce_ms", 100)

	// Limits defaults
	v.SetDefault("limits.publish_per_minute", 120)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
