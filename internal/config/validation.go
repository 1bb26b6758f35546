package config

import (
	"fmt"
	"os"

	"github.com/codewired/razorwire/internal/domain"
)

// Validate validates the configuration. Failures are reported as
// domain.ValidationError values naming the offending field.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateHub(&cfg.Hub); err != nil {
		return err
	}
	if err := validateReload(&cfg.Reload); err != nil {
		return err
	}
	if err := validateLimits(&cfg.Limits); err != nil {
		return err
	}
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	// Port 0 requests an ephemeral port, useful in tests.
	if cfg.Port < 0 || cfg.Port > 65535 {
		return domain.NewValidationError("server.port", fmt.Sprintf("must be between 0 and 65535, got %d", cfg.Port))
	}
	if cfg.Host == "" {
		return domain.NewValidationError("server.host", "cannot be empty")
	}
	return nil
}

func validateHub(cfg *HubConfig) error {
	if cfg.BufferCapacity <= 0 {
		return domain.NewValidationError("hub.buffer_capacity", fmt.Sprintf("must be positive, got %d", cfg.BufferCapacity))
	}
	if cfg.HeartbeatSecs <= 0 {
		return domain.NewValidationError("hub.heartbeat_secs", fmt.Sprintf("must be positive, got %d", cfg.HeartbeatSecs))
	}
	return nil
}

func validateReload(cfg *ReloadConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Path == "" {
		return domain.NewValidationError("reload.path", "required when reload is enabled")
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return domain.NewValidationError("reload.path", err.Error())
	}
	if !info.IsDir() {
		return domain.NewValidationError("reload.path", fmt.Sprintf("must be a directory: %s", cfg.Path))
	}
	if cfg.DebounceMS <= 0 {
		return domain.NewValidationError("reload.debounce_ms", fmt.Sprintf("must be positive, got %d", cfg.DebounceMS))
	}
	return nil
}

func validateLimits(cfg *LimitsConfig) error {
	if cfg.PublishPerMinute <= 0 {
		return domain.NewValidationError("limits.publish_per_minute", fmt.Sprintf("must be positive, got %d", cfg.PublishPerMinute))
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Format {
	case "json", "console":
		return nil
	default:
		return domain.NewValidationError("logging.format", fmt.Sprintf("must be json or console, got %q", cfg.Format))
	}
}
