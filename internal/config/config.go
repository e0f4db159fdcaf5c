package config

import (
	"encoding/json"
	"fmt"
	"os"

	"wagateway/internal/constants"
	"wagateway/internal/models"
	"wagateway/internal/security"
)

var (
	ErrMissingSessionURL = models.ConfigError{Message: "missing session service API URL"}
	ErrMissingStorePath  = models.ConfigError{Message: "missing store path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Session.APIBaseURL == "" {
		return ErrMissingSessionURL
	}
	if c.Store.Path == "" {
		return ErrMissingStorePath
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing sample rate must be between 0 and 1"}
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if key := os.Getenv("WAGATEWAY_SESSION_API_KEY"); key != "" {
		c.Session.APIKey = key
	}
}

func applyDefaults(c *models.Config) {
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Session.TimeoutSec <= 0 {
		c.Session.TimeoutSec = constants.DefaultSessionAPITimeoutSec
	}
	if c.Webhook.TimeoutSec <= 0 {
		c.Webhook.TimeoutSec = constants.DefaultWebhookTimeoutSec
	}
	if c.Schedule.TickSec <= 0 {
		c.Schedule.TickSec = constants.DefaultScheduleTickSec
	}
	if c.Schedule.BatchSize <= 0 {
		c.Schedule.BatchSize = constants.DefaultScheduleBatchSize
	}
	if c.Status.TTLHours <= 0 {
		c.Status.TTLHours = constants.DefaultStatusTTLHours
	}
	if c.Status.SweepIntervalMin <= 0 {
		c.Status.SweepIntervalMin = constants.DefaultStatusSweepMinutes
	}
	if c.Sync.DebounceMs <= 0 {
		c.Sync.DebounceMs = constants.DefaultSyncDebounceMs
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultBackoffMaxMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultStoreRetryAttempts
	}
}
