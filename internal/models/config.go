package models

// Config holds the application configuration
type Config struct {
	Session  SessionServiceConfig `json:"session"`
	Store    StoreConfig          `json:"store"`
	Server   ServerConfig         `json:"server"`
	Webhook  WebhookConfig        `json:"webhook"`
	Schedule ScheduleConfig       `json:"schedule"`
	Status   StatusConfig         `json:"status"`
	Sync     SyncConfig           `json:"sync"`
	Retry    RetryConfig          `json:"retry"`
	Tracing  TracingConfig        `json:"tracing"`
	LogLevel string               `json:"log_level"`
}

// SessionServiceConfig holds the connection settings for the external
// session service that maintains the actual protocol connections
type SessionServiceConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	EventsWSURL string `json:"events_ws_url"`
	APIKey      string `json:"api_key"`
	TimeoutSec  int    `json:"timeoutSec"`
}

// StoreConfig holds document store settings
type StoreConfig struct {
	Path string `json:"path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

// WebhookConfig holds relay call settings
type WebhookConfig struct {
	TimeoutSec int `json:"timeoutSec"`
}

// ScheduleConfig holds schedule engine settings
type ScheduleConfig struct {
	TickSec   int `json:"tickSec"`
	BatchSize int `json:"batchSize"`
}

// StatusConfig holds status tracker eviction settings
type StatusConfig struct {
	TTLHours         int `json:"ttlHours"`
	SweepIntervalMin int `json:"sweepIntervalMin"`
}

// SyncConfig holds registry sync settings
type SyncConfig struct {
	DebounceMs int `json:"debounceMs"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
