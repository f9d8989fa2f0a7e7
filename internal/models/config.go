package models

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

type BackendConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	RealtimeURL string `json:"realtime_url"`
	APIKey      string `json:"api_key"`
	TimeoutSec  int    `json:"timeout_sec"`
}

type SessionConfig struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// RetryPolicyConfig tunes one retry category. Zero values fall back to the
// category defaults in internal/constants.
type RetryPolicyConfig struct {
	MaxAttempts       int     `json:"max_attempts"`
	BaseDelayMs       int     `json:"base_delay_ms"`
	MaxDelayMs        int     `json:"max_delay_ms"`
	Multiplier        float64 `json:"multiplier"`
	JitterPct         float64 `json:"jitter_pct"`
	BreakerThreshold  int     `json:"breaker_threshold"`
	BreakerCooldownMs int     `json:"breaker_cooldown_ms"`
}

type RetryConfig struct {
	Send     RetryPolicyConfig `json:"send"`
	Reaction RetryPolicyConfig `json:"reaction"`
	Edit     RetryPolicyConfig `json:"edit"`
	Delete   RetryPolicyConfig `json:"delete"`
	History  RetryPolicyConfig `json:"history"`
}

type QueueConfig struct {
	MaxDisplayMessages int `json:"max_display_messages"`
	SentRetentionSec   int `json:"sent_retention_sec"`
}

type ConnectivityConfig struct {
	CheckIntervalSec int `json:"check_interval_sec"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type Config struct {
	Backend      BackendConfig      `json:"backend"`
	Session      SessionConfig      `json:"session"`
	Database     DatabaseConfig     `json:"database"`
	Retry        RetryConfig        `json:"retry"`
	Queue        QueueConfig        `json:"queue"`
	Connectivity ConnectivityConfig `json:"connectivity"`
	Tracing      TracingConfig      `json:"tracing"`
	Server       ServerConfig       `json:"server"`
	LogLevel     string             `json:"log_level"`
}
