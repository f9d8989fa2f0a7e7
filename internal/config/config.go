package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"chatsync/internal/constants"
	"chatsync/internal/models"
	"chatsync/internal/security"
	pkgconstants "chatsync/pkg/constants"
)

var (
	ErrMissingAPIBaseURL  = models.ConfigError{Message: "missing backend API base URL"}
	ErrMissingRealtimeURL = models.ConfigError{Message: "missing realtime feed URL"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingSessionID   = models.ConfigError{Message: "missing session id"}
	ErrMissingUserID      = models.ConfigError{Message: "missing user id"}
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

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Backend.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	if _, err := url.Parse(c.Backend.APIBaseURL); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid backend API base URL: %v", err)}
	}
	if c.Backend.RealtimeURL == "" {
		return ErrMissingRealtimeURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Session.ID == "" {
		return ErrMissingSessionID
	}
	if c.Session.UserID == "" {
		return ErrMissingUserID
	}

	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = pkgconstants.DefaultHTTPTimeoutSec
	}
	if c.Queue.MaxDisplayMessages <= 0 {
		c.Queue.MaxDisplayMessages = constants.DefaultMaxDisplayMessages
	}
	if c.Queue.SentRetentionSec <= 0 {
		c.Queue.SentRetentionSec = int(constants.DefaultSentRetention.Seconds())
	}
	if c.Connectivity.CheckIntervalSec <= 0 {
		c.Connectivity.CheckIntervalSec = int(constants.DefaultConnectivityCheckInterval.Seconds())
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	for _, policy := range []*models.RetryPolicyConfig{
		&c.Retry.Send, &c.Retry.Reaction, &c.Retry.Edit, &c.Retry.Delete, &c.Retry.History,
	} {
		if policy.Multiplier < 0 || (policy.Multiplier > 0 && policy.Multiplier < 1) {
			return models.ConfigError{Message: "retry multiplier must be at least 1"}
		}
		if policy.JitterPct < 0 || policy.JitterPct > 1 {
			return models.ConfigError{Message: "retry jitter must be between 0 and 1"}
		}
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("CHATSYNC_API_URL"); url != "" {
		c.Backend.APIBaseURL = url
	}
	if url := os.Getenv("CHATSYNC_REALTIME_URL"); url != "" {
		c.Backend.RealtimeURL = url
	}

	// SECURITY: API keys should be set via environment variables
	if key := os.Getenv("CHATSYNC_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}

	if path := os.Getenv("CHATSYNC_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if id := os.Getenv("CHATSYNC_SESSION_ID"); id != "" {
		c.Session.ID = id
	}
	if id := os.Getenv("CHATSYNC_USER_ID"); id != "" {
		c.Session.UserID = id
	}
	if level := os.Getenv("CHATSYNC_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if port := os.Getenv("CHATSYNC_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
}
