package retry

import (
	"time"

	"chatsync/internal/models"
)

// ConfigsFromSettings merges user-supplied retry settings over the category
// defaults. Zero-valued fields keep the default.
func ConfigsFromSettings(rc models.RetryConfig) map[Category]Config {
	configs := DefaultConfigs()
	overlay(configs, CategorySend, rc.Send)
	overlay(configs, CategoryReaction, rc.Reaction)
	overlay(configs, CategoryEdit, rc.Edit)
	overlay(configs, CategoryDelete, rc.Delete)
	overlay(configs, CategoryHistoryLoad, rc.History)
	return configs
}

func overlay(configs map[Category]Config, cat Category, policy models.RetryPolicyConfig) {
	cfg := configs[cat]
	if policy.MaxAttempts > 0 {
		cfg.MaxAttempts = policy.MaxAttempts
	}
	if policy.BaseDelayMs > 0 {
		cfg.BaseDelay = time.Duration(policy.BaseDelayMs) * time.Millisecond
	}
	if policy.MaxDelayMs > 0 {
		cfg.MaxDelay = time.Duration(policy.MaxDelayMs) * time.Millisecond
	}
	if policy.Multiplier > 0 {
		cfg.Multiplier = policy.Multiplier
	}
	if policy.JitterPct > 0 {
		cfg.JitterPct = policy.JitterPct
	}
	if policy.BreakerThreshold > 0 {
		cfg.BreakerThreshold = uint32(policy.BreakerThreshold)
	}
	if policy.BreakerCooldownMs > 0 {
		cfg.BreakerCooldown = time.Duration(policy.BreakerCooldownMs) * time.Millisecond
	}
	configs[cat] = cfg
}
