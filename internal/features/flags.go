package features

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Flag represents a feature flag with metadata
type Flag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Tags        []string  `json:"tags,omitempty"`
}

// FlagManager manages feature flags with thread-safe operations
type FlagManager struct {
	flags map[string]*Flag
	mu    sync.RWMutex
}

// NewFlagManager creates a new feature flag manager
func NewFlagManager() *FlagManager {
	return &FlagManager{
		flags: make(map[string]*Flag),
	}
}

const (
	// FlagDelayScaling scales retry backoff by observed network latency.
	FlagDelayScaling = "delay_scaling"
	// FlagRequestLogging enables per-request logs on the control API.
	FlagRequestLogging = "request_logging"
	// FlagSnapshotLogging logs a line on every display snapshot update.
	FlagSnapshotLogging = "snapshot_logging"
)

// FlagDefinition contains metadata about a flag
type FlagDefinition struct {
	Name         string
	Description  string
	DefaultValue bool
	Tags         []string
}

// DefaultFlags defines all available feature flags with their defaults
var DefaultFlags = []FlagDefinition{
	{FlagDelayScaling, "Scale retry delays by observed network latency", true, []string{"reliability"}},
	{FlagRequestLogging, "Log every control API request", true, []string{"observability"}},
	{FlagSnapshotLogging, "Log display snapshot updates", false, []string{"observability", "debug"}},
}

// InitializeDefaults sets up all default flags
func (fm *FlagManager) InitializeDefaults() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	now := time.Now()
	for _, def := range DefaultFlags {
		if _, exists := fm.flags[def.Name]; !exists {
			fm.flags[def.Name] = &Flag{
				Name:        def.Name,
				Enabled:     def.DefaultValue,
				Description: def.Description,
				CreatedAt:   now,
				UpdatedAt:   now,
				Tags:        def.Tags,
			}
		}
	}
}

// IsEnabled checks if a feature flag is enabled
func (fm *FlagManager) IsEnabled(flagName string) bool {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	flag, exists := fm.flags[flagName]
	if !exists {
		return false
	}

	return flag.Enabled
}

// Enable enables a feature flag
func (fm *FlagManager) Enable(flagName string) error {
	return fm.setEnabled(flagName, true)
}

// Disable disables a feature flag
func (fm *FlagManager) Disable(flagName string) error {
	return fm.setEnabled(flagName, false)
}

func (fm *FlagManager) setEnabled(flagName string, enabled bool) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	flag, exists := fm.flags[flagName]
	if !exists {
		return ErrFlagNotFound{Name: flagName}
	}

	flag.Enabled = enabled
	flag.UpdatedAt = time.Now()
	return nil
}

// GetFlag returns a copy of the flag information
func (fm *FlagManager) GetFlag(flagName string) (*Flag, error) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	flag, exists := fm.flags[flagName]
	if !exists {
		return nil, ErrFlagNotFound{Name: flagName}
	}

	flagCopy := *flag
	if flag.Tags != nil {
		flagCopy.Tags = make([]string, len(flag.Tags))
		copy(flagCopy.Tags, flag.Tags)
	}

	return &flagCopy, nil
}

// ListFlags returns copies of all flags, for the control API.
func (fm *FlagManager) ListFlags() []Flag {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	out := make([]Flag, 0, len(fm.flags))
	for _, flag := range fm.flags {
		flagCopy := *flag
		if flag.Tags != nil {
			flagCopy.Tags = make([]string, len(flag.Tags))
			copy(flagCopy.Tags, flag.Tags)
		}
		out = append(out, flagCopy)
	}
	return out
}

// LoadFromEnvironment loads flag overrides from environment variables in the
// form CHATSYNC_FEATURE_<FLAG_NAME>=true/false.
func (fm *FlagManager) LoadFromEnvironment() {
	const envPrefix = "CHATSYNC_FEATURE_"

	fm.mu.Lock()
	defer fm.mu.Unlock()

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], envPrefix) {
			continue
		}

		flagName := strings.ToLower(strings.TrimPrefix(parts[0], envPrefix))
		enabled, err := strconv.ParseBool(parts[1])
		if err != nil {
			continue
		}

		if flag, exists := fm.flags[flagName]; exists {
			flag.Enabled = enabled
			flag.UpdatedAt = time.Now()
		}
	}
}

// ErrFlagNotFound is returned when a flag does not exist
type ErrFlagNotFound struct {
	Name string
}

func (e ErrFlagNotFound) Error() string {
	return fmt.Sprintf("feature flag not found: %s", e.Name)
}
