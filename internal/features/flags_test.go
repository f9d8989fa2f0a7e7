package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManagerWithDefaults() *FlagManager {
	fm := NewFlagManager()
	fm.InitializeDefaults()
	return fm
}

func TestDefaultFlagValues(t *testing.T) {
	fm := newManagerWithDefaults()

	assert.True(t, fm.IsEnabled(FlagDelayScaling))
	assert.True(t, fm.IsEnabled(FlagRequestLogging))
	assert.False(t, fm.IsEnabled(FlagSnapshotLogging))
}

func TestUnknownFlagIsDisabled(t *testing.T) {
	fm := newManagerWithDefaults()
	assert.False(t, fm.IsEnabled("nonexistent"))
}

func TestEnableDisable(t *testing.T) {
	fm := newManagerWithDefaults()

	require.NoError(t, fm.Enable(FlagSnapshotLogging))
	assert.True(t, fm.IsEnabled(FlagSnapshotLogging))

	require.NoError(t, fm.Disable(FlagSnapshotLogging))
	assert.False(t, fm.IsEnabled(FlagSnapshotLogging))
}

func TestEnableUnknownFlagFails(t *testing.T) {
	fm := newManagerWithDefaults()

	err := fm.Enable("nonexistent")
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrFlagNotFound{})
}

func TestGetFlagReturnsCopy(t *testing.T) {
	fm := newManagerWithDefaults()

	flag, err := fm.GetFlag(FlagDelayScaling)
	require.NoError(t, err)
	assert.Equal(t, FlagDelayScaling, flag.Name)
	assert.True(t, flag.Enabled)

	flag.Enabled = false
	flag.Tags[0] = "mutated"

	fresh, err := fm.GetFlag(FlagDelayScaling)
	require.NoError(t, err)
	assert.True(t, fresh.Enabled)
	assert.Equal(t, "reliability", fresh.Tags[0])
}

func TestListFlags(t *testing.T) {
	fm := newManagerWithDefaults()

	flags := fm.ListFlags()
	assert.Len(t, flags, len(DefaultFlags))

	names := make(map[string]bool, len(flags))
	for _, f := range flags {
		names[f.Name] = true
	}
	assert.True(t, names[FlagDelayScaling])
	assert.True(t, names[FlagRequestLogging])
	assert.True(t, names[FlagSnapshotLogging])
}

func TestInitializeDefaultsDoesNotResetOverrides(t *testing.T) {
	fm := newManagerWithDefaults()
	require.NoError(t, fm.Disable(FlagDelayScaling))

	fm.InitializeDefaults()
	assert.False(t, fm.IsEnabled(FlagDelayScaling))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CHATSYNC_FEATURE_SNAPSHOT_LOGGING", "true")
	t.Setenv("CHATSYNC_FEATURE_DELAY_SCALING", "false")
	t.Setenv("CHATSYNC_FEATURE_REQUEST_LOGGING", "not-a-bool")

	fm := newManagerWithDefaults()
	fm.LoadFromEnvironment()

	assert.True(t, fm.IsEnabled(FlagSnapshotLogging))
	assert.False(t, fm.IsEnabled(FlagDelayScaling))
	// Unparseable values leave the default untouched.
	assert.True(t, fm.IsEnabled(FlagRequestLogging))
}
