package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadAppliesFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_global_sync_concurrency: 4\ndefault_sync_mode: add_only\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.MaxGlobalSyncConcurrency)
	require.Equal(t, "add_only", cfg.DefaultSyncMode)
	// Unset fields keep their documented defaults.
	require.Equal(t, 1, cfg.MaxPerAdapterConcurrency)
	require.InDelta(t, 0.82, cfg.MatchAutoThreshold, 0.0001)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := Default()
	cfg.MatchAutoThreshold = 0.5
	cfg.MatchCandidateThreshold = 0.6
	require.Error(t, cfg.Validate())
}

func TestEnvOverrideTestMode(t *testing.T) {
	t.Setenv("SELECTA_TEST_MODE_ENABLED", "true")
	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.TestModeEnabled)
}
