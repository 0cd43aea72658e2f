package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThreadsAuto(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.Threads)
	assert.Greater(t, cfg.EffectiveThreads(), 0)
}

func TestEffectiveThreadsExplicit(t *testing.T) {
	cfg := Default()
	cfg.Threads = 4
	assert.Equal(t, 4, cfg.EffectiveThreads())
}

func TestWhitelistEmptyAllowsAll(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsWhitelisted("anything"))
}

func TestWhitelistRestricts(t *testing.T) {
	cfg := Default()
	cfg.Security.WhitelistedExtensions = []string{"good"}
	assert.True(t, cfg.IsWhitelisted("good"))
	assert.False(t, cfg.IsWhitelisted("bad"))
}

func TestBlacklistOverridesNothingButIsChecked(t *testing.T) {
	cfg := Default()
	cfg.Security.BlacklistedExtensions = []string{"evil"}
	assert.True(t, cfg.IsBlacklisted("evil"))
	assert.False(t, cfg.IsBlacklisted("good"))
}

func TestLoadFillsDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Threads)
	assert.Equal(t, Default().Timeouts, cfg.Timeouts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
