package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/galtl/safecache"
)

// TestLoadConfig_MissingDefaultIsEmpty verifies the default config file is
// optional.
func TestLoadConfig_MissingDefaultIsEmpty(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(t.TempDir(), "")
	require.NoError(t, err)
	require.Equal(t, Config{}, cfg)
}

// TestLoadConfig_ParsesJSONC verifies comments and trailing commas are
// accepted and pointer fields track what the file actually set.
func TestLoadConfig_ParsesJSONC(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	content := `{
  // tighter retention for tests
  "backup_retention": 1,
  "write_timeout_seconds": 5,
  "verify_on_write": false,
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(dir, "")
	require.NoError(t, err)

	require.NotNil(t, cfg.BackupRetention)
	require.Equal(t, 1, *cfg.BackupRetention)
	require.NotNil(t, cfg.WriteTimeoutSeconds)
	require.NotNil(t, cfg.VerifyOnWrite)
	require.False(t, *cfg.VerifyOnWrite)
	require.Nil(t, cfg.SafeWrite, "unset fields must stay nil")
	require.Nil(t, cfg.BackupEnabled, "unset fields must stay nil")
}

// TestConfig_WriteOptionsLayering verifies file settings override library
// defaults and absent fields keep them.
func TestConfig_WriteOptionsLayering(t *testing.T) {
	t.Parallel()

	retention := 9
	timeout := 5
	fileCfg := Config{BackupRetention: &retention, WriteTimeoutSeconds: &timeout}

	cfg := safecache.NewConfig(fileCfg.WriteOptions()...)

	require.Equal(t, 9, cfg.RetentionCount)
	require.Equal(t, 5*time.Second, cfg.WriteTimeout)
	require.True(t, cfg.Enabled, "default kept for unset field")
	require.True(t, cfg.BackupEnabled, "default kept for unset field")
}

// TestLoadConfig_RejectsGarbage verifies malformed config files fail
// loudly.
func TestLoadConfig_RejectsGarbage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("not json at all {{{"), 0o644))

	_, err := LoadConfig(dir, "")
	require.ErrorIs(t, err, errConfigInvalid)
}
