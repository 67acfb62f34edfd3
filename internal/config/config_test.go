package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "INFO", cfg.Logging.Level)
	require.NotEmpty(t, cfg.Logging.File)
	require.Equal(t, 10*time.Second, cfg.Catalog.ThumbnailTimeout)
	require.Equal(t, 60*time.Second, cfg.Transfer.StallTimeout)
	require.NotEmpty(t, cfg.Simulator.DroneID)
	require.NotEmpty(t, cfg.Simulator.RemoteID)
	require.Positive(t, cfg.Simulator.MediaCount)
}

func Test_Load_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Catalog, cfg.Catalog)
}

func Test_Load_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: DEBUG
catalog:
  thumbnail_timeout: 3s
simulator:
  drone_id: TEST-DRONE
  media_count: 4
`), 0644))

	t.Setenv("GROUNDLINK_TRANSFER_STALL_TIMEOUT", "15s")
	t.Setenv("GROUNDLINK_SIMULATOR_MEDIA_COUNT", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, 3*time.Second, cfg.Catalog.ThumbnailTimeout)
	require.Equal(t, "TEST-DRONE", cfg.Simulator.DroneID)
	require.Equal(t, 15*time.Second, cfg.Transfer.StallTimeout, "environment beats defaults")
	require.Equal(t, 7, cfg.Simulator.MediaCount, "environment beats the file")
}

func Test_Load_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func Test_Load_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GROUNDLINK_STORAGE_PATH", "~/archive")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "archive"), cfg.Storage.Path)
}

func Test_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.UI.Theme = "amber"
	cfg.Transfer.StallTimeout = 90 * time.Second
	cfg.Simulator.RemoteID = "RC-9"

	written, err := Save(cfg, path)
	require.NoError(t, err)
	require.Equal(t, path, written)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "amber", loaded.UI.Theme)
	require.Equal(t, 90*time.Second, loaded.Transfer.StallTimeout)
	require.Equal(t, "RC-9", loaded.Simulator.RemoteID)
	require.Equal(t, cfg.Simulator.ConnectDelay, loaded.Simulator.ConnectDelay)
}
