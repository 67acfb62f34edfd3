// Package config loads groundlink settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GROUNDLINK_LOGGING_LEVEL
const EnvPrefix = "GROUNDLINK"

// Config holds all application configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	UI        UIConfig        `mapstructure:"ui"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// StorageConfig holds the archive location; an empty path keeps everything in memory
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// CatalogConfig holds media catalog synchronization settings
type CatalogConfig struct {
	ThumbnailTimeout time.Duration `mapstructure:"thumbnail_timeout"`
}

// TransferConfig holds transfer settings
type TransferConfig struct {
	StallTimeout time.Duration `mapstructure:"stall_timeout"`
	DownloadDir  string        `mapstructure:"download_dir"`
}

// SimulatorConfig drives the built-in device simulator
type SimulatorConfig struct {
	DroneID        string        `mapstructure:"drone_id"`
	RemoteID       string        `mapstructure:"rc_id"`
	MediaCount     int           `mapstructure:"media_count"`
	Battery        int           `mapstructure:"battery"`
	ThumbnailDelay time.Duration `mapstructure:"thumbnail_delay"`
	StepInterval   time.Duration `mapstructure:"step_interval"`
	ConnectDelay   time.Duration `mapstructure:"connect_delay"`
}

// UIConfig holds console configuration
type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.file", defaultLogPath())
	v.SetDefault("logging.level", "INFO")

	v.SetDefault("storage.path", defaultDataPath())

	v.SetDefault("catalog.thumbnail_timeout", "10s")

	v.SetDefault("transfer.stall_timeout", "60s")
	v.SetDefault("transfer.download_dir", defaultDownloadPath())

	v.SetDefault("simulator.drone_id", "SIM-DRONE-0001")
	v.SetDefault("simulator.rc_id", "SIM-RC-0001")
	v.SetDefault("simulator.media_count", 12)
	v.SetDefault("simulator.battery", 87)
	v.SetDefault("simulator.thumbnail_delay", "150ms")
	v.SetDefault("simulator.step_interval", "200ms")
	v.SetDefault("simulator.connect_delay", "500ms")

	v.SetDefault("ui.theme", "default")
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "groundlink", "groundlink.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "groundlink", "groundlink.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "groundlink")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "groundlink")
	}
}

// defaultDataPath returns the default archive directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "groundlink", "data")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "groundlink", "data")
	}
}

func defaultDownloadPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Downloads", "groundlink")
}

// Load reads configuration from path, or from config.yaml in the OS config
// directory or the working directory when path is empty. Environment
// variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.expand()
	return cfg, nil
}

// expand resolves a leading ~ in every path setting
func (c *Config) expand() {
	c.Logging.File = expandHome(c.Logging.File)
	c.Storage.Path = expandHome(c.Storage.Path)
	c.Transfer.DownloadDir = expandHome(c.Transfer.DownloadDir)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Save writes cfg to path, or to config.yaml in the OS config directory when
// path is empty, and returns the file written.
func Save(cfg *Config, path string) (string, error) {
	if path == "" {
		path = filepath.Join(defaultConfigPath(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("catalog.thumbnail_timeout", cfg.Catalog.ThumbnailTimeout.String())
	v.Set("transfer.stall_timeout", cfg.Transfer.StallTimeout.String())
	v.Set("transfer.download_dir", cfg.Transfer.DownloadDir)
	v.Set("simulator.drone_id", cfg.Simulator.DroneID)
	v.Set("simulator.rc_id", cfg.Simulator.RemoteID)
	v.Set("simulator.media_count", cfg.Simulator.MediaCount)
	v.Set("simulator.battery", cfg.Simulator.Battery)
	v.Set("simulator.thumbnail_delay", cfg.Simulator.ThumbnailDelay.String())
	v.Set("simulator.step_interval", cfg.Simulator.StepInterval.String())
	v.Set("simulator.connect_delay", cfg.Simulator.ConnectDelay.String())
	v.Set("ui.theme", cfg.UI.Theme)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
