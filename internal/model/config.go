package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// OAuthClientConfig holds the OAuth client registration for one provider.
// The client secret lives in the system keyring; the Secret field is only
// a fallback for headless setups.
type OAuthClientConfig struct {
	// ClientID is the application's OAuth client identifier.
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// Secret is an optional plaintext client secret. Prefer the keyring.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// RedirectURI is the registered OAuth redirect URI.
	RedirectURI string `mapstructure:"redirect_uri" yaml:"redirect_uri"`
}

// SyncConfig holds pull-sync tuning knobs.
type SyncConfig struct {
	// WindowDays is the default range (days ahead of now) synced when the
	// caller supplies no explicit window.
	WindowDays int `mapstructure:"window_days" yaml:"window_days"`

	// CallTimeoutSec bounds each individual provider call.
	CallTimeoutSec int `mapstructure:"call_timeout_sec" yaml:"call_timeout_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DBPath string                       `mapstructure:"db_path" yaml:"db_path"`
	Sync   SyncConfig                   `mapstructure:"sync" yaml:"sync"`
	OAuth  map[string]OAuthClientConfig `mapstructure:"oauth" yaml:"oauth"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/miniorg/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "miniorg", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dbPath := "miniorg.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".config", "miniorg", "miniorg.db")
	}
	return &AppConfig{
		DBPath: dbPath,
		Sync: SyncConfig{
			WindowDays:     30,
			CallTimeoutSec: 30,
		},
		OAuth: map[string]OAuthClientConfig{},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("sync.window_days", 30)
	v.SetDefault("sync.call_timeout_sec", 30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("sync", cfg.Sync)
	v.Set("oauth", cfg.OAuth)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
