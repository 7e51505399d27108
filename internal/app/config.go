package app

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Model        string `yaml:"model"`
	Theme        string `yaml:"theme"`
	StorageRoot  string `yaml:"storage_root"`
	LogFile      string `yaml:"log_file"`
	HistoryLimit int    `yaml:"history_limit"`
}

func DefaultConfig() Config {
	return Config{
		Model:        "qwen2.5-coder:7b",
		Theme:        string(ThemePorcelain),
		HistoryLimit: 50,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return applyEnv(cfg), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5-coder:7b"
	}
	if _, ok := ParseTheme(cfg.Theme); !ok {
		cfg.Theme = string(ThemePorcelain)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if v := os.Getenv("DEVDECK_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("DEVDECK_THEME"); v != "" {
		if _, ok := ParseTheme(v); ok {
			cfg.Theme = v
		}
	}
	return cfg
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "devdeck", "config.yml")
}

// DefaultStorageRoot is where session history lives when the config does not
// name one. XDG data dir first, ~/.local/share as fallback.
func DefaultStorageRoot() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "devdeck")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "devdeck")
	}
	return filepath.Join(os.TempDir(), "devdeck")
}
