package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("LoadConfig on missing file failed: %v", err)
	}
	if cfg.Model == "" || cfg.Theme != string(ThemePorcelain) || cfg.HistoryLimit <= 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_BadThemeFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("theme: neon\nmodel: llama3.1:8b\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Theme != string(ThemePorcelain) {
		t.Fatalf("unknown theme should fall back to porcelain, got %q", cfg.Theme)
	}
	if cfg.Model != "llama3.1:8b" {
		t.Fatalf("model = %q", cfg.Model)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DEVDECK_MODEL", "mistral:7b")
	t.Setenv("DEVDECK_THEME", "midnight")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Model != "mistral:7b" || cfg.Theme != string(ThemeMidnight) {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}

	// Invalid env theme is ignored rather than propagated.
	t.Setenv("DEVDECK_THEME", "neon")
	cfg, _ = LoadConfig("")
	if cfg.Theme != string(ThemePorcelain) {
		t.Fatalf("invalid env theme should be ignored, got %q", cfg.Theme)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	in := Config{Model: "gpt-x", Theme: "midnight", HistoryLimit: 10}
	if err := SaveConfig(in, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	out, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if out.Model != in.Model || out.Theme != in.Theme || out.HistoryLimit != in.HistoryLimit {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
