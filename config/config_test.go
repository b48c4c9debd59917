// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom empty dir: %v", err)
	}

	if cfg.Local.OllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("OllamaURL = %q", cfg.Local.OllamaURL)
	}
	if cfg.Local.StreamTimeoutSecs != 30 {
		t.Errorf("StreamTimeoutSecs = %d, want 30", cfg.Local.StreamTimeoutSecs)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("Store.Backend = %q, want file", cfg.Store.Backend)
	}
}

func TestLoadFrom_TOML(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
default_model = "llava:latest"

[local]
ollama_url = "http://127.0.0.1:9999"
stream_timeout_secs = 60

[store]
backend = "sqlite"
path = "/tmp/chat.db"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(tomlContent), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.DefaultModel != "llava:latest" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.Local.OllamaURL != "http://127.0.0.1:9999" {
		t.Errorf("OllamaURL = %q", cfg.Local.OllamaURL)
	}
	if cfg.Local.StreamTimeoutSecs != 60 {
		t.Errorf("StreamTimeoutSecs = %d", cfg.Local.StreamTimeoutSecs)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/chat.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	// Unset fields still get defaults
	if cfg.Local.TimeoutSecs != 30 {
		t.Errorf("TimeoutSecs = %d, want default 30", cfg.Local.TimeoutSecs)
	}
}

func TestLoadFrom_JSON(t *testing.T) {
	dir := t.TempDir()
	jsonContent := `{"default_model":"mistral:latest","local":{"ollama_url":"http://127.0.0.1:8888"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(jsonContent), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.DefaultModel != "mistral:latest" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.Local.OllamaURL != "http://127.0.0.1:8888" {
		t.Errorf("OllamaURL = %q", cfg.Local.OllamaURL)
	}
}

func TestLoadFrom_TOMLPrecedesJSON(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`default_model = "from-toml"`), 0600)
	os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"default_model":"from-json"}`), 0600)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultModel != "from-toml" {
		t.Errorf("DefaultModel = %q, want TOML to win", cfg.DefaultModel)
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OLLACHAT_MODEL", "env-model")
	t.Setenv("OLLACHAT_OLLAMA_URL", "http://127.0.0.1:7777")
	t.Setenv("OLLACHAT_STREAM_TIMEOUT", "90")
	t.Setenv("OLLACHAT_STORE", "sqlite")
	t.Setenv("OLLACHAT_STORE_PATH", "/custom/state.db")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultModel != "env-model" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.Local.OllamaURL != "http://127.0.0.1:7777" {
		t.Errorf("OllamaURL = %q", cfg.Local.OllamaURL)
	}
	if cfg.Local.StreamTimeoutSecs != 90 {
		t.Errorf("StreamTimeoutSecs = %d", cfg.Local.StreamTimeoutSecs)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/custom/state.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
}

func TestApplyEnvOverrides_IgnoresInvalidTimeout(t *testing.T) {
	t.Setenv("OLLACHAT_STREAM_TIMEOUT", "not-a-number")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Local.StreamTimeoutSecs != 30 {
		t.Errorf("StreamTimeoutSecs = %d, want default kept", cfg.Local.StreamTimeoutSecs)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad url scheme", func(c *Config) { c.Local.OllamaURL = "ftp://host" }, "scheme"},
		{"negative stream timeout", func(c *Config) { c.Local.StreamTimeoutSecs = -1 }, "stream_timeout_secs"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// SAVE AND WATCH
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.DefaultModel = "llava:latest"
	cfg.Store.Backend = "sqlite"
	if err := cfg.SaveTOML(dir); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config perms = %o, want 0600", perm)
	}

	loaded, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.DefaultModel != "llava:latest" || loaded.Store.Backend != "sqlite" {
		t.Errorf("reloaded = %+v", loaded)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`default_model = "before"`), 0600)

	changed := make(chan *Config, 1)
	w, err := NewWatcher(dir, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`default_model = "after"`), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.DefaultModel != "after" {
			t.Errorf("reloaded model = %q, want after", cfg.DefaultModel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not deliver reloaded config")
	}
}

func TestWatcher_IgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()

	changed := make(chan *Config, 4)
	w, err := NewWatcher(dir, func(cfg *Config) { changed <- cfg })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}

	// Broken TOML must not reach the callback
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`default_model = [broken`), 0600)

	select {
	case cfg := <-changed:
		t.Errorf("callback fired for invalid config: %+v", cfg)
	case <-time.After(time.Second):
	}
}
