// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// ollachat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.ollachat/config.toml
//   - ~/.ollachat/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ollachat/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollachat configuration.
type Config struct {
	// DefaultModel seeds the model selection before any persisted choice
	// exists. Empty means pick from the installed models.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// Local (Ollama) configuration
	Local LocalConfig `toml:"local" json:"local"`

	// Store (persistence backend) configuration
	Store StoreConfig `toml:"store" json:"store"`
}

// LocalConfig contains local Ollama configuration.
type LocalConfig struct {
	// OllamaURL is the URL of the Ollama server
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// StreamTimeoutSecs is the wall-clock limit for a generation stream
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`
}

// StoreConfig selects and locates the persistence backend.
type StoreConfig struct {
	// Backend is "file" or "sqlite"
	Backend string `toml:"backend" json:"backend"`
	// Path overrides the default state location (empty = ~/.ollachat/state)
	Path string `toml:"path" json:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Local: LocalConfig{
			OllamaURL:         "http://127.0.0.1:11434",
			TimeoutSecs:       30,
			StreamTimeoutSecs: 30,
		},
		Store: StoreConfig{
			Backend: "file",
		},
	}
}

// fillDefaults replaces zero values with their defaults.
func (c *Config) fillDefaults() {
	def := Default()

	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = def.Local.OllamaURL
	}
	if c.Local.TimeoutSecs == 0 {
		c.Local.TimeoutSecs = def.Local.TimeoutSecs
	}
	if c.Local.StreamTimeoutSecs == 0 {
		c.Local.StreamTimeoutSecs = def.Local.StreamTimeoutSecs
	}
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Dir returns the ollachat configuration directory (~/.ollachat).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ollachat"), nil
}

// Load reads the configuration from the default locations. A missing file
// is not an error: defaults apply. Environment overrides are applied last.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads the configuration from the given directory, trying TOML
// first, then JSON.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{}

	tomlPath := filepath.Join(dir, "config.toml")
	jsonPath := filepath.Join(dir, "config.json")

	switch {
	case fileExists(tomlPath):
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
	case fileExists(jsonPath):
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", jsonPath, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies OLLACHAT_* environment variables on top of the
// loaded configuration.
//
// Supported variables:
//   - OLLACHAT_MODEL          overrides DefaultModel
//   - OLLACHAT_OLLAMA_URL     overrides Local.OllamaURL
//   - OLLACHAT_STREAM_TIMEOUT overrides Local.StreamTimeoutSecs (seconds)
//   - OLLACHAT_STORE          overrides Store.Backend
//   - OLLACHAT_STORE_PATH     overrides Store.Path
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OLLACHAT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("OLLACHAT_OLLAMA_URL"); v != "" {
		c.Local.OllamaURL = v
	}
	if v := os.Getenv("OLLACHAT_STREAM_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Local.StreamTimeoutSecs = secs
		}
	}
	if v := os.Getenv("OLLACHAT_STORE"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("OLLACHAT_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Local.OllamaURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid ollama_url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("invalid ollama_url scheme %q: must be http or https", u.Scheme))
	}

	if c.Local.TimeoutSecs < 0 {
		errs = append(errs, fmt.Errorf("timeout_secs must not be negative, got %d", c.Local.TimeoutSecs))
	}
	if c.Local.StreamTimeoutSecs < 0 {
		errs = append(errs, fmt.Errorf("stream_timeout_secs must not be negative, got %d", c.Local.StreamTimeoutSecs))
	}

	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q: must be file or sqlite", c.Store.Backend))
	}

	return errors.Join(errs...)
}

// =============================================================================
// SAVING
// =============================================================================

// SaveTOML writes the configuration as TOML to the given directory,
// creating it if needed. The file is written atomically with 0600 perms.
func (c *Config) SaveTOML(dir string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	path := filepath.Join(dir, "config.toml")
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
