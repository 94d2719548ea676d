// Package config loads lorekit configuration from YAML with environment
// overrides. Precedence: defaults, then file, then LOREKIT_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/fablekit/lorekit/internal/errors"
	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/store"
	"github.com/fablekit/lorekit/internal/vector"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = ".lorekit.yaml"

// Config is the complete lorekit configuration.
type Config struct {
	Version   int             `yaml:"version"`
	DataDir   string          `yaml:"data_dir"`
	FullText  FullTextConfig  `yaml:"fulltext"`
	Vector    vector.Config   `yaml:"vector"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Log       LogConfig       `yaml:"log"`
}

// FullTextConfig selects and tunes the full-text backend.
type FullTextConfig struct {
	// Backend is "sqlite" (default) or "bleve".
	Backend string `yaml:"backend"`
	// MinTokenLength is the minimum indexed token length.
	MinTokenLength int `yaml:"min_token_length"`
}

// RetrievalConfig carries the query budget defaults.
type RetrievalConfig struct {
	MaxTokens int `yaml:"max_tokens"`
	MaxChunks int `yaml:"max_chunks"`
	// CacheSize bounds the retriever's chunk cache.
	CacheSize int `yaml:"cache_size"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	// File enables logging to <data_dir>/logs/lorekit.log.
	File bool `yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		FullText: FullTextConfig{
			Backend:        store.BackendSQLite,
			MinTokenLength: 2,
		},
		Vector: vector.DefaultConfig(),
		Retrieval: RetrievalConfig{
			MaxTokens: lore.DefaultMaxTokens,
			MaxChunks: lore.DefaultMaxChunks,
			CacheSize: 512,
		},
		Log: LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lorekit")
	}
	return filepath.Join(home, ".lorekit")
}

// Load reads the config file at path, layering it over the defaults and
// applying env overrides. An explicit path that does not exist is an
// error; an empty path skips the file and uses defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Newf(errors.ErrCodeConfigNotFound, "config file not found: %s", path)
			}
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("failed to parse %s", path), err).
				WithSuggestion("check the YAML syntax")
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads DefaultFileName from the working directory when it
// exists, otherwise defaults plus env overrides.
func LoadOrDefault() (*Config, error) {
	if _, err := os.Stat(DefaultFileName); err == nil {
		return Load(DefaultFileName)
	}
	return Load("")
}

// applyEnv layers LOREKIT_* environment variables over the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("LOREKIT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LOREKIT_FULLTEXT_BACKEND"); v != "" {
		c.FullText.Backend = v
	}
	if v := os.Getenv("LOREKIT_VECTOR_BACKEND"); v != "" {
		c.Vector.Backend = v
	}
	if v := os.Getenv("LOREKIT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOREKIT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.MaxTokens = n
		}
	}
	if v := os.Getenv("LOREKIT_MAX_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.MaxChunks = n
		}
	}
}

// Validate checks backend names and budget values.
func (c *Config) Validate() error {
	switch c.FullText.Backend {
	case store.BackendSQLite, store.BackendBleve:
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"unknown fulltext backend: %s (valid options: sqlite, bleve)", c.FullText.Backend)
	}
	switch c.Vector.Backend {
	case vector.BackendNone, vector.BackendHNSW, "":
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"unknown vector backend: %s (valid options: none, hnsw)", c.Vector.Backend)
	}
	if c.Retrieval.MaxTokens < 0 || c.Retrieval.MaxChunks < 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid, "retrieval budgets must be non-negative")
	}
	return nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// StorePath is the relational store location under the data dir.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "lore.db")
}

// FullTextBasePath is the full-text index path without the backend's
// extension.
func (c *Config) FullTextBasePath() string {
	return filepath.Join(c.DataDir, "fulltext")
}

// VectorDir is where the HNSW backend persists its collections.
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// LockPath is the indexing lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "index.lock")
}

// LogPath is the log file location when file logging is enabled.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", "lorekit.log")
}

// FullTextStoreConfig translates the config section into the store's
// backend config.
func (c *Config) FullTextStoreConfig() store.FullTextConfig {
	ftc := store.DefaultFullTextConfig()
	ftc.Backend = c.FullText.Backend
	if c.FullText.MinTokenLength > 0 {
		ftc.MinTokenLength = c.FullText.MinTokenLength
	}
	return ftc
}
