// Package config provides configuration loading and structs for gazou.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the index directory and run catalog paths.
type StorageConfig struct {
	IndexDir    string `yaml:"index_dir"`
	CatalogPath string `yaml:"catalog_path"`
}

// EmbeddingConfig holds CLIP ONNX embedder settings.
type EmbeddingConfig struct {
	TextModelPath  string `yaml:"text_model_path"`
	ImageModelPath string `yaml:"image_model_path"`
	TokenizerPath  string `yaml:"tokenizer_path"`
	Dimensions     int    `yaml:"dimensions"`
	MaxTokens      int    `yaml:"max_tokens"`
	ImageSize      int    `yaml:"image_size"`
	CacheSize      int    `yaml:"cache_size"`
	Workers        int    `yaml:"workers"`
}

// IndexingConfig holds batch and file selection settings.
type IndexingConfig struct {
	BatchSize       int      `yaml:"batch_size"`
	ImageExtensions []string `yaml:"image_extensions"`
	TextExtensions  []string `yaml:"text_extensions"`
}

// SearchConfig holds result count limits.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)
	cfg.Embedding.ImageModelPath = expandPath(cfg.Embedding.ImageModelPath, configDir)
	cfg.Embedding.TokenizerPath = expandPath(cfg.Embedding.TokenizerPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		ApplyDefaults(cfg)
		return cfg, nil
	}
	return cfg, err
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("invalid embedding.dimensions %d", c.Embedding.Dimensions)
	}
	if c.Search.MaxTopK > 0 && c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k (%d) exceeds search.max_top_k (%d)", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	return nil
}

// Extensions returns the image and text extensions together.
func (c *IndexingConfig) Extensions() []string {
	out := make([]string, 0, len(c.ImageExtensions)+len(c.TextExtensions))
	out = append(out, c.ImageExtensions...)
	return append(out, c.TextExtensions...)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
