package config

import "path/filepath"

// DefaultDataDir is the root of the default on-disk layout.
const DefaultDataDir = "/usr/local/var/gazou/data"

// DefaultPath is where the CLI looks for a config file when none is given.
var DefaultPath = filepath.Join("/usr/local/etc/gazou", "config.yaml")

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = filepath.Join(DefaultDataDir, "index")
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = filepath.Join(DefaultDataDir, "db", "runs.db")
	}
	if cfg.Embedding.TextModelPath == "" {
		cfg.Embedding.TextModelPath = filepath.Join(DefaultDataDir, "models", "clip-vit-b32-text.onnx")
	}
	if cfg.Embedding.ImageModelPath == "" {
		cfg.Embedding.ImageModelPath = filepath.Join(DefaultDataDir, "models", "clip-vit-b32-vision.onnx")
	}
	if cfg.Embedding.TokenizerPath == "" {
		cfg.Embedding.TokenizerPath = filepath.Join(DefaultDataDir, "models", "clip-vit-b32-tokenizer.json")
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 77
	}
	if cfg.Embedding.ImageSize == 0 {
		cfg.Embedding.ImageSize = 224
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Indexing.BatchSize == 0 {
		cfg.Indexing.BatchSize = 32
	}
	if cfg.Indexing.ImageExtensions == nil {
		cfg.Indexing.ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}
	}
	if cfg.Indexing.TextExtensions == nil {
		cfg.Indexing.TextExtensions = []string{".txt", ".md", ".pdf", ".xlsx"}
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
