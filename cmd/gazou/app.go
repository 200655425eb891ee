package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/config"
	"github.com/hyperjump/gazou/internal/embedding"
	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/search"
	"github.com/hyperjump/gazou/internal/storage"
	"github.com/hyperjump/gazou/internal/vector"
	"github.com/hyperjump/gazou/pkg/utils"
)

// newEmbedder builds the embedder for a config. Tests swap it for a mock.
var newEmbedder = func(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	// a failed constructor returns a nil *ONNXEmbedder, which must not become a non-nil interface
	e, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
		TextModelPath:  cfg.Embedding.TextModelPath,
		ImageModelPath: cfg.Embedding.ImageModelPath,
		TokenizerPath:  cfg.Embedding.TokenizerPath,
		Dimensions:     cfg.Embedding.Dimensions,
		ContextLength:  cfg.Embedding.MaxTokens,
		ImageSize:      cfg.Embedding.ImageSize,
		CacheSize:      cfg.Embedding.CacheSize,
		Workers:        cfg.Embedding.Workers,
	}, embedding.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return e, nil
}

// app holds the components shared by the commands.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	embedder   embedding.Embedder
	catalog    *storage.SQLiteCatalog
	pipeline   *indexer.Pipeline
	engine     *search.Engine
}

// newApp loads the config and wires the embedder, run catalog, pipeline and engine.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", cfg.Debug))

	a := &app{cfg: cfg, configPath: path, logger: logger}
	a.catalog, err = storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open run catalog: %w", err)
	}
	if batch, _ := cmd.Flags().GetInt("batch-size"); batch > 0 {
		cfg.Indexing.BatchSize = batch
	}
	a.embedder, err = newEmbedder(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	a.pipeline = indexer.NewPipeline(a.embedder, cfg.Indexing.BatchSize,
		indexer.WithLogger(logger),
		indexer.WithRecorder(a.catalog))
	a.engine = search.NewEngine(a.embedder, a.pipeline,
		search.WithLogger(logger),
		search.WithTopK(cfg.Search.DefaultTopK, cfg.Search.MaxTopK))
	return a, nil
}

// openCatalog loads the config and opens only the run catalog, for commands that never embed.
func openCatalog(cmd *cobra.Command) (*config.Config, *storage.SQLiteCatalog, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open run catalog: %w", err)
	}
	return cfg, catalog, nil
}

// loadOrEmpty loads the index in dir, or binds an empty one when none has been saved yet.
func (a *app) loadOrEmpty(dir string) error {
	err := a.engine.LoadIndex(dir)
	if !errors.Is(err, vector.ErrNotFound) {
		return err
	}
	store, err := vector.NewStore(a.embedder.Dimensions())
	if err != nil {
		return err
	}
	a.engine.Bind(store)
	a.logger.Info("no saved index; starting empty", zap.String("dir", dir))
	return nil
}

// Close releases the embedder and the catalog and flushes the logger.
func (a *app) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.catalog != nil {
		_ = a.catalog.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
