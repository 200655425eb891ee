// Package search binds a vector store to an embedder and answers text queries against it.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/embedding"
	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/internal/vector"
)

// ErrNotIndexed is returned when an operation needs an index and none is bound.
var ErrNotIndexed = errors.New("no index loaded; run index or load an index first")

// Engine holds zero or one bound store. Searches run concurrently; appends and rebinds are
// serialized.
type Engine struct {
	embedder    embedding.Embedder
	pipeline    *indexer.Pipeline
	logger      *zap.Logger
	defaultTopK int
	maxTopK     int

	mu    sync.RWMutex // guards store
	store *vector.Store

	// serializes writers (Index, Append, LoadIndex)
	writeMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTopK sets the default and maximum result counts used by Query.
func WithTopK(defaultTopK, maxTopK int) Option {
	return func(e *Engine) {
		if defaultTopK > 0 {
			e.defaultTopK = defaultTopK
		}
		if maxTopK > 0 {
			e.maxTopK = maxTopK
		}
	}
}

// NewEngine creates an engine with no bound store. pipeline is used by Index and Append.
func NewEngine(embedder embedding.Embedder, pipeline *indexer.Pipeline, opts ...Option) *Engine {
	e := &Engine{
		embedder:    embedder,
		pipeline:    pipeline,
		logger:      zap.NewNop(),
		defaultTopK: models.DefaultTopK,
		maxTopK:     models.MaxTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bind replaces the bound store. A nil store unbinds.
func (e *Engine) Bind(store *vector.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
}

// Indexed reports whether a store is bound.
func (e *Engine) Indexed() bool {
	return e.current() != nil
}

func (e *Engine) current() *vector.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// Search embeds queryText and returns the topK most similar entries, best first.
func (e *Engine) Search(ctx context.Context, queryText string, topK int) ([]*vector.Result, error) {
	store := e.current()
	if store == nil {
		return nil, ErrNotIndexed
	}
	vec, err := e.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := store.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// Query validates a request, runs Search, and returns ranked results with timing.
func (e *Engine) Query(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Normalize(e.defaultTopK, e.maxTopK); err != nil {
		return nil, err
	}
	hits, err := e.Search(ctx, query.Query, query.TopK)
	if err != nil {
		return nil, err
	}

	results := make([]*models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = &models.SearchResult{Identifier: h.ID, Score: h.Score, Rank: i + 1}
	}
	resp := &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     query.Query,
	}
	e.logger.Debug("query served",
		zap.String("query", query.Query),
		zap.Int("top_k", query.TopK),
		zap.Int("results", resp.Total),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// Index builds a new store from items and binds it, replacing any bound store.
func (e *Engine) Index(ctx context.Context, items []models.SourceItem) (*indexer.Report, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	store, report, err := e.pipeline.Index(ctx, items)
	if err != nil {
		return report, err
	}
	e.Bind(store)
	return report, nil
}

// Append embeds items into the bound store.
func (e *Engine) Append(ctx context.Context, items []models.SourceItem) (*indexer.Report, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	store := e.current()
	if store == nil {
		return nil, ErrNotIndexed
	}
	return e.pipeline.IndexInto(ctx, store, items)
}

// SaveIndex writes the bound store into dir.
func (e *Engine) SaveIndex(dir string) error {
	store := e.current()
	if store == nil {
		return ErrNotIndexed
	}
	if err := store.Save(dir); err != nil {
		return err
	}
	e.logger.Info("index saved", zap.String("dir", dir), zap.Int("vectors", store.Len()))
	return nil
}

// LoadIndex reads a store from dir and binds it. On error the bound store is unchanged.
func (e *Engine) LoadIndex(dir string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	store, err := vector.Load(dir)
	if err != nil {
		return err
	}
	if d := e.embedder.Dimensions(); d > 0 && d != store.Dimensions() {
		return fmt.Errorf("%w: index has dimension %d, embedder produces %d",
			vector.ErrDimensionMismatch, store.Dimensions(), d)
	}
	e.Bind(store)
	e.logger.Info("index loaded", zap.String("dir", dir), zap.Int("vectors", store.Len()))
	return nil
}

// Stats summarizes the bound store.
func (e *Engine) Stats() (models.IndexStats, error) {
	store := e.current()
	if store == nil {
		return models.IndexStats{}, ErrNotIndexed
	}
	s := store.Stats()
	return models.IndexStats{
		TotalVectors:     s.TotalVectors,
		EmbeddingDim:     s.EmbeddingDim,
		TotalIdentifiers: len(store.Identifiers()),
	}, nil
}
