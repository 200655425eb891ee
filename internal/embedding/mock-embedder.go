package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. Items are embedded from their ID and
// queries from their text with the same function, so querying an item's ID scores 1.0
// against that item.
type MockEmbedder struct {
	dimensions int

	mu     sync.Mutex
	fail   map[string]bool
	calls  int
	closed bool
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions, fail: make(map[string]bool)}
}

// FailOn makes every later embedding of the given item IDs fail with ErrEmbedding.
func (e *MockEmbedder) FailOn(ids ...string) *MockEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		e.fail[id] = true
	}
	return e
}

// BatchCalls returns how many times EmbedBatch was called.
func (e *MockEmbedder) BatchCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns the vector for item.ID, or ErrEmbedding if the ID was marked with FailOn.
func (e *MockEmbedder) Embed(ctx context.Context, item models.SourceItem) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	failing := e.fail[item.ID]
	e.mu.Unlock()
	if failing {
		return nil, fmt.Errorf("%w: %s: mock failure", ErrEmbedding, item.ID)
	}
	return e.vectorFor(item.ID), nil
}

// EmbedBatch calls Embed for each item.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, items []models.SourceItem) []Result {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	results := make([]Result, len(items))
	for i, item := range items {
		vec, err := e.Embed(ctx, item)
		results[i] = Result{Vector: vec, Err: err}
	}
	return results
}

// EmbedQuery returns the vector for text.
func (e *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vectorFor(text), nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close marks the embedder closed.
func (e *MockEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *MockEmbedder) vectorFor(key string) []float32 {
	h := HashString(key)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h%100003+1)*float64(i+1)*0.618) + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}
