// Package embedding turns source items and query text into unit-length CLIP vectors.
package embedding

import (
	"context"
	"errors"

	"github.com/hyperjump/gazou/internal/models"
)

// ErrEmbedding marks a per-item embedding failure (decode error, unsupported format, bad output).
var ErrEmbedding = errors.New("embedding failed")

// Embedder produces unit-length vectors for items and query text in one shared space.
type Embedder interface {
	// Embed returns the vector for a single item.
	Embed(ctx context.Context, item models.SourceItem) ([]float32, error)
	// EmbedBatch embeds items and returns one Result per item, in the same order.
	// A failed item does not affect the others.
	EmbedBatch(ctx context.Context, items []models.SourceItem) []Result
	// EmbedQuery returns the vector for free-form query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Result is the outcome for one item of a batch. Exactly one of Vector and Err is set.
type Result struct {
	Vector []float32
	Err    error
}

// OK reports whether the item was embedded.
func (r Result) OK() bool {
	return r.Err == nil
}
