// Package vector provides an exact inner-product vector store and its on-disk format.
package vector

import (
	"fmt"
	"slices"
	"sync"
)

// Result is a single vector search hit.
type Result struct {
	ID    string
	Score float64 // Inner product (cosine similarity for unit vectors)
}

// Stats summarizes a store.
type Stats struct {
	TotalVectors int `json:"total_vectors"`
	EmbeddingDim int `json:"embedding_dim"`
}

// Store is an exact brute-force similarity index over fixed-dimension vectors.
// Rows live in one contiguous row-major slice; row i belongs to ids[i].
// Vectors are expected to be unit length; the store does not normalize or check them.
//
// Appends are expected from a single writer. Searches may run concurrently with each
// other, and the lock keeps them from observing a partially applied append.
type Store struct {
	dimensions int
	data       []float32
	ids        []string
	mu         sync.RWMutex
}

// NewStore creates an empty store for vectors of the given dimension.
func NewStore(dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimensions)
	}
	return &Store{
		dimensions: dimensions,
		data:       make([]float32, 0),
		ids:        make([]string, 0),
	}, nil
}

// Dimensions returns the fixed vector dimension.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Stats returns the entry count and dimension.
func (s *Store) Stats() Stats {
	return Stats{TotalVectors: s.Len(), EmbeddingDim: s.dimensions}
}

// Append adds vectors with their identifiers, preserving order. Either every entry is
// appended or, on error, the store is left unchanged.
func (s *Store) Append(vectors [][]float32, ids []string) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors, %d identifiers", ErrLengthMismatch, len(vectors), len(ids))
	}
	for i, vec := range vectors {
		if len(vec) != s.dimensions {
			return fmt.Errorf("%w: vector %d has %d components, expected %d", ErrDimensionMismatch, i, len(vec), s.dimensions)
		}
	}
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = slices.Grow(s.data, len(vectors)*s.dimensions)
	for _, vec := range vectors {
		s.data = append(s.data, vec...)
	}
	s.ids = append(s.ids, ids...)
	return nil
}

// Search returns up to k entries with the highest inner product against query, best first.
// Equal scores keep insertion order. An empty store or k <= 0 yields no results.
func (s *Store) Search(query []float32, k int) ([]*Result, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", ErrDimensionMismatch, len(query), s.dimensions)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.ids)
	if k <= 0 || n == 0 {
		return []*Result{}, nil
	}
	if k > n {
		k = n
	}

	h := make(topK, 0, k)
	for row := 0; row < n; row++ {
		off := row * s.dimensions
		h.offer(candidate{row: row, score: InnerProduct(query, s.data[off:off+s.dimensions])}, k)
	}

	ranked := h.drain()
	results := make([]*Result, len(ranked))
	for i, c := range ranked {
		results[i] = &Result{ID: s.ids[c.row], Score: c.score}
	}
	return results, nil
}

// Vector returns a copy of the vector stored at position i. It panics if i is not in [0, Len()).
func (s *Store) Vector(i int) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkIndex(i)
	off := i * s.dimensions
	return slices.Clone(s.data[off : off+s.dimensions])
}

// Identifier returns the identifier stored at position i. It panics if i is not in [0, Len()).
func (s *Store) Identifier(i int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkIndex(i)
	return s.ids[i]
}

// checkIndex panics on an out-of-range position. data may have spare capacity, so slicing
// alone would not catch it.
func (s *Store) checkIndex(i int) {
	if i < 0 || i >= len(s.ids) {
		panic(fmt.Sprintf("vector: index %d out of range [0, %d)", i, len(s.ids)))
	}
}

// Identifiers returns a copy of all identifiers in insertion order.
func (s *Store) Identifiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ids)
}
