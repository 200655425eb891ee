package models

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultTopK is used when a query does not set TopK.
	DefaultTopK = 5
	// MaxTopK caps TopK for a single query.
	MaxTopK = 100
)

// ErrInvalidQuery is returned for queries that cannot be run.
var ErrInvalidQuery = errors.New("invalid query")

// SearchQuery represents a text-to-item search request.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate normalizes the query with DefaultTopK and MaxTopK.
func (q *SearchQuery) Validate() error {
	return q.Normalize(DefaultTopK, MaxTopK)
}

// Normalize trims the query text and brings TopK into [1, maxTopK], using defaultTopK when
// TopK is unset. An empty query returns ErrInvalidQuery.
func (q *SearchQuery) Normalize(defaultTopK, maxTopK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}
