// Package storage persists the catalog of indexing runs and reports on-disk index size.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/models"
)

// ErrRunNotFound is returned when a run ID is not in the catalog.
var ErrRunNotFound = errors.New("run not found")

// Catalog records indexing runs and their per-item failures.
type Catalog interface {
	indexer.Recorder

	ListRuns(ctx context.Context, limit int) ([]*models.IndexRun, error)
	GetRun(ctx context.Context, id string) (*models.IndexRun, error)
	CountRuns(ctx context.Context) (int64, error)

	Close() error
}
