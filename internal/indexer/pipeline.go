// Package indexer embeds source items in batches and appends the survivors to a vector store.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/embedding"
	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/internal/vector"
)

// DefaultBatchSize is used when a pipeline is created with a non-positive batch size.
const DefaultBatchSize = 32

// Failure is an item that could not be embedded.
type Failure struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// Report summarizes one indexing run.
type Report struct {
	RunID     string        `json:"run_id"`
	Source    string        `json:"source"`
	Total     int           `json:"total"`
	Indexed   int           `json:"indexed"`
	Failures  []Failure     `json:"failures"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Recorder persists run reports, e.g. to the run catalog.
type Recorder interface {
	RecordRun(ctx context.Context, report *Report) error
}

// Pipeline feeds items through an embedder in fixed-size batches. It is the single writer of
// the stores it fills.
type Pipeline struct {
	embedder  embedding.Embedder
	batchSize int
	logger    *zap.Logger
	recorder  Recorder
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for per-item warnings and batch progress.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder records every finished run.
func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

// NewPipeline creates a pipeline. batchSize <= 0 selects DefaultBatchSize.
func NewPipeline(embedder embedding.Embedder, batchSize int, opts ...PipelineOption) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	p := &Pipeline{
		embedder:  embedder,
		batchSize: batchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BatchSize returns the effective batch size.
func (p *Pipeline) BatchSize() int {
	return p.batchSize
}

// Index builds a new store sized for the embedder and fills it with items.
// If every item fails the store is empty, not an error.
func (p *Pipeline) Index(ctx context.Context, items []models.SourceItem) (*vector.Store, *Report, error) {
	store, err := vector.NewStore(p.embedder.Dimensions())
	if err != nil {
		return nil, nil, fmt.Errorf("create store: %w", err)
	}
	report, err := p.IndexInto(ctx, store, items)
	if err != nil {
		return nil, report, err
	}
	return store, report, nil
}

// IndexInto embeds items batch by batch and appends the successful ones to store in source
// order. Per-item failures are logged and reported, never returned. Cancellation is checked
// between batches; batches already appended stay in the store.
func (p *Pipeline) IndexInto(ctx context.Context, store *vector.Store, items []models.SourceItem) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		Source:    commonDir(items),
		Total:     len(items),
		Failures:  make([]Failure, 0),
		StartedAt: time.Now(),
	}
	log := p.logger.With(zap.String("run_id", report.RunID))
	log.Info("indexing started", zap.Int("items", len(items)), zap.Int("batch_size", p.batchSize))

	for start := 0; start < len(items); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(report.StartedAt)
			return report, fmt.Errorf("indexing cancelled after %d of %d items: %w", start, len(items), err)
		}
		batch := items[start:min(start+p.batchSize, len(items))]
		if err := p.indexBatch(ctx, store, batch, report, log); err != nil {
			report.Duration = time.Since(report.StartedAt)
			return report, err
		}
		log.Debug("batch indexed",
			zap.Int("done", start+len(batch)),
			zap.Int("total", len(items)),
			zap.Int("indexed", report.Indexed))
	}

	report.Duration = time.Since(report.StartedAt)
	log.Info("indexing finished",
		zap.Int("total", report.Total),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("duration", report.Duration))

	if p.recorder != nil {
		if err := p.recorder.RecordRun(ctx, report); err != nil {
			log.Warn("failed to record indexing run", zap.Error(err))
		}
	}
	return report, nil
}

func (p *Pipeline) indexBatch(ctx context.Context, store *vector.Store, batch []models.SourceItem, report *Report, log *zap.Logger) error {
	results := p.embedder.EmbedBatch(ctx, batch)
	if len(results) != len(batch) {
		return fmt.Errorf("embedder returned %d results for %d items", len(results), len(batch))
	}

	vectors := make([][]float32, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for i, res := range results {
		item := batch[i]
		err := res.Err
		if err == nil && len(res.Vector) != store.Dimensions() {
			err = fmt.Errorf("%w: got %d dimensions, want %d", embedding.ErrEmbedding, len(res.Vector), store.Dimensions())
		}
		if err != nil {
			log.Warn("skipping item", zap.String("identifier", item.ID), zap.Error(err))
			report.Failures = append(report.Failures, Failure{Identifier: item.ID, Reason: err.Error()})
			continue
		}
		vectors = append(vectors, res.Vector)
		ids = append(ids, item.ID)
	}

	if err := store.Append(vectors, ids); err != nil {
		return fmt.Errorf("append batch: %w", err)
	}
	report.Indexed += len(ids)
	return nil
}

// commonDir returns the deepest directory containing every item path, or "" when an item has no path.
func commonDir(items []models.SourceItem) string {
	if len(items) == 0 || items[0].Path == "" {
		return ""
	}
	common := filepath.Dir(items[0].Path)
	for _, item := range items[1:] {
		if item.Path == "" {
			return ""
		}
		dir := filepath.Dir(item.Path)
		for common != dir && !strings.HasPrefix(dir, common+string(filepath.Separator)) {
			parent := filepath.Dir(common)
			if parent == common {
				break
			}
			common = parent
		}
	}
	return common
}
