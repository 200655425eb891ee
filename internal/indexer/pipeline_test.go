package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/gazou/internal/embedding"
	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/internal/vector"
)

func numberedItems(n int) []models.SourceItem {
	items := make([]models.SourceItem, n)
	for i := range items {
		path := filepath.Join("/data", fmt.Sprintf("item%d.jpg", i+1))
		items[i] = models.SourceItem{ID: path, Path: path, Kind: models.KindImage}
	}
	return items
}

func ids(items []models.SourceItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestPipeline_SkipsFailedItemAcrossBatchSizes(t *testing.T) {
	items := numberedItems(5)
	want := []string{items[0].ID, items[1].ID, items[3].ID, items[4].ID}

	for _, batchSize := range []int{1, 2, 3, 4, 5, 32} {
		t.Run(fmt.Sprintf("batch=%d", batchSize), func(t *testing.T) {
			embedder := embedding.NewMockEmbedder(8).FailOn(items[2].ID)
			p := NewPipeline(embedder, batchSize)

			store, report, err := p.Index(context.Background(), items)
			require.NoError(t, err)
			assert.Equal(t, 4, store.Len())
			assert.Equal(t, want, store.Identifiers())

			assert.Equal(t, 5, report.Total)
			assert.Equal(t, 4, report.Indexed)
			require.Len(t, report.Failures, 1)
			assert.Equal(t, items[2].ID, report.Failures[0].Identifier)
			assert.Contains(t, report.Failures[0].Reason, "mock failure")
			assert.NotEmpty(t, report.RunID)
			assert.Equal(t, "/data", report.Source)

			wantCalls := (5 + batchSize - 1) / batchSize
			assert.Equal(t, wantCalls, embedder.BatchCalls())
		})
	}
}

func TestPipeline_VectorsMatchEmbedder(t *testing.T) {
	items := numberedItems(3)
	embedder := embedding.NewMockEmbedder(6)
	store, _, err := NewPipeline(embedder, 2).Index(context.Background(), items)
	require.NoError(t, err)

	for i, item := range items {
		want, err := embedder.Embed(context.Background(), item)
		require.NoError(t, err)
		assert.Equal(t, want, store.Vector(i))
	}
}

func TestPipeline_AllFailYieldsEmptyStore(t *testing.T) {
	items := numberedItems(3)
	embedder := embedding.NewMockEmbedder(4).FailOn(ids(items)...)

	store, report, err := NewPipeline(embedder, 2).Index(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 4, store.Dimensions())
	assert.Equal(t, 0, report.Indexed)
	assert.Len(t, report.Failures, 3)
}

func TestPipeline_NoItems(t *testing.T) {
	store, report, err := NewPipeline(embedding.NewMockEmbedder(4), 0).Index(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Source)
}

func TestPipeline_DefaultBatchSize(t *testing.T) {
	assert.Equal(t, DefaultBatchSize, NewPipeline(embedding.NewMockEmbedder(4), 0).BatchSize())
	assert.Equal(t, DefaultBatchSize, NewPipeline(embedding.NewMockEmbedder(4), -3).BatchSize())
	assert.Equal(t, 7, NewPipeline(embedding.NewMockEmbedder(4), 7).BatchSize())
}

func TestPipeline_IndexIntoAppends(t *testing.T) {
	embedder := embedding.NewMockEmbedder(4)
	p := NewPipeline(embedder, 2)
	items := numberedItems(4)

	store, _, err := p.Index(context.Background(), items[:2])
	require.NoError(t, err)
	report, err := p.IndexInto(context.Background(), store, items[2:])
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, ids(items), store.Identifiers())
}

// wrongDimEmbedder returns a short vector for one item.
type wrongDimEmbedder struct {
	*embedding.MockEmbedder
	short string
}

func (e *wrongDimEmbedder) EmbedBatch(ctx context.Context, items []models.SourceItem) []embedding.Result {
	results := e.MockEmbedder.EmbedBatch(ctx, items)
	for i, item := range items {
		if item.ID == e.short {
			results[i].Vector = results[i].Vector[:2]
		}
	}
	return results
}

func TestPipeline_WrongDimensionIsPerItemFailure(t *testing.T) {
	items := numberedItems(3)
	embedder := &wrongDimEmbedder{MockEmbedder: embedding.NewMockEmbedder(4), short: items[1].ID}

	store, report, err := NewPipeline(embedder, 3).Index(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, []string{items[0].ID, items[2].ID}, store.Identifiers())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, items[1].ID, report.Failures[0].Identifier)
}

// truncatingEmbedder drops the last result, violating the batch contract.
type truncatingEmbedder struct {
	*embedding.MockEmbedder
}

func (e *truncatingEmbedder) EmbedBatch(ctx context.Context, items []models.SourceItem) []embedding.Result {
	results := e.MockEmbedder.EmbedBatch(ctx, items)
	return results[:len(results)-1]
}

func TestPipeline_ShortBatchResultIsError(t *testing.T) {
	embedder := &truncatingEmbedder{MockEmbedder: embedding.NewMockEmbedder(4)}
	_, _, err := NewPipeline(embedder, 2).Index(context.Background(), numberedItems(2))
	assert.Error(t, err)
}

func TestPipeline_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	embedder := &cancellingEmbedder{MockEmbedder: embedding.NewMockEmbedder(4), cancel: cancel}

	store, err := vector.NewStore(4)
	require.NoError(t, err)
	report, err := NewPipeline(embedder, 2).IndexInto(ctx, store, numberedItems(6))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, store.Len(), "the first batch stays appended")
	assert.Equal(t, 2, report.Indexed)
}

// cancellingEmbedder cancels the context after its first batch.
type cancellingEmbedder struct {
	*embedding.MockEmbedder
	cancel context.CancelFunc
	once   sync.Once
}

func (e *cancellingEmbedder) EmbedBatch(ctx context.Context, items []models.SourceItem) []embedding.Result {
	results := e.MockEmbedder.EmbedBatch(ctx, items)
	e.once.Do(e.cancel)
	return results
}

type memoryRecorder struct {
	reports []*Report
	err     error
}

func (r *memoryRecorder) RecordRun(_ context.Context, report *Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

func TestPipeline_RecordsRuns(t *testing.T) {
	rec := &memoryRecorder{}
	p := NewPipeline(embedding.NewMockEmbedder(4), 2, WithRecorder(rec))

	_, report, err := p.Index(context.Background(), numberedItems(3))
	require.NoError(t, err)
	require.Len(t, rec.reports, 1)
	assert.Same(t, report, rec.reports[0])
}

func TestPipeline_RecorderErrorIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &memoryRecorder{err: errors.New("disk full")}
	p := NewPipeline(embedding.NewMockEmbedder(4), 2, WithRecorder(rec), WithLogger(zap.New(core)))

	_, _, err := p.Index(context.Background(), numberedItems(1))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("failed to record indexing run").Len())
}

func TestPipeline_LogsSkippedItems(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	items := numberedItems(3)
	embedder := embedding.NewMockEmbedder(4).FailOn(items[0].ID)

	_, _, err := NewPipeline(embedder, 2, WithLogger(zap.New(core))).Index(context.Background(), items)
	require.NoError(t, err)

	skipped := logs.FilterMessage("skipping item").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, items[0].ID, skipped[0].ContextMap()["identifier"])
}

func TestCommonDir(t *testing.T) {
	item := func(p string) models.SourceItem { return models.SourceItem{ID: p, Path: p} }
	tests := []struct {
		name  string
		items []models.SourceItem
		want  string
	}{
		{"none", nil, ""},
		{"single", []models.SourceItem{item("/a/b/c.jpg")}, "/a/b"},
		{"siblings", []models.SourceItem{item("/a/b/c.jpg"), item("/a/b/d.jpg")}, "/a/b"},
		{"nested", []models.SourceItem{item("/a/b/c.jpg"), item("/a/b/x/y/d.jpg")}, "/a/b"},
		{"cousins", []models.SourceItem{item("/a/b/c.jpg"), item("/a/bc/d.jpg")}, "/a"},
		{"root", []models.SourceItem{item("/a/c.jpg"), item("/z/d.jpg")}, "/"},
		{"missing path", []models.SourceItem{item("/a/c.jpg"), {ID: "x"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commonDir(tt.items))
		})
	}
}
