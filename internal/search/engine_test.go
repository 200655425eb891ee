package search

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/gazou/internal/embedding"
	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/internal/vector"
)

func fileItems(paths ...string) []models.SourceItem {
	items := make([]models.SourceItem, len(paths))
	for i, p := range paths {
		items[i] = models.SourceItem{ID: p, Path: p, Kind: models.KindImage}
	}
	return items
}

func newTestEngine(t *testing.T, embedder *embedding.MockEmbedder, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(embedder, indexer.NewPipeline(embedder, 2), opts...)
}

func TestEngine_NotIndexed(t *testing.T) {
	e := newTestEngine(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()

	if e.Indexed() {
		t.Fatal("new engine should not be indexed")
	}
	if _, err := e.Search(ctx, "a cat", 3); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("Search: expected ErrNotIndexed, got %v", err)
	}
	if _, err := e.Query(ctx, &models.SearchQuery{Query: "a cat"}); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("Query: expected ErrNotIndexed, got %v", err)
	}
	if err := e.SaveIndex(t.TempDir()); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("SaveIndex: expected ErrNotIndexed, got %v", err)
	}
	if _, err := e.Append(ctx, fileItems("/a.jpg")); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("Append: expected ErrNotIndexed, got %v", err)
	}
	if _, err := e.Stats(); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("Stats: expected ErrNotIndexed, got %v", err)
	}
}

func TestEngine_IndexAndSearch(t *testing.T) {
	emb := embedding.NewMockEmbedder(16).FailOn("/p/broken.jpg")
	e := newTestEngine(t, emb)
	ctx := context.Background()

	report, err := e.Index(ctx, fileItems("/p/cat.jpg", "/p/dog.jpg", "/p/broken.jpg", "/p/bird.jpg"))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if report.Indexed != 3 || len(report.Failures) != 1 {
		t.Errorf("report = %+v", report)
	}
	if !e.Indexed() {
		t.Fatal("engine should be indexed")
	}

	results, err := e.Search(ctx, "/p/dog.jpg", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != "/p/dog.jpg" || math.Abs(results[0].Score-1) > 1e-5 {
		t.Errorf("top result = %+v, want /p/dog.jpg with score 1", results[0])
	}
	if results[1].Score > results[0].Score {
		t.Error("results must be ordered by score")
	}

	stats, err := e.Stats()
	if err != nil {
		t.Fatal(err)
	}
	want := models.IndexStats{TotalVectors: 3, EmbeddingDim: 16, TotalIdentifiers: 3}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestEngine_Query(t *testing.T) {
	e := newTestEngine(t, embedding.NewMockEmbedder(8), WithTopK(2, 3))
	ctx := context.Background()
	if _, err := e.Index(ctx, fileItems("/a.jpg", "/b.jpg", "/c.jpg", "/d.jpg")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		query     models.SearchQuery
		wantTotal int
	}{
		{"default top_k", models.SearchQuery{Query: "/c.jpg"}, 2},
		{"explicit top_k", models.SearchQuery{Query: "/c.jpg", TopK: 1}, 1},
		{"clamped top_k", models.SearchQuery{Query: "/c.jpg", TopK: 50}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			resp, err := e.Query(ctx, &q)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if resp.Total != tt.wantTotal || len(resp.Results) != tt.wantTotal {
				t.Errorf("Total = %d, want %d", resp.Total, tt.wantTotal)
			}
			if resp.Results[0].Identifier != "/c.jpg" || resp.Results[0].Rank != 1 {
				t.Errorf("first result = %+v", resp.Results[0])
			}
			for i, r := range resp.Results {
				if r.Rank != i+1 {
					t.Errorf("result %d has rank %d", i, r.Rank)
				}
			}
			if resp.Query != "/c.jpg" {
				t.Errorf("Query = %q", resp.Query)
			}
		})
	}

	if _, err := e.Query(ctx, &models.SearchQuery{Query: "   "}); !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestEngine_SaveAndLoadIndex(t *testing.T) {
	emb := embedding.NewMockEmbedder(8)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")

	src := newTestEngine(t, emb)
	if _, err := src.Index(ctx, fileItems("/x/1.png", "/x/2.png", "/x/3.png")); err != nil {
		t.Fatal(err)
	}
	if err := src.SaveIndex(dir); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}
	for _, name := range []string{vector.IndexFileName, vector.MetadataFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	dst := newTestEngine(t, emb)
	if err := dst.LoadIndex(dir); err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	want, _ := src.Search(ctx, "/x/2.png", 3)
	got, err := dst.Search(ctx, "/x/2.png", 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if *got[i] != *want[i] {
			t.Errorf("result %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEngine_LoadIndexErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src := newTestEngine(t, embedding.NewMockEmbedder(8))
	if _, err := src.Index(ctx, fileItems("/a.png")); err != nil {
		t.Fatal(err)
	}
	if err := src.SaveIndex(dir); err != nil {
		t.Fatal(err)
	}

	wrongDim := newTestEngine(t, embedding.NewMockEmbedder(4))
	if err := wrongDim.LoadIndex(dir); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if wrongDim.Indexed() {
		t.Error("failed load must not bind a store")
	}

	if err := os.Remove(filepath.Join(dir, vector.MetadataFileName)); err != nil {
		t.Fatal(err)
	}
	if err := src.LoadIndex(dir); !errors.Is(err, vector.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n, _ := src.Stats(); n.TotalVectors != 1 {
		t.Error("failed load must keep the previous store")
	}
}

func TestEngine_LoadReplacesBoundStore(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(8)
	dir := t.TempDir()

	other := newTestEngine(t, emb)
	if _, err := other.Index(ctx, fileItems("/only.png")); err != nil {
		t.Fatal(err)
	}
	if err := other.SaveIndex(dir); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, emb)
	if _, err := e.Index(ctx, fileItems("/a.png", "/b.png")); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadIndex(dir); err != nil {
		t.Fatal(err)
	}
	stats, _ := e.Stats()
	if stats.TotalVectors != 1 {
		t.Errorf("TotalVectors = %d, want 1", stats.TotalVectors)
	}
}

func TestEngine_Append(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, embedding.NewMockEmbedder(8))
	if _, err := e.Index(ctx, fileItems("/a.png")); err != nil {
		t.Fatal(err)
	}
	report, err := e.Append(ctx, fileItems("/b.png", "/c.png"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if report.Indexed != 2 {
		t.Errorf("Indexed = %d, want 2", report.Indexed)
	}
	stats, _ := e.Stats()
	if stats.TotalVectors != 3 {
		t.Errorf("TotalVectors = %d, want 3", stats.TotalVectors)
	}
}

func TestEngine_ConcurrentSearchDuringAppend(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, embedding.NewMockEmbedder(8))
	if _, err := e.Index(ctx, fileItems("/seed.png")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := e.Append(ctx, fileItems("/more.png")); err != nil {
				t.Errorf("Append: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				results, err := e.Search(ctx, "/seed.png", 100)
				if err != nil {
					t.Errorf("Search: %v", err)
					return
				}
				if len(results) == 0 || results[0].ID != "/seed.png" {
					t.Errorf("unexpected results: %v", results)
					return
				}
			}
		}()
	}
	wg.Wait()

	stats, _ := e.Stats()
	if stats.TotalVectors != 21 {
		t.Errorf("TotalVectors = %d, want 21", stats.TotalVectors)
	}
}
