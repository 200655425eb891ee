package embedding

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/gazou/internal/models"
)

var (
	_ Embedder = (*MockEmbedder)(nil)
	_ Embedder = (*ONNXEmbedder)(nil)
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	item := models.SourceItem{ID: "photos/cat.jpg", Path: "photos/cat.jpg", Kind: models.KindImage}

	a, err := e.Embed(ctx, item)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, item)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("len = %d, want 16", len(a))
	}
	if math.Abs(norm(a)-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", norm(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs", i)
		}
	}

	q, err := e.EmbedQuery(ctx, "photos/cat.jpg")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if math.Abs(dot(a, q)-1) > 1e-5 {
		t.Errorf("query for the item ID should match it exactly, got %f", dot(a, q))
	}

	other, _ := e.EmbedQuery(ctx, "photos/dog.jpg")
	if math.Abs(dot(a, other)-1) < 1e-3 {
		t.Error("different keys should embed differently")
	}
}

func TestMockEmbedder_EmbedBatchFailures(t *testing.T) {
	e := NewMockEmbedder(8).FailOn("b")
	items := []models.SourceItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	results := e.EmbedBatch(context.Background(), items)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if !results[0].OK() || !results[2].OK() {
		t.Error("a and c should succeed")
	}
	if results[1].OK() || !errors.Is(results[1].Err, ErrEmbedding) {
		t.Errorf("b should fail with ErrEmbedding, got %v", results[1].Err)
	}
	if results[1].Vector != nil {
		t.Error("failed result should carry no vector")
	}
	if e.BatchCalls() != 1 {
		t.Errorf("BatchCalls = %d, want 1", e.BatchCalls())
	}
}

func TestMockEmbedder_Cancelled(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.EmbedQuery(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMockEmbedder_DefaultDimensions(t *testing.T) {
	if d := NewMockEmbedder(0).Dimensions(); d != 512 {
		t.Errorf("Dimensions = %d, want 512", d)
	}
}

func TestONNXConfig_Defaults(t *testing.T) {
	cfg := ONNXConfig{}.withDefaults()
	if cfg.Dimensions != 512 || cfg.ContextLength != DefaultContextLength || cfg.ImageSize != DefaultImageSize {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Workers <= 0 {
		t.Errorf("Workers = %d, want > 0", cfg.Workers)
	}
}

func TestONNXConfig_TokenizerDefaultsNextToTextModel(t *testing.T) {
	cfg := ONNXConfig{TextModelPath: "/models/clip/text.onnx"}.withDefaults()
	if want := filepath.Join("/models/clip", "tokenizer.json"); cfg.TokenizerPath != want {
		t.Errorf("TokenizerPath = %q, want %q", cfg.TokenizerPath, want)
	}
}

func TestONNXConfig_CheckFiles(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "text.onnx")
	image := filepath.Join(dir, "image.onnx")
	for _, p := range []string{text, image} {
		if err := os.WriteFile(p, []byte("onnx"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := ONNXConfig{TextModelPath: text, ImageModelPath: image}.withDefaults()
	if err := cfg.checkFiles(); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing tokenizer.json: expected fs.ErrNotExist, got %v", err)
	}
	if err := os.WriteFile(cfg.TokenizerPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := cfg.checkFiles(); err != nil {
		t.Errorf("all files present: %v", err)
	}
	if err := (ONNXConfig{}).checkFiles(); err == nil {
		t.Error("expected an error for unset paths")
	}
}

func TestNewONNXEmbedder_MissingModel(t *testing.T) {
	e, err := NewONNXEmbedder(ONNXConfig{
		TextModelPath:  filepath.Join(t.TempDir(), "text.onnx"),
		ImageModelPath: filepath.Join(t.TempDir(), "image.onnx"),
	})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if e != nil {
		t.Error("expected a nil embedder on error")
	}
}

func TestONNXEmbedder_CloseNil(t *testing.T) {
	var e *ONNXEmbedder
	if err := e.Close(); err != nil {
		t.Errorf("Close on nil embedder: %v", err)
	}
}
