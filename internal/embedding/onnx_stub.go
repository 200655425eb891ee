//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"

	"github.com/hyperjump/gazou/internal/models"
)

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder returns an error when built without CGO (ONNX not available).
// Missing model files are still reported first so the error names what to fix.
func NewONNXEmbedder(cfg ONNXConfig, _ ...Option) (*ONNXEmbedder, error) {
	if err := cfg.withDefaults().checkFiles(); err != nil {
		return nil, err
	}
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Embed(context.Context, models.SourceItem) ([]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) EmbedBatch(_ context.Context, items []models.SourceItem) []Result {
	results := make([]Result, len(items))
	for i := range results {
		results[i].Err = errNoCGO
	}
	return results
}

func (e *ONNXEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
