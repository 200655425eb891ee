//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/pkg/utils"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initONNXRuntime() error {
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXEmbedder runs exported CLIP text and image towers with ONNX Runtime.
// It requires CGO and the onnxruntime shared library.
//
// Items of a batch are decoded and preprocessed concurrently; inference runs one item at a
// time on pre-allocated tensors.
type ONNXEmbedder struct {
	cfg    ONNXConfig
	logger *zap.Logger
	prep   *preprocessor
	cache  *EmbeddingCache

	textSession   *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	textOutput    *ort.Tensor[float32]

	imageSession *ort.AdvancedSession
	pixelValues  *ort.Tensor[float32]
	imageOutput  *ort.Tensor[float32]

	// guards the sessions and their tensors
	mu sync.Mutex
}

// NewONNXEmbedder loads both towers. InitializeEnvironment is called once per process.
func NewONNXEmbedder(cfg ONNXConfig, opts ...Option) (*ONNXEmbedder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.checkFiles(); err != nil {
		return nil, err
	}
	tokenizer, err := NewBPETokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, err
	}
	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	o := applyOptions(opts)
	e := &ONNXEmbedder{
		cfg:    cfg,
		logger: o.logger,
		prep:   newPreprocessor(cfg.ImageSize, cfg.ContextLength, tokenizer),
		cache:  NewEmbeddingCache(cfg.CacheSize),
	}

	if err := e.initTextTower(); err != nil {
		_ = e.Close()
		return nil, err
	}
	if err := e.initImageTower(); err != nil {
		_ = e.Close()
		return nil, err
	}
	e.logger.Info("ONNX embedder ready",
		zap.String("text_model", cfg.TextModelPath),
		zap.String("image_model", cfg.ImageModelPath),
		zap.Int("dimensions", cfg.Dimensions),
		zap.Int("workers", cfg.Workers))
	return e, nil
}

func (e *ONNXEmbedder) initTextTower() error {
	var err error
	seq := int64(e.cfg.ContextLength)
	ids, mask := frameTokens(nil, e.cfg.ContextLength)
	if e.inputIDs, err = ort.NewTensor(ort.NewShape(1, seq), ids); err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMask, err = ort.NewTensor(ort.NewShape(1, seq), mask); err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.textOutput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.cfg.Dimensions))); err != nil {
		return fmt.Errorf("failed to create text output tensor: %w", err)
	}
	e.textSession, err = ort.NewAdvancedSession(
		e.cfg.TextModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask},
		[]ort.ArbitraryTensor{e.textOutput},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create text session: %w", err)
	}
	return nil
}

func (e *ONNXEmbedder) initImageTower() error {
	var err error
	size := int64(e.cfg.ImageSize)
	if e.pixelValues, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size)); err != nil {
		return fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	if e.imageOutput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.cfg.Dimensions))); err != nil {
		return fmt.Errorf("failed to create image output tensor: %w", err)
	}
	e.imageSession, err = ort.NewAdvancedSession(
		e.cfg.ImageModelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{e.pixelValues},
		[]ort.ArbitraryTensor{e.imageOutput},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create image session: %w", err)
	}
	return nil
}

// Embed returns the vector for one item.
func (e *ONNXEmbedder) Embed(ctx context.Context, item models.SourceItem) ([]float32, error) {
	in, err := e.prep.prepare(ctx, item)
	if err != nil {
		return nil, err
	}
	vec, err := e.infer(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEmbedding, item.ID, err)
	}
	return vec, nil
}

// EmbedBatch preprocesses items on up to cfg.Workers goroutines, then runs inference in order.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, items []models.SourceItem) []Result {
	results := make([]Result, len(items))
	inputs := make([]*prepared, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			in, err := e.prep.prepare(gctx, item)
			if err != nil {
				results[i].Err = err
				return nil
			}
			inputs[i] = in
			return nil
		})
	}
	_ = g.Wait()

	for i, in := range inputs {
		if results[i].Err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		vec, err := e.infer(in)
		if err != nil {
			results[i].Err = fmt.Errorf("%w: %s: %w", ErrEmbedding, items[i].ID, err)
			continue
		}
		results[i].Vector = vec
	}
	return results
}

// EmbedQuery returns the text tower vector for text, using the cache when available.
func (e *ONNXEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := e.prep.prepareText(text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec, err := e.infer(in)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	e.cache.Set(text, vec)
	return vec, nil
}

func (e *ONNXEmbedder) infer(in *prepared) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		session *ort.AdvancedSession
		output  *ort.Tensor[float32]
	)
	switch in.kind {
	case models.KindImage:
		copy(e.pixelValues.GetData(), in.pixels)
		session, output = e.imageSession, e.imageOutput
	default:
		copy(e.inputIDs.GetData(), in.inputIDs)
		copy(e.attentionMask.GetData(), in.attentionMask)
		session, output = e.textSession, e.textOutput
	}
	if session == nil {
		return nil, errors.New("embedder is closed")
	}
	if err := session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.cfg.Dimensions)
	copy(vec, output.GetData())
	if !utils.NormalizeL2(vec) {
		return nil, errors.New("model returned a zero or non-finite embedding")
	}
	return vec, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close destroys the sessions and tensors. It is safe on a nil embedder.
func (e *ONNXEmbedder) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.textSession != nil {
		errs = append(errs, e.textSession.Destroy())
		e.textSession = nil
	}
	if e.imageSession != nil {
		errs = append(errs, e.imageSession.Destroy())
		e.imageSession = nil
	}
	if e.inputIDs != nil {
		_ = e.inputIDs.Destroy()
		e.inputIDs = nil
	}
	if e.attentionMask != nil {
		_ = e.attentionMask.Destroy()
		e.attentionMask = nil
	}
	if e.textOutput != nil {
		_ = e.textOutput.Destroy()
		e.textOutput = nil
	}
	if e.pixelValues != nil {
		_ = e.pixelValues.Destroy()
		e.pixelValues = nil
	}
	if e.imageOutput != nil {
		_ = e.imageOutput.Destroy()
		e.imageOutput = nil
	}
	return errors.Join(errs...)
}
