package embedding

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
)

// ONNXConfig describes the CLIP towers loaded by NewONNXEmbedder.
type ONNXConfig struct {
	TextModelPath  string
	ImageModelPath string
	// TokenizerPath is the text tower's tokenizer.json; defaults to one next to the text model.
	TokenizerPath string
	Dimensions     int
	ContextLength  int
	ImageSize      int
	CacheSize      int
	// Workers bounds concurrent preprocessing within one batch.
	Workers int
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.Dimensions <= 0 {
		c.Dimensions = 512
	}
	if c.ContextLength <= 1 {
		c.ContextLength = DefaultContextLength
	}
	if c.ImageSize <= 0 {
		c.ImageSize = DefaultImageSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.TokenizerPath == "" && c.TextModelPath != "" {
		c.TokenizerPath = filepath.Join(filepath.Dir(c.TextModelPath), "tokenizer.json")
	}
	return c
}

// checkFiles reports the first model or tokenizer file that cannot be read.
func (c ONNXConfig) checkFiles() error {
	for _, f := range []struct{ name, path string }{
		{"text model", c.TextModelPath},
		{"image model", c.ImageModelPath},
		{"tokenizer", c.TokenizerPath},
	} {
		if f.path == "" {
			return fmt.Errorf("%s path is not set", f.name)
		}
		if _, err := os.Stat(f.path); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

// Option configures an embedder.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
