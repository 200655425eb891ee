package embedding

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/hyperjump/gazou/internal/extract"
	"github.com/hyperjump/gazou/internal/models"
)

// DefaultImageSize is the CLIP image tower input resolution.
const DefaultImageSize = 224

// CLIP pixel normalization constants (RGB).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// prepared holds the model input for one item: pixels for images, tokens for text.
type prepared struct {
	kind          models.ItemKind
	pixels        []float32
	inputIDs      []int64
	attentionMask []int64
}

// preprocessor turns source items into model inputs. It is safe for concurrent use.
type preprocessor struct {
	imageSize     int
	contextLength int
	tokenizer     Tokenizer
	extractor     *extract.Extractor
}

// newPreprocessor returns a preprocessor for the given image resolution and text context length.
// A nil tokenizer falls back to SimpleTokenizer.
func newPreprocessor(imageSize, contextLength int, tokenizer Tokenizer) *preprocessor {
	if imageSize <= 0 {
		imageSize = DefaultImageSize
	}
	if contextLength <= 1 {
		contextLength = DefaultContextLength
	}
	if tokenizer == nil {
		tokenizer = &SimpleTokenizer{}
	}
	return &preprocessor{
		imageSize:     imageSize,
		contextLength: contextLength,
		tokenizer:     tokenizer,
		// a generous cap; the tokenizer keeps only the leading words
		extractor: extract.NewExtractor(contextLength * 32),
	}
}

// prepare decodes an image item or extracts and tokenizes a text item.
// Failures wrap ErrEmbedding.
func (p *preprocessor) prepare(ctx context.Context, item models.SourceItem) (*prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch item.Kind {
	case models.KindImage:
		img, err := DecodeImage(item.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEmbedding, item.ID, err)
		}
		return &prepared{kind: models.KindImage, pixels: PixelValues(img, p.imageSize)}, nil
	case models.KindText:
		text, err := p.extractor.Extract(item.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEmbedding, item.ID, err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: %s: document has no text", ErrEmbedding, item.ID)
		}
		in, err := p.prepareText(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEmbedding, item.ID, err)
		}
		return in, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown item kind %q", ErrEmbedding, item.ID, item.Kind)
	}
}

func (p *preprocessor) prepareText(text string) (*prepared, error) {
	ids, mask, err := p.tokenizer.Tokenize(text, p.contextLength)
	if err != nil {
		return nil, err
	}
	return &prepared{kind: models.KindText, inputIDs: ids, attentionMask: mask}, nil
}

// DecodeImage opens and decodes a JPEG, PNG, GIF, BMP or WebP file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty %s image", format)
	}
	return img, nil
}

// PixelValues center-crops img to a square, resizes it to size x size with Catmull-Rom
// interpolation, and returns CLIP-normalized values in CHW order.
func PixelValues(img image.Image, size int) []float32 {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	plane := size * size
	out := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		px := dst.Pix[i*4 : i*4+3]
		for c := 0; c < 3; c++ {
			out[c*plane+i] = (float32(px[c])/255 - clipMean[c]) / clipStd[c]
		}
	}
	return out
}
