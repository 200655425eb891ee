package embedding

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer/pretrained"
)

// BPETokenizer encodes text with the CLIP byte-pair vocabulary from a Hugging Face
// tokenizer.json exported alongside the text tower.
type BPETokenizer struct {
	// the underlying pipeline keeps a merge cache; calls are serialized
	mu     sync.Mutex
	encode func(text string) ([]int, error)
}

// NewBPETokenizer loads the tokenizer.json at path.
func NewBPETokenizer(path string) (*BPETokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return newBPETokenizer(func(text string) ([]int, error) {
		en, err := tk.EncodeSingle(text, false)
		if err != nil {
			return nil, err
		}
		return en.Ids, nil
	}), nil
}

func newBPETokenizer(encode func(string) ([]int, error)) *BPETokenizer {
	return &BPETokenizer{encode: encode}
}

// Tokenize cleans whitespace, lowercases, encodes and frames text to contextLength tokens.
// Start and end markers produced by the encoder are dropped and re-added by the framing.
func (t *BPETokenizer) Tokenize(text string, contextLength int) (inputIDs, attentionMask []int64, err error) {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))

	t.mu.Lock()
	ids, err := t.encode(text)
	t.mu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("tokenize: %w", err)
	}

	tokens := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == startOfText || id == endOfText {
			continue
		}
		if id < 0 || id > endOfText {
			return nil, nil, fmt.Errorf("tokenize: id %d is outside the CLIP vocabulary", id)
		}
		tokens = append(tokens, int64(id))
	}
	inputIDs, attentionMask = frameTokens(tokens, contextLength)
	return inputIDs, attentionMask, nil
}
