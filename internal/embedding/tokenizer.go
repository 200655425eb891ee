package embedding

import (
	"strings"
	"unicode"
)

const (
	// CLIP text tower vocabulary markers.
	startOfText = 49406
	endOfText   = 49407

	// DefaultContextLength is the CLIP text context window.
	DefaultContextLength = 77
)

// Tokenizer produces CLIP text tower inputs (input_ids, attention_mask).
type Tokenizer interface {
	Tokenize(text string, contextLength int) (inputIDs, attentionMask []int64, err error)
}

// frameTokens lays tokens out the way the CLIP text tower expects: start marker, the tokens cut
// to fit, end marker, zero padding up to contextLength.
func frameTokens(tokens []int64, contextLength int) (inputIDs, attentionMask []int64) {
	if contextLength < 2 {
		contextLength = DefaultContextLength
	}
	if len(tokens) > contextLength-2 {
		tokens = tokens[:contextLength-2]
	}
	inputIDs = make([]int64, contextLength)
	attentionMask = make([]int64, contextLength)

	inputIDs[0] = startOfText
	copy(inputIDs[1:], tokens)
	inputIDs[len(tokens)+1] = endOfText
	for i := 0; i < len(tokens)+2; i++ {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask
}

// SimpleTokenizer is a lowercase word-split tokenizer with hash-based token IDs. Its IDs are not
// a real vocabulary; it backs the mock embedder and tests that have no tokenizer.json.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs of length contextLength.
func (t *SimpleTokenizer) Tokenize(text string, contextLength int) (inputIDs, attentionMask []int64, err error) {
	words := SplitWords(strings.ToLower(text))
	tokens := make([]int64, 0, len(words))
	for _, word := range words {
		// ids 1..startOfText-1; 0 is padding
		tokens = append(tokens, int64(HashString(word)%(startOfText-1))+1)
	}
	inputIDs, attentionMask = frameTokens(tokens, contextLength)
	return inputIDs, attentionMask, nil
}

// SplitWords splits text on whitespace and punctuation and returns non-empty words.
func SplitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '-')
	})
}

// HashString returns a deterministic non-negative hash for use as a token ID.
func HashString(s string) int {
	h := uint32(2166136261)
	for _, c := range []byte(s) {
		h ^= uint32(c)
		h *= 16777619
	}
	return int(h & 0x7fffffff)
}
