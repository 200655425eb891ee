package embedding

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("A dog, running", 10)
	if len(ids) != 10 || len(attn) != 10 {
		t.Fatalf("len(ids)=%d len(attn)=%d", len(ids), len(attn))
	}
	if ids[0] != startOfText {
		t.Errorf("expected start marker, got %d", ids[0])
	}
	if ids[4] != endOfText {
		t.Errorf("expected end marker at 4, got %d", ids[4])
	}
	for i := 0; i <= 4; i++ {
		if attn[i] != 1 {
			t.Errorf("attention[%d] should be 1", i)
		}
	}
	for i := 5; i < 10; i++ {
		if ids[i] != 0 || attn[i] != 0 {
			t.Errorf("position %d should be padding", i)
		}
	}
	for i := 1; i < 4; i++ {
		if ids[i] <= 0 || ids[i] >= startOfText {
			t.Errorf("token %d out of vocabulary range: %d", i, ids[i])
		}
	}
}

func TestSimpleTokenizer_CaseInsensitive(t *testing.T) {
	tok := &SimpleTokenizer{}
	a, _, _ := tok.Tokenize("Red Car", 8)
	b, _, _ := tok.Tokenize("red car", 8)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("token %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("one two three four five six", 4)
	if ids[3] != endOfText {
		t.Errorf("expected end marker in last slot, got %d", ids[3])
	}
	for i, a := range attn {
		if a != 1 {
			t.Errorf("attention[%d] should be 1", i)
		}
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b,c.  it's ")
	if len(words) != 4 || words[3] != "it's" {
		t.Errorf("expected 4 words, got %v", words)
	}
	if len(SplitWords("")) != 0 {
		t.Error("empty string should have no words")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") == HashString("abd") {
		t.Error("expected different hashes")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("a long string that overflows") < 0 {
		t.Error("hash should be non-negative")
	}
}

func TestBPETokenizer_FramesEncoderIDs(t *testing.T) {
	var got string
	tok := newBPETokenizer(func(text string) ([]int, error) {
		got = text
		// encoders configured with a post-processor add their own markers
		return []int{startOfText, 320, 1929, endOfText}, nil
	})

	ids, attn, err := tok.Tokenize("  A   Red\tCar ", 6)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a red car" {
		t.Errorf("encoder received %q", got)
	}
	wantIDs := []int64{startOfText, 320, 1929, endOfText, 0, 0}
	wantMask := []int64{1, 1, 1, 1, 0, 0}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] || attn[i] != wantMask[i] {
			t.Fatalf("position %d: id=%d mask=%d, want id=%d mask=%d", i, ids[i], attn[i], wantIDs[i], wantMask[i])
		}
	}
}

func TestBPETokenizer_Truncates(t *testing.T) {
	tok := newBPETokenizer(func(string) ([]int, error) {
		return []int{10, 11, 12, 13, 14}, nil
	})
	ids, attn, err := tok.Tokenize("long text", 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{startOfText, 10, 11, endOfText}
	for i := range want {
		if ids[i] != want[i] || attn[i] != 1 {
			t.Errorf("position %d: id=%d mask=%d, want %d", i, ids[i], attn[i], want[i])
		}
	}
}

func TestBPETokenizer_Errors(t *testing.T) {
	boom := errors.New("boom")
	tok := newBPETokenizer(func(string) ([]int, error) { return nil, boom })
	if _, _, err := tok.Tokenize("x", 8); !errors.Is(err, boom) {
		t.Errorf("expected encoder error, got %v", err)
	}

	tok = newBPETokenizer(func(string) ([]int, error) { return []int{endOfText + 1}, nil })
	if _, _, err := tok.Tokenize("x", 8); err == nil {
		t.Error("expected an error for an id outside the vocabulary")
	}
}

func TestNewBPETokenizer_MissingFile(t *testing.T) {
	if _, err := NewBPETokenizer(filepath.Join(t.TempDir(), "tokenizer.json")); err == nil {
		t.Fatal("expected an error for a missing tokenizer.json")
	}
}

func TestFrameTokens_DefaultContextLength(t *testing.T) {
	ids, attn := frameTokens(nil, 0)
	if len(ids) != DefaultContextLength || len(attn) != DefaultContextLength {
		t.Fatalf("len = %d, want %d", len(ids), DefaultContextLength)
	}
	if ids[0] != startOfText || ids[1] != endOfText || ids[2] != 0 {
		t.Errorf("unexpected framing: %v", ids[:3])
	}
	if attn[1] != 1 || attn[2] != 0 {
		t.Errorf("unexpected mask: %v", attn[:3])
	}
}
