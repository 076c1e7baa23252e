package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("Bohemian Rhapsody by Queen", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != tokenCLS {
		t.Errorf("expected CLS %d, got %d", tokenCLS, ids[0])
	}
	if ids[5] != tokenSEP {
		t.Errorf("expected SEP after 4 words, got %d", ids[5])
	}
	if attn[6] != 0 {
		t.Error("padding should not be attended")
	}
}

func TestWords(t *testing.T) {
	words := Words("  Don't Stop Me Now\nLyrics: ")
	want := []string{"don", "t", "stop", "me", "now", "lyrics"}
	if len(words) != len(want) {
		t.Fatalf("Words = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, words[i], want[i])
		}
	}
	if got := Words(""); len(got) != 0 {
		t.Errorf("Words(\"\") = %v, want empty", got)
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}
