package util

import "testing"

func TestScrubControlCharsRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	out := ScrubControlChars(in)
	if out != "abcd\n\txy" {
		t.Fatalf("unexpected scrubbed output: %q", out)
	}
}

func TestSplitSentencesKeepsPunctuation(t *testing.T) {
	got := SplitSentences("One. Two! Three? tail")
	want := []string{"One.", "Two!", "Three?", "tail"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestTruncateWords(t *testing.T) {
	if got := TruncateWords("a b c d e", 3); got != "a b c" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := TruncateWords("a b", 5); got != "a b" {
		t.Fatalf("short input should be unchanged: %q", got)
	}
}

func TestNormalizeKeyStripsPunctuationAndCase(t *testing.T) {
	a := NormalizeKey("The SSHO, conducts   daily inspections.")
	b := NormalizeKey("the ssho conducts daily inspections")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	if got := JaccardSimilarity("a b c", "a b c"); got != 1.0 {
		t.Fatalf("identical texts should be 1.0, got %f", got)
	}
	if got := JaccardSimilarity("a b", "x y"); got != 0.0 {
		t.Fatalf("disjoint texts should be 0.0, got %f", got)
	}
}
